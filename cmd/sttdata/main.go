// Command sttdata builds a speech-to-text training dataset from a catalog of
// news recordings and their human reference transcripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "sttdata: %v\n", err)
		}
		return 1
	}
	return 0
}
