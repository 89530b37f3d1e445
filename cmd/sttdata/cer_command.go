package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sttdata/internal/transcript"
)

func newCERCommand() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "cer <reference> <prediction>",
		Short: "Print the character error rate of a prediction against a reference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 0 || threshold > 1 {
				return fmt.Errorf("--threshold must be in [0, 1], got %v", threshold)
			}
			rate := transcript.ErrorRate(args[0], args[1])
			verdict := "valid"
			if rate > threshold {
				verdict = "invalid"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f %s\n", rate, verdict)
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", transcript.DefaultThreshold, "maximum error rate considered valid")
	return cmd
}
