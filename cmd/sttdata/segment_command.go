package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sttdata/internal/config"
	"github.com/MrWong99/sttdata/internal/segment"
	"github.com/MrWong99/sttdata/pkg/audio"
)

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	var exportDir string

	cmd := &cobra.Command{
		Use:   "segment <audio-file>",
		Short: "Detect speech in a local recording and print the segments it yields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			target := cfg.Audio.Format()
			dec := audio.ChainDecoder{
				&audio.WAVDecoder{Target: target},
				&audio.FFmpegDecoder{Binary: cfg.Audio.FFmpegPath, Target: target},
			}
			pcm, err := dec.Decode(cmd.Context(), data)
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}

			reg := config.NewRegistry()
			registerBuiltinProviders(reg)
			vadEntry := cfg.Providers.VAD
			if vadEntry.Name == "" {
				vadEntry.Name = "energy"
			}
			detector, err := reg.CreateVAD(vadEntry, cfg.VAD.Params())
			if err != nil {
				return fmt.Errorf("create vad provider %q: %w", vadEntry.Name, err)
			}
			spans, err := detector.Detect(cmd.Context(), pcm)
			if err != nil {
				return fmt.Errorf("detect speech: %w", err)
			}

			opts := []segment.Option{segment.WithSplitter(cfg.Segment.Splitter())}
			if exportDir != "" {
				opts = append(opts, segment.WithExporter(&segment.WAVExporter{Dir: exportDir}))
			}
			engine, err := segment.New(cfg.Segment.Bounds(), opts...)
			if err != nil {
				return err
			}
			recID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			segs, err := engine.Segment(cmd.Context(), recID, pcm, spans)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, segs.Len())
			for _, s := range segs.All() {
				rows = append(rows, []string{
					strconv.Itoa(s.Ordinal),
					s.ID,
					strconv.FormatInt(s.StartMs, 10),
					strconv.FormatInt(s.EndMs, 10),
					fmt.Sprintf("%.2f", float64(s.EndMs-s.StartMs)/1000),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %.2fs audio, %d speech spans, %d segments\n",
				recID, pcm.Duration().Seconds(), len(spans), segs.Len())
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(out,
					[]string{"#", "ID", "Start (ms)", "End (ms)", "Seconds"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
				))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exportDir, "export", "", "directory to write each segment as a WAV file")
	return cmd
}
