package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sttdata/internal/config"
	"github.com/MrWong99/sttdata/internal/ledger"
	"github.com/MrWong99/sttdata/internal/ledger/postgres"
	"github.com/MrWong99/sttdata/internal/ledger/sqlite"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var filter ledger.Filter

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List recording progress stored in the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var l ledger.Ledger
			switch cfg.Ledger.Driver {
			case config.LedgerSQLite:
				l, err = sqlite.Open(cmd.Context(), cfg.Ledger.DSN)
			case config.LedgerPostgres:
				l, err = postgres.Open(cmd.Context(), cfg.Ledger.DSN)
			default:
				return fmt.Errorf("no run ledger configured; set ledger.driver to %q or %q", config.LedgerSQLite, config.LedgerPostgres)
			}
			if err != nil {
				return err
			}
			defer l.Close()

			entries, err := l.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no matching recordings")
				return nil
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Run", "Recording", "Sr.no", "State", "Segments", "Updated", "Error"},
				entryRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.RunID, "run", "", "only show entries of this run")
	flags.StringVar(&filter.RecordingID, "recording", "", "only show entries of this recording")
	flags.StringVar(&filter.State, "state", "", "only show entries in this state (e.g. EMITTED, FAILED)")
	flags.IntVar(&filter.Limit, "limit", 50, "maximum number of entries (0 for all)")
	return cmd
}

func entryRows(entries []ledger.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.RunID,
			e.RecordingID,
			strconv.Itoa(e.SrNo),
			e.State,
			strconv.Itoa(e.Segments),
			e.UpdatedAt.Local().Format(time.DateTime),
			truncate(e.Error, 60),
		})
	}
	return rows
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
