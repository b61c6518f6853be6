package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"photoferry/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		batches bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.Ledger.Enabled {
				fmt.Fprintln(out, "Run history is disabled (ledger.enabled = false)")
				return nil
			}

			store, err := ledger.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.Command,
					colorizeStatus(run.Status, runStatusKind(run.Status), colorize),
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					formatRunDuration(run),
					fmt.Sprint(run.Batches),
					fmt.Sprint(run.ImagesWritten),
					fmt.Sprint(run.ImagesUploaded),
					truncate(run.ErrorMessage, 60),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Command", "Status", "Started", "Took", "Batches", "Written", "Minted", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))

			if !batches {
				return nil
			}
			for _, run := range runs {
				outcomes, err := store.BatchesForRun(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if len(outcomes) == 0 {
					continue
				}
				fmt.Fprintf(out, "\nBatches for run %s\n", shortID(run.ID))
				batchRows := make([][]string, 0, len(outcomes))
				for _, b := range outcomes {
					detail := ""
					if b.Err != nil {
						detail = truncate(b.Err.Error(), 60)
					}
					batchRows = append(batchRows, []string{
						baseName(b.Path),
						colorizeStatus(b.Status, batchStatusKind(b.Status), colorize),
						fmt.Sprint(b.Entries),
						fmt.Sprint(b.Survivors),
						fmt.Sprint(b.Dropped),
						fmt.Sprint(b.Skipped),
						detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Batch", "Status", "Entries", "Kept", "Dropped", "Skipped", "Error"},
					batchRows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&batches, "batches", false, "Also list each run's batch files")
	return cmd
}

func runStatusKind(status string) statusKind {
	switch status {
	case ledger.StatusSucceeded:
		return statusOK
	case ledger.StatusFailed:
		return statusError
	default:
		return statusWarn
	}
}

func batchStatusKind(status string) statusKind {
	switch status {
	case ledger.BatchArchived:
		return statusOK
	case ledger.BatchParseFailed:
		return statusWarn
	default:
		return statusError
	}
}

func formatRunDuration(run ledger.Run) string {
	if run.FinishedAt.IsZero() {
		return "-"
	}
	d := run.FinishedAt.Sub(run.StartedAt)
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
