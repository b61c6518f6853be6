package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"photoferry/internal/pipeline"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		queueDir  string
		imagesDir string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process queued batch files and upload the results",
		Long: `Process every batch file in the queue directory: download each entry,
keep the earliest entry per filename, write the images with their capture
time, and archive the batch. Without --dry-run=false nothing is written,
moved, or uploaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := overridePath(&cfg.Paths.QueueDir, queueDir); err != nil {
				return fmt.Errorf("resolve --queue-dir: %w", err)
			}
			if err := overridePath(&cfg.Paths.ImagesDir, imagesDir); err != nil {
				return fmt.Errorf("resolve --images-dir: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			rt, err := buildRuntime(cmd.Context(), cfg, logger, dryRun)
			if err != nil {
				return err
			}
			defer rt.Close()

			summary, err := rt.pipeline.Process(cmd.Context(), pipeline.Options{DryRun: dryRun})
			if err == nil || len(summary.Batches)+len(summary.Rejected) > 0 {
				printProcessSummary(cmd.OutOrStdout(), summary)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&queueDir, "queue-dir", "", "Directory holding pending batch files (overrides paths.queue_dir)")
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "Directory receiving downloaded images (overrides paths.images_dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "Fetch and report without writing, moving, or uploading anything")
	return cmd
}

func printProcessSummary(out io.Writer, summary pipeline.Summary) {
	mode := "Run"
	if summary.DryRun {
		mode = "Dry run"
	}
	fmt.Fprintf(out, "%s %s\n", mode, summary.RunID)

	if len(summary.Batches)+len(summary.Rejected) > 0 {
		rows := make([][]string, 0, len(summary.Batches)+len(summary.Rejected))
		for _, b := range summary.Batches {
			rows = append(rows, batchRow(b, summary.DryRun))
		}
		for _, b := range summary.Rejected {
			rows = append(rows, batchRow(b, summary.DryRun))
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Batch", "Entries", "Kept", "Dropped", "Written", "Skipped", "Result"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	} else {
		fmt.Fprintln(out, "No batch files found")
	}

	if !summary.DryRun && summary.Upload.Found > 0 {
		fmt.Fprintf(out, "Uploaded %d of %d images, minted %d, archived %d\n",
			summary.Upload.Uploaded, summary.Upload.Found, summary.Upload.Minted, len(summary.Upload.Archived))
	}
}

func batchRow(b pipeline.BatchSummary, dryRun bool) []string {
	result := "archived"
	switch {
	case b.Err != nil:
		result = "failed"
	case dryRun:
		result = "would archive"
	}
	return []string{
		baseName(b.Path),
		fmt.Sprint(b.Entries),
		fmt.Sprint(b.Survivors),
		fmt.Sprint(b.Dropped),
		fmt.Sprint(b.Written),
		fmt.Sprint(b.Skipped),
		result,
	}
}
