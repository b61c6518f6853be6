package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var imagesDir string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload and mint every image waiting in the images directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
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

			rt, err := buildRuntime(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			summary, err := rt.pipeline.Upload(cmd.Context(), nil)
			out := cmd.OutOrStdout()
			switch {
			case summary.Found == 0 && err == nil:
				fmt.Fprintln(out, "No images to upload")
			default:
				fmt.Fprintf(out, "Uploaded %d of %d images, minted %d, archived %d\n",
					summary.Uploaded, summary.Found, summary.Minted, len(summary.Archived))
			}
			if summary.ItemsRejected > 0 {
				fmt.Fprintf(out, "%d items were rejected by the library; see the log for details\n", summary.ItemsRejected)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "Directory holding images to upload (overrides paths.images_dir)")
	return cmd
}
