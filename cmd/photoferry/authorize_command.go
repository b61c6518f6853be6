package main

import (
	"time"

	"github.com/spf13/cobra"

	"photoferry/internal/auth"
)

func newAuthorizeCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Authorize photoferry to append to your photo library",
		Long: `Run the OAuth consent flow in a browser and cache the resulting token.

The client secrets file (photos.credentials_file) must already exist. The token
is written to photos.token_file with owner-only permissions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return auth.Authorize(cmd.Context(), cfg, cmd.OutOrStdout(), auth.AuthorizeOptions{Timeout: timeout})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser callback")
	return cmd
}
