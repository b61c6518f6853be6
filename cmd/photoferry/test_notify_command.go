package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"photoferry/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification and health ping",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Notifications.NtfyTopic == "" && cfg.Notifications.HealthcheckURL == "" {
				fmt.Fprintln(out, "No ntfy topic or health check URL configured")
				return nil
			}
			if cfg.Notifications.NtfyTopic != "" {
				if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
					return fmt.Errorf("send test notification: %w", err)
				}
				fmt.Fprintln(out, "Test notification sent")
			}
			if cfg.Notifications.HealthcheckURL != "" {
				if err := notifications.NewHealthcheck(cfg).Success(cmd.Context()); err != nil {
					return fmt.Errorf("ping health check: %w", err)
				}
				fmt.Fprintln(out, "Health check pinged")
			}
			return nil
		},
	}
}
