package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"abstractor/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				resp, err := client.TestNotification()
				if err != nil {
					if resp != nil && resp.Message != "" {
						fmt.Fprintln(out, resp.Message)
					}
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				if resp.Sent {
					fmt.Fprintln(out, "Test notification sent")
					return nil
				}
				if resp.Message != "" {
					fmt.Fprintln(out, resp.Message)
				}
				fmt.Fprintln(out, "Set notifications.ntfy_topic in the config to enable push notifications")
				return nil
			})
		},
	}
}
