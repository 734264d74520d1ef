package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newPushCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send push notifications",
	}
	cmd.AddCommand(newPushBroadcastCommand(a))
	cmd.AddCommand(newPushUsersCommand(a))
	return cmd
}

func newPushBroadcastCommand(a *app) *cobra.Command {
	var payload map[string]string
	cmd := &cobra.Command{
		Use:     "broadcast",
		Short:   "Notify every registered device",
		Example: `  stackmob push broadcast -p alert="Maintenance at 10pm" -p badge=1`,
		Args:    cobra.NoArgs,
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if len(payload) == 0 {
				return fmt.Errorf("at least one --payload pair is required")
			}
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			if _, err := client.BroadcastPush(ctx, payload).Wait(ctx); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Broadcast sent")
			return nil
		}),
	}
	cmd.Flags().StringToStringVarP(&payload, "payload", "p", nil, "notification key=value pairs")
	return cmd
}

func newPushUsersCommand(a *app) *cobra.Command {
	var payload map[string]string
	cmd := &cobra.Command{
		Use:   "users <user>...",
		Short: "Notify every device of the given users",
		Args:  cobra.MinimumNArgs(1),
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if len(payload) == 0 {
				return fmt.Errorf("at least one --payload pair is required")
			}
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			if _, err := client.PushToUsers(ctx, payload, args).Wait(ctx); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Sent to %d users", len(args))
			return nil
		}),
	}
	cmd.Flags().StringToStringVarP(&payload, "payload", "p", nil, "notification key=value pairs")
	return cmd
}
