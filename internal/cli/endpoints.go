package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/birbparty/stackmob/internal/endpoints"
)

func newEndpointsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Inspect the API and push hosts in use",
	}
	cmd.AddCommand(newEndpointsShowCommand(a))
	cmd.AddCommand(newEndpointsWatchCommand(a))
	return cmd
}

func newEndpointsShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current hosts, and the stored ones with endpoints.sync",
		Args:  cobra.NoArgs,
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			api, push := client.Session().Hosts()
			printField(out, "API host", api)
			printField(out, "Push host", push)
			printField(out, "Circuit", client.CircuitState(api).String())

			if a.store == nil {
				return nil
			}
			stored, err := a.store.Load(ctx, a.cfg.App.Key)
			switch {
			case errors.Is(err, endpoints.ErrNotFound):
				warnColor.Fprintln(out, "No stored endpoints")
			case err != nil:
				return err
			default:
				printField(out, "Stored at", stored.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		}),
	}
}

func newEndpointsWatchCommand(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print endpoint changes announced by other processes",
		Long: `Print endpoint changes announced over NATS until interrupted, or until
--count notices arrived.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.App.Key == "" {
				return fmt.Errorf("app.key is required")
			}
			if err := a.connectEndpoints(); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			notices := make(chan endpoints.Notice, 16)
			sub, err := a.broadcaster.Watch(a.cfg.App.Key, func(n endpoints.Notice) {
				select {
				case notices <- n:
				case <-ctx.Done():
				}
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()
			if err := a.broadcaster.Flush(ctx); err != nil {
				return err
			}
			titleColor.Fprintf(cmd.ErrOrStderr(), "Watching endpoint changes for %s\n", a.cfg.App.Key)

			seen := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case n := <-notices:
					fmt.Fprintf(out, "%s %s -> %s (from %s)\n",
						n.At.Format(time.RFC3339), n.OriginalURL, n.NewURL, n.Origin)
					seen++
					if count > 0 && seen >= count {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many notices")
	return cmd
}
