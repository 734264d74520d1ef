package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/birbparty/stackmob/sdk"
)

func newLoginCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log a user in and print the session cookie",
		Long: `Log a user in. The password comes from --password or STACKMOB_PASSWORD.
The session cookie is printed to stderr for use with logout --cookie.`,
		Args: requireArgs(1, "<username>"),
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			password := a.v.GetString("password")
			if password == "" {
				return fmt.Errorf("--password or STACKMOB_PASSWORD is required")
			}
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			body, err := client.Login(ctx, args[0], password).Wait(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), body); err != nil {
				return err
			}
			if client.IsLoggedIn() {
				printField(cmd.ErrOrStderr(), "Session cookie", client.Cookies().Render())
			}
			return nil
		}),
	}
	cmd.Flags().String("password", "", "user password")
	_ = a.v.BindPFlag("password", cmd.Flags().Lookup("password"))
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	var cookie string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End a user session",
		Args:  cobra.NoArgs,
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			var opts []sdk.RequestOption
			if cookie != "" {
				opts = append(opts, sdk.WithRequestHeader("Cookie", cookie))
			}
			if _, err := client.Logout(ctx, opts...).Wait(ctx); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
	cmd.Flags().StringVar(&cookie, "cookie", "", "session cookie printed by login")
	return cmd
}
