package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/birbparty/stackmob/internal/telemetry"
	"github.com/birbparty/stackmob/sdk"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand creates the stackmob command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackmob",
		Short: "Command line client for the StackMob platform",
		Long: color.CyanString(`stackmob - StackMob platform client

Reads, writes and counts objects, manages user sessions and sends push
notifications with the app's OAuth credentials. Configuration comes from
stackmob.yaml and STACKMOB_* environment variables.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default ./stackmob.yaml)")
	flags.String("key", "", "app API key")
	flags.String("secret", "", "app API secret")
	flags.String("api-host", "", "API host")
	flags.Bool("secure", false, "send every request over https")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("app.key", flags.Lookup("key"))
	_ = a.v.BindPFlag("app.secret", flags.Lookup("secret"))
	_ = a.v.BindPFlag("api.host", flags.Lookup("api-host"))
	_ = a.v.BindPFlag("api.secure", flags.Lookup("secure"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newGetCommand(a))
	rootCmd.AddCommand(newCountCommand(a))
	rootCmd.AddCommand(newCreateCommand(a))
	rootCmd.AddCommand(newUpdateCommand(a))
	rootCmd.AddCommand(newDeleteCommand(a))
	rootCmd.AddCommand(newLoginCommand(a))
	rootCmd.AddCommand(newLogoutCommand(a))
	rootCmd.AddCommand(newPushCommand(a))
	rootCmd.AddCommand(newEndpointsCommand(a))

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			printField(out, "stackmob version", Version)
			printField(out, "SDK version", sdk.Version)
			printField(out, "Git commit", GitCommit)
			printField(out, "Build date", BuildDate)
			printField(out, "Go version", runtime.Version())
		},
	}
}

// timed runs fn as a traced, timed operation named after the command
func timed(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, done := telemetry.TimeOperation(cmd.Context(), cmd.CommandPath())
		err := fn(ctx, cmd, args)
		done(err)
		return err
	}
}

// Execute runs the command tree and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp()
	defer a.close()

	rootCmd := newRootCommand(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		return exitCode(err)
	}
	return 0
}

func requireArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s %s", cmd.CommandPath(), usage)
		}
		return nil
	}
}
