package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// usageError marks errors that should exit with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func isUsage(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

func isUnknownCommand(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command ")
}

func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// buildRootCmd constructs the command tree wired to a.
func buildRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "tiles",
		Short: "Private, on-device AI memory",
		Long: "Tiles runs local models. Daemon-hosted models keep running in the\n" +
			"background after the CLI exits.",
		Example: "  tiles run memgpt\n  tiles ls\n  tiles stop memgpt\n  tiles stop --server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.opts.Stdin)
	root.SetOut(a.opts.Stdout)
	root.SetErr(a.opts.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (.yaml/.json/.toml; default <config_dir>/config.{yaml,yml,toml,json})")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults TILES_LOG_LEVEL or warn)")
	root.PersistentFlags().BoolVar(&a.dev, "dev", false, "Use ./.tiles_dev instead of the per-user directories")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return a.setup() }

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newStopCmd(a),
		newStartCmd(a),
		newHealthCmd(a),
		newServerCmd(a),
	)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	completionCmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }
	root.AddCommand(completionCmd)

	return root
}

// newServerCmd keeps the older `tiles server start|stop` spelling.
func newServerCmd(a *app) *cobra.Command {
	server := &cobra.Command{
		Use:    "server",
		Short:  "Manage the daemon server (deprecated: use 'start' or 'stop --server')",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageError{fmt.Errorf("expected start or stop")}
		},
	}
	server.AddCommand(
		&cobra.Command{Use: "start", Short: "Start the daemon", RunE: func(cmd *cobra.Command, args []string) error { return a.startServer(cmd) }},
		&cobra.Command{Use: "stop", Short: "Stop the daemon", RunE: func(cmd *cobra.Command, args []string) error { return a.stopServer(cmd, false) }},
	)
	return server
}
