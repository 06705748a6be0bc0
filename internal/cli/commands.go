package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tiles/internal/catalog"
	"tiles/internal/daemon"
	"tiles/internal/manager"
	"tiles/internal/modelfile"
)

func newRunCmd(a *app) *cobra.Command {
	var name string
	var detach bool
	cmd := &cobra.Command{
		Use:     "run <model-or-path>",
		Short:   "Run a model from the registry or a Modelfile path",
		Example: "  tiles run memgpt\n  tiles run ./models/Modelfile --name scratch\n  tiles run memgpt -d",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := args[0]
			path, err := catalog.Resolve(a.layout.RegistryDir(), ref)
			if err != nil {
				return err
			}
			mf, err := modelfile.LoadFile(path)
			if err != nil {
				return err
			}
			if name == "" {
				name = modelName(ref, path)
			}
			out, err := a.mgr.Run(cmd.Context(), name, mf)
			if err != nil {
				return err
			}
			if out.Mode != manager.ModeDaemon {
				return nil
			}
			w := cmd.OutOrStdout()
			if out.Spawned {
				fmt.Fprintln(w, "Server started")
			}
			fmt.Fprintf(w, "Running %s (%s) on pid %d\n", out.Record.Name, out.Record.ModelID, out.Record.PID)
			if detach {
				return nil
			}
			return chat(cmd.Context(), a.client, out.Record.ModelID, cmd.InOrStdin(), w)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Register the model under this name (default: the registry name or Modelfile directory)")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Leave the model running without opening a chat")
	return cmd
}

// modelName picks the registry key for a run: the ref itself for catalog
// names, the Modelfile's directory name for paths.
func modelName(ref, path string) string {
	if !strings.ContainsRune(ref, filepath.Separator) && !strings.ContainsRune(ref, '/') && filepath.Base(ref) != catalog.ModelfileName {
		return ref
	}
	return filepath.Base(filepath.Dir(path))
}

func newListCmd(a *app) *cobra.Command {
	var available bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List running models",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if available {
				entries, err := catalog.List(a.layout.RegistryDir())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintf(w, "No models in %s\n", a.layout.RegistryDir())
					return nil
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tMODELFILE")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Path)
				}
				return tw.Flush()
			}
			recs, err := a.mgr.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(w, "No running models")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMODEL\tPID\tSTARTED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Name, r.ModelID, r.PID, r.StartedAt)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&available, "available", false, "List models installed in the local registry instead")
	return cmd
}

func newStopCmd(a *app) *cobra.Command {
	var server, force bool
	cmd := &cobra.Command{
		Use:     "stop [model]",
		Short:   "Stop a running model, or the daemon with --server",
		Example: "  tiles stop memgpt\n  tiles stop --server\n  tiles stop --server --force",
		Args: usageArgs(func(cmd *cobra.Command, args []string) error {
			if server && len(args) > 0 {
				return fmt.Errorf("--server takes no model argument")
			}
			if !server && len(args) != 1 {
				return fmt.Errorf("stop requires a model name or --server")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server {
				return a.stopServer(cmd, force)
			}
			if err := a.mgr.Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&server, "server", false, "Stop the daemon instead of a model")
	cmd.Flags().BoolVar(&force, "force", false, "With --server: stop even while models are registered and forget them")
	return cmd
}

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon without loading a model",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  func(cmd *cobra.Command, args []string) error { return a.startServer(cmd) },
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the runtime dependencies are installed",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := a.mgr.SanityCheck(cmd.Context())
			w := cmd.OutOrStdout()
			for _, c := range rep.Checks {
				status := "ok"
				switch {
				case !c.OK && c.Optional:
					status = "warn"
				case !c.OK:
					status = "missing"
				}
				fmt.Fprintf(w, "[%s] %s", status, c.Name)
				if c.Detail != "" {
					fmt.Fprintf(w, ": %s", c.Detail)
				}
				fmt.Fprintln(w)
				if !c.OK && c.Hint != "" {
					fmt.Fprintf(w, "      %s\n", c.Hint)
				}
			}
			if !rep.OK() {
				return errors.New("missing dependencies")
			}
			return nil
		},
	}
}

func (a *app) startServer(cmd *cobra.Command) error {
	spawned, err := a.mgr.StartDaemon(cmd.Context())
	if err != nil {
		return err
	}
	if spawned {
		fmt.Fprintln(cmd.OutOrStdout(), "Server started")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Server is already running")
	}
	return nil
}

func (a *app) stopServer(cmd *cobra.Command, force bool) error {
	err := a.mgr.StopDaemon(cmd.Context(), force)
	switch {
	case errors.Is(err, daemon.ErrNotRunning):
		fmt.Fprintln(cmd.OutOrStdout(), "Server is not running")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
	return nil
}
