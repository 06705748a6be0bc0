// Package cli implements the tiles command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes returned by MainWithArgs.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Main runs the CLI against the process's args and stdio and exits.
func Main() {
	os.Exit(MainWithArgs(os.Args[1:]))
}

// MainWithArgs runs the CLI against the process's stdio and returns an exit code.
func MainWithArgs(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Execute(ctx, args, Options{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr})
}

// Execute runs one invocation with explicit stdio.
func Execute(ctx context.Context, args []string, opts Options) int {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	a := &app{opts: opts}
	root := buildRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	a.writeMetrics()
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
	if isUsage(err) || isUnknownCommand(err) {
		fmt.Fprintf(opts.Stderr, "Run 'tiles --help' for usage.\n")
		return ExitUsage
	}
	return ExitError
}
