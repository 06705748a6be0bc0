// Package runner runs non-daemon models as a foreground chat subprocess that
// inherits the terminal.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"tiles/internal/modelfile"
)

// DefaultBin is the chat executable used when Runner.Bin is empty.
const DefaultBin = "mlx_lm.chat"

// InstallHint is shown when the chat executable is missing.
const InstallHint = "install mlx-lm with: pip install mlx-lm (macOS on Apple Silicon only)"

var paramFlags = map[string]string{
	"num_predict": "--max-tokens",
	"temperature": "--temp",
	"top_p":       "--top-p",
	"seed":        "--seed",
}

// Args maps a Modelfile to the chat executable's command line. Parameters
// without a flag are dropped.
func Args(mf *modelfile.Modelfile) []string {
	args := []string{"--model", mf.From()}
	for _, p := range mf.Parameters() {
		if flag, ok := paramFlags[p.Name]; ok {
			args = append(args, flag, p.Value.String())
		}
	}
	if sys, ok := mf.System(); ok {
		args = append(args, "--system-prompt", sys)
	}
	if ad, ok := mf.Adapter(); ok {
		args = append(args, "--adapter-path", ad)
	}
	return args
}

// Runner spawns the chat executable and waits for it.
type Runner struct {
	Bin    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger zerolog.Logger
}

// Run blocks until the subprocess exits. A missing executable is reported
// with an error wrapping exec.ErrNotFound.
func (r *Runner) Run(ctx context.Context, mf *modelfile.Modelfile) error {
	bin := r.Bin
	if bin == "" {
		bin = DefaultBin
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%s: %w", bin, exec.ErrNotFound)
	}
	args := Args(mf)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = orDefault(r.Stdin, os.Stdin)
	cmd.Stdout = orDefaultW(r.Stdout, os.Stdout)
	cmd.Stderr = orDefaultW(r.Stderr, os.Stderr)
	r.Logger.Debug().Str("bin", path).Strs("args", args).Msg("runner event=spawn")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s exited: %w", bin, err)
	}
	return nil
}

func orDefault(r io.Reader, def io.Reader) io.Reader {
	if r == nil {
		return def
	}
	return r
}

func orDefaultW(w io.Writer, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
