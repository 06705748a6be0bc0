package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiles/internal/modelfile"
)

func TestArgs_MapsKnownParameters(t *testing.T) {
	mf, err := modelfile.Load(`FROM mlx-community/Qwen3-4B
PARAMETER temperature 0.7
PARAMETER num_predict 256
PARAMETER top_k 40
PARAMETER top_p 0.95
PARAMETER seed 42
SYSTEM "Be concise."
ADAPTER ./lora
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--model", "mlx-community/Qwen3-4B",
		"--temp", "0.7",
		"--max-tokens", "256",
		"--top-p", "0.95",
		"--seed", "42",
		"--system-prompt", "Be concise.",
		"--adapter-path", "./lora",
	}, Args(mf))
}

func TestArgs_Minimal(t *testing.T) {
	mf, err := modelfile.Load("FROM m")
	require.NoError(t, err)
	assert.Equal(t, []string{"--model", "m"}, Args(mf))
}

func TestRun_MissingBinary(t *testing.T) {
	mf, err := modelfile.Load("FROM m")
	require.NoError(t, err)
	r := &Runner{Bin: "no-such-chat-binary-xyz"}
	err = r.Run(context.Background(), mf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestRun_PassesArgs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-chat")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"$@\"\n"), 0o755))

	mf, err := modelfile.Load("FROM m\nPARAMETER seed 7")
	require.NoError(t, err)
	var out bytes.Buffer
	r := &Runner{Bin: bin, Stdin: strings.NewReader(""), Stdout: &out, Stderr: &out}
	require.NoError(t, r.Run(context.Background(), mf))
	assert.Equal(t, "--model m --seed 7\n", out.String())
}

func TestRun_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "fail-chat")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 3\n"), 0o755))
	mf, err := modelfile.Load("FROM m")
	require.NoError(t, err)
	r := &Runner{Bin: bin, Stdin: strings.NewReader(""), Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	err = r.Run(context.Background(), mf)
	var ee *exec.ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 3, ee.ExitCode())
}
