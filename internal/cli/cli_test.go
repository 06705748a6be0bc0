//go:build unix

package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiles/internal/daemon/daemontest"
	"tiles/internal/state"
)

type env struct {
	configDir string
	dataDir   string
}

// newEnv points the per-user directories at a temp tree and clears TILES_* overrides.
func newEnv(t *testing.T) env {
	t.Helper()
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	for _, k := range []string{"TILES_DAEMON_HOST", "TILES_DAEMON_PORT", "TILES_MEMORY_PATH", "TILES_LOG_LEVEL", "TILES_METRICS_TEXTFILE", "TILES_DEV"} {
		t.Setenv(k, "")
	}
	e := env{configDir: filepath.Join(base, "config", "tiles"), dataDir: filepath.Join(base, "data", "tiles")}
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	return e
}

func (e env) writeConfig(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "config.yaml"), []byte(body), 0o644))
}

func (e env) installModel(t *testing.T, name, modelfile string) string {
	t.Helper()
	dir := filepath.Join(e.dataDir, "registry", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, "Modelfile")
	require.NoError(t, os.WriteFile(p, []byte(modelfile), 0o644))
	return p
}

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), args, Options{Stdin: strings.NewReader(stdin), Stdout: &out, Stderr: &errOut})
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// liveChild starts a long sleep that is reaped as soon as it exits.
func liveChild(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() { _ = cmd.Wait(); close(done) }()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		<-done
	})
	return cmd.Process.Pid
}

func daemonConfig(t *testing.T, srv *daemontest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return fmt.Sprintf("daemon_host: %s\ndaemon_port: %s\npoll_interval_ms: 10\npoll_attempts: 3\nstop_grace_ms: 500\n", u.Hostname(), u.Port())
}

func TestHelpAndUsageErrors(t *testing.T) {
	newEnv(t)

	r := run(t, "", "--help")
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.stdout, "run")
	assert.Contains(t, r.stdout, "health")
	assert.NotContains(t, r.stdout, "Manage the daemon server", "hidden command must not be listed")

	r = run(t, "", "frobnicate")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "unknown command")

	r = run(t, "", "run")
	assert.Equal(t, ExitUsage, r.code)

	r = run(t, "", "ls", "--bogus")
	assert.Equal(t, ExitUsage, r.code)

	r = run(t, "", "stop")
	assert.Equal(t, ExitUsage, r.code)

	r = run(t, "", "stop", "a", "--server")
	assert.Equal(t, ExitUsage, r.code)
}

func TestListEmpty(t *testing.T) {
	e := newEnv(t)
	r := run(t, "", "ls")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "No running models\n", r.stdout)
	_, err := os.Stat(filepath.Join(e.configDir, "models.json"))
	assert.True(t, os.IsNotExist(err), "ls on an empty registry must not create the state file")
}

func TestListEvictsStaleRecords(t *testing.T) {
	e := newEnv(t)
	pid := liveChild(t)
	path := filepath.Join(e.configDir, "models.json")
	reg := state.New()
	reg.Add("alive", "org/alive", pid)
	reg.Add("dead", "org/dead", 99999999)
	require.NoError(t, state.Save(path, reg))

	r := run(t, "", "ls")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "NAME")
	assert.Contains(t, r.stdout, "alive")
	assert.Contains(t, r.stdout, strconv.Itoa(pid))
	assert.NotContains(t, r.stdout, "dead")

	got, err := state.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestListAvailable(t *testing.T) {
	e := newEnv(t)
	e.installModel(t, "memgpt", "FROM driaforall/mem-agent\n")
	e.installModel(t, "qwen", "FROM mlx-community/Qwen3-4B\n")

	r := run(t, "", "ls", "--available")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "memgpt")
	assert.Contains(t, r.stdout, "qwen")
	assert.Less(t, strings.Index(r.stdout, "memgpt"), strings.Index(r.stdout, "qwen"))
}

func TestStopUnknownModel(t *testing.T) {
	newEnv(t)
	r := run(t, "", "stop", "ghost")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, `model "ghost" is not running`)
}

func TestStopServerNotRunning(t *testing.T) {
	newEnv(t)
	r := run(t, "", "stop", "--server")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "Server is not running\n", r.stdout)
}

func TestRunModelfileSyntaxError(t *testing.T) {
	e := newEnv(t)
	e.installModel(t, "broken", "PARAMETER temperature 0.2\n")
	r := run(t, "", "run", "broken")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "FROM")
}

func TestRunUnknownModel(t *testing.T) {
	newEnv(t)
	r := run(t, "", "run", "nope")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "nope")
}

func TestRunForegroundPath(t *testing.T) {
	e := newEnv(t)
	bin := filepath.Join(t.TempDir(), "fake-chat")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"args: $*\"\n"), 0o755))
	e.writeConfig(t, "foreground_bin: "+bin+"\n")

	mfDir := filepath.Join(t.TempDir(), "scratch")
	require.NoError(t, os.MkdirAll(mfDir, 0o755))
	mf := filepath.Join(mfDir, "Modelfile")
	require.NoError(t, os.WriteFile(mf, []byte("FROM mlx-community/foo\nPARAMETER temperature 0.5\nSYSTEM \"be brief\"\n"), 0o644))

	r := run(t, "", "run", mf)
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "args: --model mlx-community/foo --temp 0.5 --system-prompt be brief")

	_, err := os.Stat(filepath.Join(e.configDir, "models.json"))
	assert.True(t, os.IsNotExist(err), "foreground runs are never registered")
}

func TestRunForegroundMissingBinary(t *testing.T) {
	e := newEnv(t)
	e.writeConfig(t, "foreground_bin: tiles-no-such-chat-binary\n")
	e.installModel(t, "qwen", "FROM mlx-community/Qwen3-4B\n")

	r := run(t, "", "run", "qwen")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "pip install mlx-lm")
}

func TestDaemonRunChatListStop(t *testing.T) {
	e := newEnv(t)
	srv := daemontest.New()
	defer srv.Close()
	e.writeConfig(t, daemonConfig(t, srv))
	e.installModel(t, "memgpt", "FROM driaforall/mem-agent\n")
	pid := liveChild(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "server.pid"), []byte(strconv.Itoa(pid)), 0o644))

	r := run(t, "hi\nexit\n", "run", "memgpt")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, fmt.Sprintf("Running memgpt (driaforall/mem-agent) on pid %d", pid))
	assert.Contains(t, r.stdout, ">> ok")
	assert.Contains(t, r.stdout, "Exiting interactive mode")
	assert.NotContains(t, r.stdout, "Server started")

	loads := srv.Loads()
	require.Len(t, loads, 1)
	assert.Equal(t, "driaforall/mem-agent", loads[0].Model)
	assert.Equal(t, filepath.Join(e.dataDir, "memory"), loads[0].MemoryPath)
	chats := srv.Chats()
	require.Len(t, chats, 1)
	require.Len(t, chats[0].Messages, 1)
	assert.Equal(t, "hi", chats[0].Messages[0].Content)

	r = run(t, "", "run", "memgpt", "-d")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "already running")

	r = run(t, "", "ls")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "memgpt")

	r = run(t, "", "stop", "--server")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "--force")

	r = run(t, "", "stop", "memgpt")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "Stopped memgpt\n", r.stdout)
	_, err := os.Stat(filepath.Join(e.configDir, "server.pid"))
	assert.True(t, os.IsNotExist(err), "last stop must take the daemon down")
}

func TestMemoryPathOverrideIsRemembered(t *testing.T) {
	e := newEnv(t)
	srv := daemontest.New()
	defer srv.Close()
	e.writeConfig(t, daemonConfig(t, srv))
	e.installModel(t, "memgpt", "FROM driaforall/mem-agent\n")
	pid := liveChild(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "server.pid"), []byte(strconv.Itoa(pid)), 0o644))

	notes := filepath.Join(t.TempDir(), "notes")
	t.Setenv("TILES_MEMORY_PATH", notes)
	r := run(t, "", "run", "memgpt", "-d")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.DirExists(t, notes)
	marker, err := os.ReadFile(filepath.Join(e.configDir, ".memory_path"))
	require.NoError(t, err)
	assert.Equal(t, notes, string(marker))

	// Drop the record without taking the daemon down.
	require.NoError(t, state.Save(filepath.Join(e.configDir, "models.json"), state.New()))
	t.Setenv("TILES_MEMORY_PATH", "")
	r = run(t, "", "run", "memgpt", "-d")
	require.Equal(t, ExitOK, r.code, r.stderr)

	loads := srv.Loads()
	require.Len(t, loads, 2)
	assert.Equal(t, notes, loads[0].MemoryPath)
	assert.Equal(t, notes, loads[1].MemoryPath)
}

func TestStartReportsRunningDaemon(t *testing.T) {
	e := newEnv(t)
	srv := daemontest.New()
	defer srv.Close()
	e.writeConfig(t, daemonConfig(t, srv))

	r := run(t, "", "start")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "Server is already running\n", r.stdout)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	bin := t.TempDir()
	for _, name := range []string{"uv", "mlx_lm.chat"} {
		require.NoError(t, os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"), 0o755))
	}
	srv := daemontest.New()
	defer srv.Close()
	e.writeConfig(t, daemonConfig(t, srv))

	t.Setenv("PATH", bin)
	r := run(t, "", "health")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "[ok] uv")
	assert.Contains(t, r.stdout, "[ok] mlx_lm.chat")
	assert.Contains(t, r.stdout, "[ok] daemon")

	t.Setenv("PATH", t.TempDir())
	r = run(t, "", "health")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stdout, "[missing] uv")
}

func TestMetricsTextfile(t *testing.T) {
	newEnv(t)
	out := filepath.Join(t.TempDir(), "tiles.prom")
	t.Setenv("TILES_METRICS_TEXTFILE", out)

	r := run(t, "", "ls")
	require.Equal(t, ExitOK, r.code, r.stderr)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `tiles_lifecycle_operations_total{op="list",result="ok"} 1`)
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "memgpt", modelName("memgpt", "/data/registry/memgpt/Modelfile"))
	assert.Equal(t, "scratch", modelName("./scratch/Modelfile", "/work/scratch/Modelfile"))
	assert.Equal(t, "scratch", modelName("./scratch", "/work/scratch/Modelfile"))
}
