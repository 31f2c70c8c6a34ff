package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/internal/host"
	"github.com/grovetools/packreload/logging"
	"github.com/grovetools/packreload/orchestrator"
	"github.com/grovetools/packreload/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestStatusAndStopWhenNotRunning(t *testing.T) {
	testutil.IsolateHome(t)
	assert.Equal(t, "Reloader is not running\n", execute(t, "status"))
	assert.Equal(t, "Reloader is not running\n", execute(t, "stop"))
}

func TestConfigCommand(t *testing.T) {
	testutil.IsolateHome(t)
	workspace := t.TempDir()
	settingsFile := filepath.Join(t.TempDir(), "host.toml")
	require.NoError(t, os.WriteFile(settingsFile, []byte(`
workspace = "`+workspace+`"
listen = "127.0.0.1:7878"
operator_token = "hunter2"
`), 0644))

	out := execute(t, "config", "-s", settingsFile)
	assert.NotContains(t, out, "hunter2")

	var view struct {
		Paths     map[string]string `yaml:"paths"`
		Settings  config.Settings   `yaml:"settings"`
		Toolchain config.Toolchain  `yaml:"toolchain"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, workspace, view.Settings.Workspace)
	assert.Equal(t, filepath.Join(workspace, "dev"), view.Paths["dev"])
	assert.Equal(t, config.DefaultToolchain(), view.Toolchain)
	assert.FileExists(t, view.Paths["toolchain"])
}

func TestFetchStatusOverSocket(t *testing.T) {
	testutil.IsolateHome(t)
	dir, err := os.MkdirTemp("", "pr")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "s.sock")

	privileged := false
	h := host.New(&config.Settings{
		Workspace:         t.TempDir(),
		DatapacksDir:      t.TempDir(),
		TickInterval:      "50ms",
		ConsolePrivileged: &privileged,
	}, host.WithConsole(&bytes.Buffer{}))
	h.Store().Observe(orchestrator.Event{Type: orchestrator.EventBootstrapped, Ready: true, Version: "1.4.0", Time: time.Now()})

	srv := host.NewServer(h, "", logging.NewLogger("test"))
	go func() { _ = srv.ListenAndServe(socket) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			conn.Close()
		}
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	st, err := fetchStatus(context.Background(), socket)
	require.NoError(t, err)
	assert.True(t, st.Ready)
	assert.Equal(t, "1.4.0", st.Version)

	var out bytes.Buffer
	printStatus(logging.NewPrettyLogger(&out), 1234, st)
	assert.Contains(t, out.String(), "Reloader is running (PID 1234)")
	assert.Contains(t, out.String(), "Compiler: 1.4.0")
}

func TestFetchStatusNoServer(t *testing.T) {
	_, err := fetchStatus(context.Background(), filepath.Join(t.TempDir(), "absent.sock"))
	assert.Error(t, err)
}

func TestPrintLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packreload.log")
	lines := []string{
		`2026-10-19 10:00:00 [INFO] [host] Listening for local clients`,
		`{"component":"orchestrator","level":"info","msg":"Compiling","package":"file/alpha","time":"2026-10-19T10:00:01Z"}`,
		`{"component":"toolchain","level":"warning","msg":"Download failed","time":"2026-10-19T10:00:02Z"}`,
		``,
		`2026-10-19 10:00:03 [ERROR] [orchestrator] Compile failed`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, printLastLines(path, 2, &logPrinter{out: &out}))
	assert.Equal(t, "2026-10-19 10:00:03 [ERROR] [orchestrator] Compile failed\n", out.String())

	out.Reset()
	require.NoError(t, printLastLines(path, -1, &logPrinter{out: &out, components: []string{"orchestrator"}}))
	got := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "INFO [orchestrator] Compiling")
	assert.Contains(t, got[0], "package=file/alpha")
	assert.Contains(t, got[1], "Compile failed")

	out.Reset()
	require.NoError(t, printLastLines(path, -1, &logPrinter{out: &out, jsonOutput: true, components: []string{"toolchain"}}))
	assert.Equal(t, lines[2]+"\n", out.String())
}

func TestTextComponent(t *testing.T) {
	assert.Equal(t, "host", textComponent("2026-10-19 10:00:00 [INFO] [host] msg"))
	assert.Equal(t, "", textComponent("2026-10-19 10:00:00 [INFO] msg"))
	assert.Equal(t, "", textComponent("plain"))
}

func TestConfigSchema(t *testing.T) {
	testutil.IsolateHome(t)
	out := execute(t, "config", "--schema")
	assert.Contains(t, out, `"title": "packreload settings"`)
	assert.Contains(t, out, `"tick_interval"`)
}
