package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/packreload/command"
	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/notify"
	"github.com/grovetools/packreload/testutil"
	"github.com/grovetools/packreload/toolchain"
	"github.com/grovetools/packreload/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type listenerID string

func (l listenerID) ID() string { return string(l) }

type fakeListeners struct {
	mu         sync.Mutex
	privileged bool
	delivered  []notify.Notification
}

func (f *fakeListeners) Connected() []notify.Listener {
	return []notify.Listener{listenerID("operator")}
}

func (f *fakeListeners) IsPrivileged(notify.Listener) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.privileged
}

func (f *fakeListeners) Broadcast(n notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, n)
}

func (f *fakeListeners) setPrivileged(p bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.privileged = p
}

func (f *fakeListeners) errors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.delivered {
		if n.IsError {
			out = append(out, n.Text)
		}
	}
	return out
}

func (f *fakeListeners) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.delivered {
		out = append(out, n.Text)
	}
	return out
}

type fakeHost struct {
	workspace   string
	listeners   *fakeListeners
	journal     *journal
	reloadErr   error
	reloadPanic bool
	console     []string
}

func (h *fakeHost) WorkspaceRoot() string { return h.workspace }
func (h *fakeHost) DatapacksDir() string { return filepath.Join(h.workspace, "datapacks") }
func (h *fakeHost) Registry() watch.Registry { return nil }
func (h *fakeHost) Listeners() notify.Listeners { return h.listeners }
func (h *fakeHost) LogConsole(line string) { h.console = append(h.console, line) }
func (h *fakeHost) Reload(context.Context) error {
	if h.reloadPanic {
		panic("reload exploded")
	}
	h.journal.add("reload")
	return h.reloadErr
}

// scriptedRunner plays the interpreter and the compiler.
type scriptedRunner struct {
	journal         *journal
	interpreterExit int
	// compileExit maps a package directory name to the compiler exit code.
	compileExit map[string]int
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	switch {
	case len(args) == 1 && args[0] == "-V":
		return command.Result{ExitCode: r.interpreterExit, Stdout: []byte("Python 3.12.1\n")}, nil
	case len(args) == 2 && args[1] == "-V":
		return command.Result{Stdout: []byte("PackScript 1.4.0\n")}, nil
	case len(args) == 6 && args[1] == "c":
		pkg := filepath.Base(args[3])
		r.journal.add("compile:" + pkg)
		if code := r.compileExit[pkg]; code != 0 {
			return command.Result{ExitCode: code, Stderr: []byte("error in " + pkg + ".dps\n")}, nil
		}
		return command.Result{}, nil
	}
	return command.Result{ExitCode: 127}, nil
}

type fixture struct {
	host      *fakeHost
	runner    *scriptedRunner
	listeners *fakeListeners
	journal   *journal
	configDir string
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testutil.IsolateHome(t)

	workspace, configDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(config.ToolchainPath(configDir), []byte("python=python3\nauto-update=false\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, toolchain.DevDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, toolchain.DevDirName, toolchain.CompilerFileName), []byte("#"), 0644))

	j := &journal{}
	listeners := &fakeListeners{privileged: true}
	host := &fakeHost{workspace: workspace, listeners: listeners, journal: j}
	runner := &scriptedRunner{journal: j, compileExit: map[string]int{}}

	f := &fixture{host: host, runner: runner, listeners: listeners, journal: j, configDir: configDir}
	f.orch = New(host, Options{
		ConfigDir:       configDir,
		Runner:          runner,
		ResolverOptions: []toolchain.Option{toolchain.WithRunner(runner)},
	})
	return f
}

// addPackage creates dev/<name> with one source file at mtime.
func (f *fixture) addPackage(t *testing.T, name string, mtime time.Time) string {
	t.Helper()
	dir := testutil.WritePackage(t, filepath.Join(f.host.workspace, toolchain.DevDirName), name, true)
	f.touch(t, name, "main.dps", mtime)
	return dir
}

func (f *fixture) touch(t *testing.T, pkg, file string, mtime time.Time) {
	t.Helper()
	testutil.WriteSource(t, filepath.Join(f.host.workspace, toolchain.DevDirName, pkg, watch.SourceDir, "ns", file), mtime)
}

func TestScanPassCompilesStalePackagesInOrder(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base)
	f.addPackage(t, "beta", base.Add(time.Second))
	f.addPackage(t, "gamma", base.Add(2*time.Second))
	f.runner.compileExit["beta"] = 1

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	require.True(t, f.orch.Location().Ready)
	f.orch.Tick(ctx, 1)

	assert.Equal(t, []string{
		"compile:alpha", "reload",
		"compile:beta",
		"compile:gamma", "reload",
	}, f.journal.list())
	assert.Equal(t, []string{"error in beta.dps"}, f.listeners.errors())
	assert.Contains(t, f.listeners.texts(), "Compiling 'file/alpha'")
	assert.Contains(t, f.listeners.texts(), "Reloaded!")
	assert.True(t, f.orch.Watermark().Equal(base.Add(2*time.Second)))

	require.Len(t, f.host.console, 3)
	assert.True(t, strings.HasPrefix(f.host.console[0], "python3 "))
	assert.Contains(t, f.host.console[0], " c -i ")
	assert.Contains(t, f.host.console[0], filepath.Join(f.host.workspace, "datapacks", "alpha"))
}

func TestScanPassCompilesEveryStalePackage(t *testing.T) {
	tests := []struct {
		name   string
		mtimes map[string]time.Time
	}{
		{
			name: "newest listed first",
			mtimes: map[string]time.Time{
				"alpha": base.Add(2 * time.Second),
				"beta":  base.Add(time.Second),
				"gamma": base,
			},
		},
		{
			name: "equal mtimes",
			mtimes: map[string]time.Time{
				"alpha": base,
				"beta":  base,
				"gamma": base,
			},
		},
		{
			name: "newest listed in the middle",
			mtimes: map[string]time.Time{
				"alpha": base,
				"beta":  base.Add(time.Hour),
				"gamma": base.Add(time.Minute),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			newest := time.Time{}
			for name, mtime := range tt.mtimes {
				f.addPackage(t, name, mtime)
				if mtime.After(newest) {
					newest = mtime
				}
			}

			ctx := context.Background()
			f.orch.Tick(ctx, 0)
			f.orch.Tick(ctx, 1)

			assert.Equal(t, []string{
				"compile:alpha", "reload",
				"compile:beta", "reload",
				"compile:gamma", "reload",
			}, f.journal.list())
			assert.True(t, f.orch.Watermark().Equal(newest))

			// The next pass sees nothing stale.
			f.orch.Tick(ctx, 31)
			assert.Len(t, f.journal.list(), 6)
		})
	}
}

func TestScanPassOnlyRunsOnCadence(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base)

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	for tick := 2; tick <= 30; tick++ {
		f.orch.Tick(ctx, tick)
	}
	assert.Empty(t, f.journal.list())

	f.orch.Tick(ctx, 31)
	assert.Equal(t, []string{"compile:alpha", "reload"}, f.journal.list())
}

func TestWatermarkIsMonotonic(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base.Add(time.Minute))
	f.addPackage(t, "beta", base.Add(time.Minute))

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	f.orch.Tick(ctx, 1)
	assert.Equal(t, []string{"compile:alpha", "reload", "compile:beta", "reload"}, f.journal.list())
	first := f.orch.Watermark()
	assert.True(t, first.Equal(base.Add(time.Minute)))

	// Nothing changed.
	f.orch.Tick(ctx, 31)
	assert.Len(t, f.journal.list(), 4)
	assert.True(t, f.orch.Watermark().Equal(first))

	// An older edit never moves the watermark back or triggers a compile.
	f.touch(t, "beta", "old.dps", base)
	f.orch.Tick(ctx, 61)
	assert.Len(t, f.journal.list(), 4)
	assert.True(t, f.orch.Watermark().Equal(first))

	f.touch(t, "beta", "main.dps", base.Add(2*time.Minute))
	f.orch.Tick(ctx, 91)
	assert.Equal(t, []string{
		"compile:alpha", "reload", "compile:beta", "reload",
		"compile:beta", "reload",
	}, f.journal.list())
	assert.True(t, f.orch.Watermark().After(first))
}

func TestFailedCompileIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base)
	f.runner.compileExit["alpha"] = 2

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	f.orch.Tick(ctx, 1)
	f.orch.Tick(ctx, 31)

	assert.Equal(t, []string{"compile:alpha"}, f.journal.list())
	assert.True(t, f.orch.Watermark().Equal(base))
}

func TestSharedWatermarkSkipsOlderNewPackage(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base.Add(time.Hour))

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	f.orch.Tick(ctx, 1)

	f.addPackage(t, "late", base)
	f.orch.Tick(ctx, 31)
	assert.Equal(t, []string{"compile:alpha", "reload"}, f.journal.list())
}

func TestPackageWithoutSourceDirIsIgnored(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.host.workspace, toolchain.DevDirName, "bare")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, watch.DescriptorFile), []byte(`{}`), 0644))

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	f.orch.Tick(ctx, 1)

	assert.Empty(t, f.journal.list())
	assert.Empty(t, f.listeners.errors())
}

func TestInterpreterFailureDisablesCompiles(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base)
	f.runner.interpreterExit = 1

	ctx := context.Background()
	for _, tick := range []int{0, 1, 31, 61} {
		f.orch.Tick(ctx, tick)
	}

	assert.Empty(t, f.journal.list())
	errs := f.listeners.errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `"python3"`)
	assert.False(t, f.orch.Location().Ready)
}

func TestUnreadableConfigAbortsBootstrap(t *testing.T) {
	f := newFixture(t)
	path := config.ToolchainPath(f.configDir)
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))
	f.addPackage(t, "alpha", base)

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	f.orch.Tick(ctx, 1)

	assert.Empty(t, f.journal.list())
	errs := f.listeners.errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "error reading config file")
}

func TestBacklogFlushedOnScanTick(t *testing.T) {
	f := newFixture(t)
	f.listeners.setPrivileged(false)

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	assert.Empty(t, f.listeners.texts())
	pending := f.orch.Notifier().Pending()
	require.NotEmpty(t, pending)

	f.listeners.setPrivileged(true)
	f.orch.Tick(ctx, 1)

	delivered := f.listeners.texts()
	require.Len(t, delivered, len(pending))
	for i, n := range pending {
		assert.Equal(t, n.Text, delivered[i])
	}
	assert.Empty(t, f.orch.Notifier().Pending())
}

func TestReloadFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base)
	f.host.reloadErr = assert.AnError

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	f.orch.Tick(ctx, 1)

	assert.Equal(t, []string{assert.AnError.Error()}, f.listeners.errors())
	assert.NotContains(t, f.listeners.texts(), "Reloaded!")
}

func TestTickRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base)
	f.host.reloadPanic = true

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	assert.NotPanics(t, func() { f.orch.Tick(ctx, 1) })

	f.host.reloadPanic = false
	f.touch(t, "alpha", "main.dps", base.Add(time.Second))
	f.orch.Tick(ctx, 31)
	assert.Equal(t, []string{"compile:alpha", "compile:alpha", "reload"}, f.journal.list())
}

func TestObserverSeesLifecycle(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base)

	var events []EventType
	f.orch.observer = ObserverFunc(func(e Event) { events = append(events, e.Type) })

	ctx := context.Background()
	f.orch.Tick(ctx, 0)
	f.orch.Tick(ctx, 1)

	assert.Equal(t, []EventType{EventBootstrapped, EventCompileStarted, EventReloaded}, events)
}

func TestClosedOrchestratorIgnoresTicks(t *testing.T) {
	f := newFixture(t)
	f.addPackage(t, "alpha", base)

	require.NoError(t, f.orch.Close())
	f.orch.Tick(context.Background(), 0)
	f.orch.Tick(context.Background(), 1)

	assert.Empty(t, f.journal.list())
	assert.False(t, f.orch.Location().Ready)
}
