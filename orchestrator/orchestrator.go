// Package orchestrator keeps source packages compiled and the host reloaded.
//
// The host drives an Orchestrator by calling Tick once per host tick. Tick 0
// bootstraps the compiler toolchain. Every ScanEvery ticks, offset by one, a
// scan pass flushes the notification backlog and recompiles stale packages.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/packreload/command"
	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/errors"
	"github.com/grovetools/packreload/logging"
	"github.com/grovetools/packreload/notify"
	"github.com/grovetools/packreload/pkg/paths"
	"github.com/grovetools/packreload/toolchain"
	"github.com/grovetools/packreload/watch"
	"github.com/sirupsen/logrus"
)

// ScanEvery is the scan cadence in ticks.
const ScanEvery = 30

// Host is what the orchestrator needs from the application it runs in.
type Host interface {
	// WorkspaceRoot is the directory holding the dev directory.
	WorkspaceRoot() string
	// DatapacksDir receives compiled output packages.
	DatapacksDir() string
	// Registry reports which packs the host has loaded.
	Registry() watch.Registry
	// Listeners delivers notifications.
	Listeners() notify.Listeners
	// Reload asks the host to reload its assets.
	Reload(ctx context.Context) error
	// LogConsole writes a line to the host console.
	LogConsole(line string)
}

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	// ConfigDir holds the toolchain config file and the fallback compiler.
	ConfigDir string
	// Runner runs the compiler. The resolver gets its own runner unless
	// overridden through ResolverOptions.
	Runner command.Runner
	// ResolverOptions are passed to toolchain.NewResolver.
	ResolverOptions []toolchain.Option
	// Observer receives lifecycle events.
	Observer Observer
	// Logger overrides the orchestrator logger.
	Logger *logrus.Entry
}

// Orchestrator holds the state shared across ticks.
type Orchestrator struct {
	host      Host
	notifier  *notify.Notifier
	resolver  *toolchain.Resolver
	runner    command.Runner
	scanner   *watch.Scanner
	observer  Observer
	configDir string
	logger    *logrus.Entry

	mu        sync.Mutex
	watermark time.Time
	location  toolchain.Location
	closed    bool
}

// New creates an Orchestrator for host.
func New(host Host, opts Options) *Orchestrator {
	o := &Orchestrator{
		host:      host,
		runner:    opts.Runner,
		observer:  opts.Observer,
		configDir: opts.ConfigDir,
		logger:    opts.Logger,
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("orchestrator")
	}
	if o.runner == nil {
		o.runner = command.NewRunner()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.configDir == "" {
		o.configDir = paths.ConfigDir()
	}
	o.notifier = notify.New(host.Listeners())
	o.resolver = toolchain.NewResolver(o.notifier, opts.ResolverOptions...)
	o.scanner = watch.NewScanner(host.Registry(), host.DatapacksDir())
	return o
}

// Notifier returns the notifier shared by every component.
func (o *Orchestrator) Notifier() *notify.Notifier {
	return o.notifier
}

// Tick runs the work scheduled for tick. It never fails: errors and panics
// are logged and swallowed so the host loop keeps going.
func (o *Orchestrator) Tick(ctx context.Context, tick int) {
	if o.isClosed() {
		return
	}
	logger := o.logger.WithField("tick", tick)
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).WithField("stack", string(debug.Stack())).Error("Tick panicked")
		}
	}()

	var err error
	switch {
	case tick == 0:
		err = o.Bootstrap(ctx)
	case tick%ScanEvery == 1:
		err = o.ScanPass(ctx)
	default:
		return
	}
	if err != nil {
		logger.WithError(err).Error("Tick failed")
	}
}

// Bootstrap loads the toolchain config and resolves the compiler. It runs
// once per process; a failure leaves the orchestrator idle until restart.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	cfg, err := config.LoadToolchain(o.configDir)
	if err != nil {
		o.notifier.Error(errors.Message(err))
		o.observer.Observe(Event{Type: EventBootstrapped, Time: time.Now(), Err: errors.Message(err)})
		return err
	}

	loc, err := o.resolver.Resolve(ctx, o.host.WorkspaceRoot(), o.configDir, cfg)
	o.mu.Lock()
	o.location = loc
	o.mu.Unlock()

	ev := Event{Type: EventBootstrapped, Time: time.Now(), Ready: loc.Ready, Version: loc.Version}
	if err != nil {
		ev.Err = errors.Message(err)
	}
	o.observer.Observe(ev)

	o.logger.WithFields(logrus.Fields{
		"compiler": loc.Path,
		"version":  loc.Version,
		"ready":    loc.Ready,
	}).Info("Bootstrap finished")
	return err
}

// ScanPass flushes the backlog and compiles every stale package, one at a
// time, in scan order. Staleness is judged against the watermark as it stood
// when the pass began.
func (o *Orchestrator) ScanPass(ctx context.Context) error {
	o.notifier.FlushBacklog()

	loc := o.Location()
	if !loc.Ready {
		return nil
	}

	pkgs, err := o.scanner.Scan(loc.DevDir)
	if err != nil {
		return err
	}
	threshold := o.Watermark()
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.compileIfStale(ctx, loc, pkg, threshold)
	}
	return nil
}

func (o *Orchestrator) compileIfStale(ctx context.Context, loc toolchain.Location, pkg watch.Package, threshold time.Time) {
	stale, newest := watch.IsStale(pkg, threshold)
	if !stale {
		return
	}
	// Advance first so a failing compile is not retried on the same sources.
	watermark := o.advance(newest)

	logger := o.logger.WithField("package", pkg.Name)
	o.notifier.Info(fmt.Sprintf("Compiling '%s'", pkg.Name))
	o.observer.Observe(Event{Type: EventCompileStarted, Package: pkg.Name, Time: time.Now(), Watermark: watermark})

	args := []string{loc.Path, "c", "-i", pkg.SourceDir, "-o", pkg.OutputDir}
	o.host.LogConsole(command.CommandLine(loc.Interpreter, args...))

	res, err := o.runner.Run(ctx, loc.Interpreter, args...)
	if err == nil && !res.Success() {
		err = compileFailure(res)
	}
	if err != nil {
		logger.WithError(err).Warn("Compile failed")
		o.notifier.Error(errors.Message(err))
		o.observer.Observe(Event{Type: EventCompileFailed, Package: pkg.Name, Time: time.Now(), Err: errors.Message(err)})
		return
	}

	if err := o.host.Reload(ctx); err != nil {
		logger.WithError(err).Warn("Reload failed")
		o.notifier.Error(errors.Message(err))
		o.observer.Observe(Event{Type: EventReloadFailed, Package: pkg.Name, Time: time.Now(), Err: errors.Message(err)})
		return
	}
	logger.Info("Compiled and reloaded")
	o.notifier.Info("Reloaded!")
	o.observer.Observe(Event{Type: EventReloaded, Package: pkg.Name, Time: time.Now()})
}

// compileFailure turns a non-zero compiler exit into an error carrying its
// stderr verbatim.
func compileFailure(res command.Result) error {
	stderr := strings.TrimRight(string(res.Stderr), "\r\n")
	if stderr == "" {
		stderr = fmt.Sprintf("compiler exited with status %d", res.ExitCode)
	}
	return errors.CompileFailed(res.ExitCode, stderr)
}

// Watermark returns the newest source time already compiled.
func (o *Orchestrator) Watermark() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.watermark
}

// advance moves the watermark forward to t. It never moves backwards.
func (o *Orchestrator) advance(t time.Time) time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t.After(o.watermark) {
		o.watermark = t
	}
	return o.watermark
}

// Location returns the compiler resolved at bootstrap.
func (o *Orchestrator) Location() toolchain.Location {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.location
}

// Close stops the orchestrator from acting on later ticks.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
