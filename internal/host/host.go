// Package host is a standalone application that embeds the orchestrator.
//
// It stands in for a game server: it keeps a registry of loaded packs, runs a
// configurable reload command, and exposes notification listeners on the
// console and over websockets.
package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grovetools/packreload/command"
	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/errors"
	"github.com/grovetools/packreload/logging"
	"github.com/grovetools/packreload/notify"
	"github.com/grovetools/packreload/watch"
	"github.com/sirupsen/logrus"
)

// Host implements orchestrator.Host.
type Host struct {
	settings *config.Settings
	registry *Registry
	hub      *Hub
	store    *Store
	runner   command.Runner
	console  *logging.PrettyLogger
	logger   *logrus.Entry
}

// Option configures a Host.
type Option func(*Host)

// WithRunner overrides the runner used for the reload command.
func WithRunner(r command.Runner) Option {
	return func(h *Host) { h.runner = r }
}

// WithConsole overrides where console output goes.
func WithConsole(w io.Writer) Option {
	return func(h *Host) { h.console = logging.NewPrettyLogger(w) }
}

// New creates a Host from settings. The console listener is attached
// immediately and the registry is filled from the datapacks directory.
func New(settings *config.Settings, opts ...Option) *Host {
	h := &Host{
		settings: settings,
		registry: NewRegistry(),
		hub:      NewHub(),
		store:    NewStore(),
		runner:   command.NewRunner(command.WithExecutor(&command.RealExecutor{Dir: settings.Workspace})),
		console:  logging.NewPrettyLogger(os.Stdout),
		logger:   logging.NewLogger("host"),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.hub.AttachConsole(h.console, settings.IsConsolePrivileged())
	if err := h.registry.Refresh(settings.DatapacksDir); err != nil {
		h.logger.WithError(err).Warn("Failed to list datapacks")
	}
	return h
}

// WorkspaceRoot implements orchestrator.Host.
func (h *Host) WorkspaceRoot() string { return h.settings.Workspace }

// DatapacksDir implements orchestrator.Host.
func (h *Host) DatapacksDir() string { return h.settings.DatapacksDir }

// Registry implements orchestrator.Host.
func (h *Host) Registry() watch.Registry { return h.registry }

// Listeners implements orchestrator.Host.
func (h *Host) Listeners() notify.Listeners { return h.hub }

// Hub returns the listener hub.
func (h *Host) Hub() *Hub { return h.hub }

// Store returns the status store.
func (h *Host) Store() *Store { return h.store }

// Packs returns the registered pack names.
func (h *Host) Packs() []string { return h.registry.Names() }

// LogConsole implements orchestrator.Host.
func (h *Host) LogConsole(line string) {
	h.logger.Info(line)
}

// Reload implements orchestrator.Host. Every known pack is unavailable while
// the reload command runs; the registry is rebuilt afterwards either way.
func (h *Host) Reload(ctx context.Context) error {
	h.registry.MarkAllUnavailable()
	defer func() {
		if err := h.registry.Refresh(h.settings.DatapacksDir); err != nil {
			h.logger.WithError(err).Warn("Failed to list datapacks")
		}
	}()

	argv := h.settings.ReloadCommand
	if len(argv) == 0 {
		return nil
	}

	h.logger.WithField("command", command.CommandLine(argv[0], argv[1:]...)).Debug("Running reload command")
	res, err := h.runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return errors.ReloadFailed(err)
	}
	if !res.Success() {
		stderr := strings.TrimSpace(string(res.Stderr))
		return errors.ReloadFailed(fmt.Errorf("%s exited with status %d: %s", argv[0], res.ExitCode, stderr)).
			WithDetail("exitCode", res.ExitCode)
	}
	return nil
}
