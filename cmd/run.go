package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/packreload/cli"
	"github.com/grovetools/packreload/internal/daemon/pidfile"
	"github.com/grovetools/packreload/internal/host"
	"github.com/grovetools/packreload/logging"
	"github.com/grovetools/packreload/orchestrator"
	"github.com/grovetools/packreload/pkg/paths"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// NewRunCmd returns the run command, which hosts the orchestrator in the
// foreground until interrupted.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the dev folder and recompile packages",
		Long: `Runs the reloader in the foreground. Every tick the orchestrator is
driven once; sources under <workspace>/dev/<package> are recompiled into
the datapacks folder when they change, and the reload command runs after
each successful compile.

Examples:
  # Run with the default settings file
  packreload run

  # Run with an explicit settings file
  packreload run -s ./packreload.toml`,
		RunE: runE,
	}
}

func runE(cmd *cobra.Command, args []string) error {
	settings, err := cli.LoadSettings(cmd)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	interval, err := settings.Interval()
	if err != nil {
		return err
	}

	logger := logging.NewLogger("packreload")

	pid, err := pidfile.Acquire(paths.PidFilePath())
	if err != nil {
		return err
	}
	defer func() {
		if err := pid.Release(); err != nil {
			logger.WithError(err).Error("Failed to release pid file")
		}
	}()

	h := host.New(settings, host.WithConsole(cmd.OutOrStdout()))
	orch := orchestrator.New(h, orchestrator.Options{
		ConfigDir: settings.ConfigDir,
		Observer:  h.Store(),
	})
	defer orch.Close()

	srv := host.NewServer(h, settings.OperatorToken, logger)
	serveErr := make(chan error, 2)
	go func() { serveErr <- srv.ListenAndServe(paths.SocketPath()) }()
	if settings.Listen != "" {
		go func() { serveErr <- srv.ListenTCP(settings.Listen) }()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := host.NewLoop(orch, h, interval, func() int { return len(orch.Notifier().Pending()) }, logger)
	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()

	logger.WithField("pid", os.Getpid()).WithField("workspace", settings.Workspace).Info("Reloader started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received stop signal")
	case runErr = <-serveErr:
		if runErr != nil {
			logger.WithError(runErr).Error("Listener failed")
		}
		stop()
	}
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
	return runErr
}
