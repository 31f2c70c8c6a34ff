// Package toolchain locates, version-checks and self-updates the external
// compiler script.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/packreload/command"
	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/errors"
	"github.com/grovetools/packreload/logging"
	"github.com/sirupsen/logrus"
)

const (
	// CompilerFileName is the compiler script looked up in the dev and config dirs.
	CompilerFileName = "packscript.py"
	// DevDirName is the workspace subdirectory holding source packages.
	DevDirName = "dev"

	versionOutputLimit = 200
)

// Notifier receives operator-facing messages.
type Notifier interface {
	Info(text string)
	Error(text string)
}

// Location is the outcome of resolution.
type Location struct {
	// Interpreter runs the compiler.
	Interpreter string
	// DevDir is the workspace dev directory.
	DevDir string
	// Path is the compiler script.
	Path string
	// Version is the compiler's version token, or the newly installed release.
	Version string
	// Ready is true only if Path exists and every check passed.
	Ready bool
}

// Resolver finds and prepares the compiler.
type Resolver struct {
	runner     command.Runner
	notifier   Notifier
	releases   *ReleaseClient
	downloader *Downloader
	logger     *logrus.Entry
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRunner overrides the process runner.
func WithRunner(r command.Runner) Option {
	return func(res *Resolver) { res.runner = r }
}

// WithReleaseClient overrides the release metadata client.
func WithReleaseClient(c *ReleaseClient) Option {
	return func(res *Resolver) { res.releases = c }
}

// WithDownloadURL overrides where the compiler is downloaded from.
func WithDownloadURL(url string) Option {
	return func(res *Resolver) { res.downloader.URL = url }
}

// WithLogger overrides the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(res *Resolver) {
		res.logger = l
		res.downloader.logger = l
	}
}

// NewResolver creates a Resolver reporting through notifier.
func NewResolver(notifier Notifier, opts ...Option) *Resolver {
	logger := logging.NewLogger("toolchain")
	r := &Resolver{
		runner:     command.NewRunner(command.WithStdoutLimit(versionOutputLimit)),
		notifier:   notifier,
		releases:   NewReleaseClient(),
		downloader: NewDownloader(notifier, logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve locates the compiler for workspaceRoot, checks the interpreter and
// the compiler version, and updates the compiler when auto-update is on and
// a newer release exists. Failures are reported to the notifier and returned;
// the returned Location is not Ready in that case.
func (r *Resolver) Resolve(ctx context.Context, workspaceRoot, configDir string, cfg *config.Toolchain) (Location, error) {
	loc := Location{
		Interpreter: cfg.Interpreter,
		DevDir:      filepath.Join(workspaceRoot, DevDirName),
	}
	if err := os.MkdirAll(loc.DevDir, 0755); err != nil {
		return loc, fmt.Errorf("create dev directory: %w", err)
	}
	devCompiler := filepath.Join(loc.DevDir, CompilerFileName)
	loc.Path = devCompiler

	if err := r.checkInterpreter(ctx, cfg.Interpreter); err != nil {
		return loc, err
	}

	if !exists(loc.Path) {
		loc.Path = filepath.Join(configDir, CompilerFileName)
	}
	if !exists(loc.Path) {
		loc.Path = devCompiler
		if !cfg.AutoUpdate || !r.downloader.Replace(ctx, loc.Path) {
			r.notifier.Error("Packscript not detected, please add it to the root of the dev folder, (under the world) " +
				"or the config folder.")
			return loc, errors.CompilerMissing(devCompiler, filepath.Join(configDir, CompilerFileName))
		}
	}

	versionLine, err := r.compilerVersion(ctx, cfg.Interpreter, loc.Path)
	if err != nil {
		return loc, err
	}
	loc.Version = versionToken(versionLine)

	if cfg.AutoUpdate {
		latest, ok := r.releases.Latest(ctx)
		switch {
		case !ok:
			r.logger.Debug("Latest release unknown, keeping current compiler")
			r.notifier.Info(versionLine)
		case latest == loc.Version:
			r.notifier.Info(versionLine)
		default:
			r.logger.WithFields(logrus.Fields{"current": loc.Version, "latest": latest}).Info("Updating compiler")
			if r.downloader.Replace(ctx, loc.Path) {
				loc.Version = latest
				r.notifier.Info("PackScript " + latest)
			} else {
				r.notifier.Info(versionLine)
			}
		}
	} else {
		r.notifier.Info(versionLine)
	}

	loc.Ready = exists(loc.Path)
	return loc, nil
}

// checkInterpreter runs `<interpreter> -V` and posts its version line.
func (r *Resolver) checkInterpreter(ctx context.Context, interpreter string) error {
	res, err := r.runner.Run(ctx, interpreter, "-V")
	if err != nil || !res.Success() {
		r.logger.WithError(err).WithField("interpreter", interpreter).Error("Interpreter check failed")
		r.notifier.Error(fmt.Sprintf("Python3 is not installed/misconfigured in %q, please install it/add it to your path, "+
			"or point your config file to the correct location. Restart the server/world when done.", interpreter))
		return errors.InterpreterUnavailable(interpreter, res.ExitCode)
	}
	if line := strings.TrimSpace(string(limit(res.Stdout))); line != "" {
		r.notifier.Info(line)
	}
	return nil
}

// compilerVersion runs `<interpreter> <compiler> -V` and returns the trimmed output.
func (r *Resolver) compilerVersion(ctx context.Context, interpreter, compiler string) (string, error) {
	r.logger.WithField("command", command.CommandLine(interpreter, compiler, "-V")).Info("Querying compiler version")
	res, err := r.runner.Run(ctx, interpreter, compiler, "-V")
	if err != nil || !res.Success() {
		stderr := strings.TrimSpace(string(res.Stderr))
		if err != nil && stderr == "" {
			stderr = err.Error()
		}
		r.notifier.Error("Could not get version of packscript")
		r.notifier.Error(stderr)
		return "", errors.CompilerVersion(compiler, stderr)
	}
	return strings.TrimSpace(string(limit(res.Stdout))), nil
}

// versionToken returns the last whitespace-separated field of the first line.
func versionToken(output string) string {
	first, _, _ := strings.Cut(output, "\n")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func limit(b []byte) []byte {
	if len(b) > versionOutputLimit {
		return b[:versionOutputLimit]
	}
	return b
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
