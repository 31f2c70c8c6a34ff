package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"strings"

	reloaderrors "github.com/grovetools/packreload/errors"
)

// Result is the outcome of a process that was started and waited on.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports whether the process exited 0.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Runner runs a process to completion.
//
// A non-zero exit is not an error: it is reported through Result.ExitCode.
// Errors are reserved for processes that could not be started at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	executor    Executor
	stdoutLimit int64
}

// RunnerOption configures an ExecRunner.
type RunnerOption func(*ExecRunner)

// WithExecutor overrides the Executor used to build commands.
func WithExecutor(e Executor) RunnerOption {
	return func(r *ExecRunner) {
		r.executor = e
	}
}

// WithStdoutLimit caps how many stdout bytes are kept. Zero keeps everything.
func WithStdoutLimit(n int64) RunnerOption {
	return func(r *ExecRunner) {
		r.stdoutLimit = n
	}
}

// NewRunner creates an ExecRunner using a RealExecutor.
func NewRunner(opts ...RunnerOption) *ExecRunner {
	r := &ExecRunner{executor: &RealExecutor{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the process and blocks until it exits. There is no timeout;
// only cancellation of ctx stops a hung process.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := r.executor.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	if r.stdoutLimit > 0 {
		cmd.Stdout = &limitedWriter{w: &stdout, remaining: r.stdoutLimit}
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		// -1 when killed by a signal, typically ctx cancellation.
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	if stderrors.Is(err, exec.ErrNotFound) {
		return res, reloaderrors.Wrap(err, reloaderrors.ErrCodeCommandNotFound, "command not found").
			WithDetail("command", name)
	}
	return res, reloaderrors.CommandFailed(CommandLine(name, args...), err)
}

// CommandLine renders an argv the way it is echoed to operators.
func CommandLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// limitedWriter keeps the first n bytes and silently discards the rest so the
// child never blocks on a full pipe.
type limitedWriter struct {
	w         io.Writer
	remaining int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if l.remaining <= 0 {
		return n, nil
	}
	keep := p
	if int64(len(keep)) > l.remaining {
		keep = keep[:l.remaining]
	}
	written, err := l.w.Write(keep)
	l.remaining -= int64(written)
	if err != nil {
		return written, err
	}
	return n, nil
}
