package errors

import (
	"fmt"
	"os/exec"
)

// ConfigUnreadable creates an error for a config file that exists but cannot be read
func ConfigUnreadable(path string, err error) *ReloadError {
	return Wrap(err, ErrCodeConfigUnreadable, fmt.Sprintf("error reading config file: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *ReloadError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InterpreterUnavailable creates an error for an interpreter that failed its version check
func InterpreterUnavailable(interpreter string, exitCode int) *ReloadError {
	return New(ErrCodeInterpreterUnavailable,
		fmt.Sprintf("interpreter %q is not installed or misconfigured", interpreter)).
		WithDetail("interpreter", interpreter).
		WithDetail("exitCode", exitCode)
}

// CompilerMissing creates an error for a compiler script found in neither location
func CompilerMissing(candidates ...string) *ReloadError {
	return New(ErrCodeCompilerMissing, "compiler script not found").
		WithDetail("candidates", candidates)
}

// CompilerVersion creates an error for a compiler that failed to report its version
func CompilerVersion(path string, stderr string) *ReloadError {
	return New(ErrCodeCompilerVersion, fmt.Sprintf("could not get version of %s", path)).
		WithDetail("path", path).
		WithDetail("stderr", stderr)
}

// DownloadFailed creates an error for a failed compiler download
func DownloadFailed(url string, status int) *ReloadError {
	return New(ErrCodeDownloadFailed, fmt.Sprintf("download of %s returned status %d", url, status)).
		WithDetail("url", url).
		WithDetail("status", status)
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *ReloadError {
	reloadErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		reloadErr = reloadErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return reloadErr
}

// ReloadFailed creates an error for a host reload that did not complete
func ReloadFailed(err error) *ReloadError {
	return Wrap(err, ErrCodeReloadFailed, "reload failed")
}

// AlreadyRunning creates an error for a second host instance
func AlreadyRunning(pid int) *ReloadError {
	return New(ErrCodeAlreadyRunning, fmt.Sprintf("already running with PID %d", pid)).
		WithDetail("pid", pid)
}

// CompileFailed creates an error for a compiler run that exited non-zero.
// The message is the compiler's stderr.
func CompileFailed(exitCode int, stderr string) *ReloadError {
	return New(ErrCodeCompileFailed, stderr).
		WithDetail("exitCode", exitCode)
}
