package command

import (
	"context"
	"os"
	"os/exec"
)

// Executor builds the exec.Cmd a Runner starts. Tests substitute one that
// points at scripted binaries.
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor builds plain os/exec commands. Dir, when set, is the working
// directory of every command; Env entries are appended to the parent
// environment.
type RealExecutor struct {
	Dir string
	Env []string
}

// CommandContext creates a command that is killed when ctx is done.
func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	return cmd
}
