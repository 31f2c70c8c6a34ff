package command

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	reloaderrors "github.com/grovetools/packreload/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunCapturesExitCodeAndStreams(t *testing.T) {
	requireShell(t)

	r := NewRunner()
	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo oops >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Success())
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "oops\n", string(res.Stderr))
}

func TestRunSuccess(t *testing.T) {
	requireShell(t)

	res, err := NewRunner().Run(context.Background(), "sh", "-c", "exit 0")
	require.NoError(t, err)
	assert.True(t, res.Success())
}

func TestRunStdoutLimit(t *testing.T) {
	requireShell(t)

	r := NewRunner(WithStdoutLimit(5))
	res, err := r.Run(context.Background(), "sh", "-c", "printf 'PackScript 1.4.0'")
	require.NoError(t, err)
	assert.Equal(t, "PackS", string(res.Stdout))
}

func TestRunMissingBinary(t *testing.T) {
	_, err := NewRunner().Run(context.Background(), "packreload-definitely-missing-binary", "-V")
	require.Error(t, err)
	assert.True(t, reloaderrors.Is(err, reloaderrors.ErrCodeCommandNotFound))
}

type recordingExecutor struct {
	RealExecutor
	names []string
}

func (e *recordingExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	e.names = append(e.names, name)
	return e.RealExecutor.CommandContext(ctx, "sh", "-c", "exit 0")
}

func TestWithExecutor(t *testing.T) {
	requireShell(t)

	rec := &recordingExecutor{}
	r := NewRunner(WithExecutor(rec))
	res, err := r.Run(context.Background(), "python3", "-V")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, []string{"python3"}, rec.names)
}

func TestLimitedWriterDiscardsOverflow(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{w: &buf, remaining: 4}

	n, err := w.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	n, err = w.Write([]byte("gh"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "abcd", buf.String())
}

func TestCommandLine(t *testing.T) {
	got := CommandLine("python3", "/w/dev/packscript.py", "c", "-i", "/w/dev/a")
	assert.True(t, strings.HasPrefix(got, "python3 /w/dev/packscript.py c"))
}

func TestRealExecutorDirAndEnv(t *testing.T) {
	requireShell(t)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	r := NewRunner(WithExecutor(&RealExecutor{Dir: dir, Env: []string{"PACKRELOAD_TEST_VALUE=42"}}))

	res, err := r.Run(context.Background(), "sh", "-c", `printf '%s %s' "$(pwd -P)" "$PACKRELOAD_TEST_VALUE"`)
	require.NoError(t, err)
	assert.Equal(t, dir+" 42", string(res.Stdout))
}
