package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	reloaderrors "github.com/grovetools/packreload/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "packreload.pid")

	h, err := Acquire(path)
	require.NoError(t, err)

	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, runningPID, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), runningPID)

	require.NoError(t, h.Release())
	assert.NoFileExists(t, path)
}

func TestSecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packreload.pid")

	h, err := Acquire(path)
	require.NoError(t, err)
	defer h.Release()

	_, err = Acquire(path)
	require.Error(t, err)
	assert.True(t, reloaderrors.Is(err, reloaderrors.ErrCodeAlreadyRunning))
}

func TestIsRunningWithoutFile(t *testing.T) {
	running, pid, err := IsRunning(filepath.Join(t.TempDir(), "missing.pid"))
	require.NoError(t, err)
	assert.False(t, running)
	assert.Zero(t, pid)
}
