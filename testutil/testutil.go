// Package testutil holds filesystem fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// IsolateHome points PACKRELOAD_HOME at a fresh temp dir so config, state
// and log files stay inside the test. It returns the directory.
func IsolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("PACKRELOAD_HOME", home)
	return home
}

// WritePackage creates devDir/name with a pack.mcmeta descriptor and, when
// withData is set, an empty data directory. It returns the package root.
func WritePackage(t *testing.T, devDir, name string, withData bool) string {
	t.Helper()
	dir := filepath.Join(devDir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.mcmeta"), []byte(`{"pack":{}}`), 0644))
	if withData {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0755))
	}
	return dir
}

// WriteSource writes a source file at path, creating parents, and sets its
// modification time to mtime.
func WriteSource(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("function main {}"), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}
