package watch

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Newest returns the latest modification time among the package's source
// files, truncated to milliseconds. Files that cannot be stat'ed count as
// the zero time. A package without sources returns the zero time.
func Newest(pkg Package) time.Time {
	var newest time.Time
	root := filepath.Join(pkg.SourceDir, SourceDir)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(path, SourceExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if mt := info.ModTime().Truncate(time.Millisecond); mt.After(newest) {
			newest = mt
		}
		return nil
	})
	return newest
}

// IsStale reports whether the package changed after watermark. Equality is
// not stale.
func IsStale(pkg Package, watermark time.Time) (bool, time.Time) {
	newest := Newest(pkg)
	return newest.After(watermark), newest
}
