// Package watch finds the source packages under the dev directory and
// decides which of them changed since the last compile.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DescriptorFile marks a directory as a package.
	DescriptorFile = "pack.mcmeta"
	// SourceDir is the package subdirectory holding sources.
	SourceDir = "data"
	// SourceExt is the extension of compiler source files.
	SourceExt = ".dps"
	// NamePrefix is prepended to a directory name to form the host pack name.
	NamePrefix = "file/"
)

// Package is a source package found during one scan pass.
type Package struct {
	// Name is the host pack name, "file/<dir>".
	Name string
	// SourceDir is the package root passed to the compiler.
	SourceDir string
	// OutputDir is where the compiler writes the output package.
	OutputDir string
}

// Registry is the host's view of which packs are loaded.
type Registry interface {
	// Lookup reports whether name is registered and, if so, whether it is available.
	Lookup(name string) (available bool, known bool)
}

// Scanner enumerates the watch set.
type Scanner struct {
	registry     Registry
	datapacksDir string
}

// NewScanner creates a Scanner placing output under datapacksDir.
func NewScanner(registry Registry, datapacksDir string) *Scanner {
	return &Scanner{registry: registry, datapacksDir: datapacksDir}
}

// Scan lists the immediate children of devDir and keeps the valid packages,
// in directory listing order. Packages the host has registered but marked
// unavailable are skipped for this pass.
func (s *Scanner) Scan(devDir string) ([]Package, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, fmt.Errorf("list dev directory: %w", err)
	}

	var pkgs []Package
	for _, entry := range entries {
		dir := filepath.Join(devDir, entry.Name())
		if !isDir(dir) {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, DescriptorFile)); err != nil {
			continue
		}

		name := NamePrefix + entry.Name()
		if s.registry != nil {
			if available, known := s.registry.Lookup(name); known && !available {
				continue
			}
		}
		if !isDir(filepath.Join(dir, SourceDir)) {
			continue
		}

		absDir, err := filepath.Abs(dir)
		if err != nil {
			absDir = dir
		}
		pkgs = append(pkgs, Package{
			Name:      name,
			SourceDir: absDir,
			OutputDir: filepath.Join(s.datapacksDir, entry.Name()),
		})
	}
	return pkgs, nil
}

// isDir follows symlinks, like the host does when loading packs.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
