package host

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/grovetools/packreload/watch"
)

// Registry tracks the packs the host has loaded and whether each one is
// currently usable. A pack is unavailable while a reload is in flight.
type Registry struct {
	mu    sync.RWMutex
	packs map[string]bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{packs: make(map[string]bool)}
}

// Lookup implements watch.Registry.
func (r *Registry) Lookup(name string) (available bool, known bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	available, known = r.packs[name]
	return available, known
}

// MarkAllUnavailable flags every known pack as mid-reload.
func (r *Registry) MarkAllUnavailable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.packs {
		r.packs[name] = false
	}
}

// Refresh replaces the registry with the pack directories found under
// datapacksDir, all available.
func (r *Registry) Refresh(datapacksDir string) error {
	entries, err := os.ReadDir(datapacksDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	packs := make(map[string]bool, len(entries))
	for _, entry := range entries {
		info, err := os.Stat(filepath.Join(datapacksDir, entry.Name()))
		if err != nil || !info.IsDir() {
			continue
		}
		packs[watch.NamePrefix+entry.Name()] = true
	}

	r.mu.Lock()
	r.packs = packs
	r.mu.Unlock()
	return nil
}

// Names returns the registered pack names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.packs))
	for name := range r.packs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
