package slide

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Registry manages the available container drivers
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Driver
	byExt  map[string]Driver
}

var defaultRegistry = &Registry{
	byName: make(map[string]Driver),
	byExt:  make(map[string]Driver),
}

// RegisterDriver adds a driver to the default registry. Backend packages
// call it from init; callers enable a format by blank-importing its
// package.
func RegisterDriver(d Driver) error {
	return defaultRegistry.Register(d)
}

// LookupDriver retrieves a driver by name from the default registry.
func LookupDriver(name string) (Driver, error) {
	return defaultRegistry.Lookup(name)
}

// DetectDriver picks the driver claiming a path's extension from the
// default registry.
func DetectDriver(path string) (Driver, error) {
	return defaultRegistry.Detect(path)
}

// Drivers lists the registered drivers in the default registry.
func Drivers() []Driver {
	return defaultRegistry.Drivers()
}

// Register adds a driver under its name and every extension it claims.
// Names and extensions must not collide with earlier registrations.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(d.Name())
	if name == "" {
		return fmt.Errorf("%w: empty driver name", ErrUnknownFormat)
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDriverExists, name)
	}
	for _, ext := range d.Extensions() {
		ext = strings.ToLower(ext)
		if prev, ok := r.byExt[ext]; ok {
			return fmt.Errorf("%w: extension %q already claimed by %q", ErrDriverExists, ext, prev.Name())
		}
	}

	r.byName[name] = d
	for _, ext := range d.Extensions() {
		r.byExt[strings.ToLower(ext)] = d
	}
	return nil
}

// Lookup retrieves a driver by name.
func (r *Registry) Lookup(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: no driver named %q", ErrUnknownFormat, name)
	}
	return d, nil
}

// Detect picks the driver claiming the path's extension.
func (r *Registry) Detect(path string) (Driver, error) {
	ext := strings.ToLower(filepath.Ext(path))

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: no driver claims %q", ErrUnknownFormat, ext)
	}
	return d, nil
}

// Drivers lists the registered drivers (deduplicated by name).
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Driver, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	return out
}
