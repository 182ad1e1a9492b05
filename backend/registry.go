package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/bucketoffset"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)

	// backendPriority lists backends in order of preference for Default.
	backendPriority = []string{BackendRust, BackendNative, BackendSoftware}
)

// Register makes a backend available under name. Registering a name again
// replaces the previous factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name has a factory.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get builds the backend registered under name, or returns nil.
func Get(name string) bucketoffset.Accelerator {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil
	}
	return factory()
}

// Default builds the first backend in priority order whose factory
// returns non-nil, then any other registered backend.
func Default() bucketoffset.Accelerator {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := factories[name]; ok {
			if a := factory(); a != nil {
				return a
			}
		}
	}

	rest := make([]string, 0, len(factories))
	for name := range factories {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		if a := factories[name](); a != nil {
			return a
		}
	}
	return nil
}

// Open returns the backend named name, or Default when name is empty.
// The accelerator is not initialized; bucketoffset.Run does that.
func Open(name string) (bucketoffset.Accelerator, error) {
	var a bucketoffset.Accelerator
	if name == "" {
		a = Default()
	} else {
		a = Get(name)
	}
	if a == nil {
		if name == "" {
			name = "default"
		}
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition,
			fmt.Sprintf("open backend %q", name),
			fmt.Errorf("%w: %w", ErrBackendNotAvailable, bucketoffset.ErrBackendUnavailable))
	}
	return a, nil
}
