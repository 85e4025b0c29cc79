package images

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DownsamplerFactory builds a Downsampler for a resampling filter.
type DownsamplerFactory func(filter ResampleFilter) Downsampler

// ResizeBackend is the pure Go downsampler and always available.
const ResizeBackend = "resize"

var (
	backendsMu sync.RWMutex
	backends   = map[string]DownsamplerFactory{
		ResizeBackend: func(filter ResampleFilter) Downsampler {
			return ResizeDownsampler{Filter: filter}
		},
	}
)

// RegisterDownsampler makes a backend selectable by name. Backends that need
// cgo register themselves from build-tagged files.
func RegisterDownsampler(name string, factory DownsamplerFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(name)] = factory
}

// NewDownsampler returns the named backend using filter. An empty name selects
// ResizeBackend.
func NewDownsampler(name string, filter ResampleFilter) (Downsampler, error) {
	if name == "" {
		name = ResizeBackend
	}
	backendsMu.RLock()
	factory, ok := backends[strings.ToLower(name)]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown downsampler %q (available: %s)", name, strings.Join(DownsamplerBackends(), ", "))
	}
	return factory(filter), nil
}

// DownsamplerBackends lists the registered backend names.
func DownsamplerBackends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
