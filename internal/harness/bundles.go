package harness

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/derive/internal/messaging"
)

type bundleLoader func() (*messaging.Bundle, error)

var (
	bundleMu      sync.Mutex
	bundleLoaders = map[string]bundleLoader{
		messaging.Name: messaging.Load,
	}
	bundleCache = map[string]*messaging.Bundle{}
)

// BundleNames lists the bundles scenarios can select, sorted.
func BundleNames() []string {
	bundleMu.Lock()
	defer bundleMu.Unlock()
	names := make([]string, 0, len(bundleLoaders))
	for name := range bundleLoaders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupBundle returns the named bundle, compiling it on first use.
func LookupBundle(name string) (*messaging.Bundle, error) {
	bundleMu.Lock()
	defer bundleMu.Unlock()
	if b, ok := bundleCache[name]; ok {
		return b, nil
	}
	load, ok := bundleLoaders[name]
	if !ok {
		known := make([]string, 0, len(bundleLoaders))
		for n := range bundleLoaders {
			known = append(known, n)
		}
		slices.Sort(known)
		return nil, fmt.Errorf("unknown bundle %q (known: %s)", name, strings.Join(known, ", "))
	}
	b, err := load()
	if err != nil {
		return nil, fmt.Errorf("load bundle %q: %w", name, err)
	}
	bundleCache[name] = b
	return b, nil
}
