package featurestore

import (
	"fmt"
	"sync"
)

// TransformFunc computes one on demand feature row from its inputs: source
// feature values plus request data, keyed by bare feature name. It returns the
// output feature values keyed by the on demand view's feature names.
type TransformFunc func(inputs map[string]any) (map[string]any, error)

var (
	transformsMu sync.RWMutex
	transforms   = make(map[string]TransformFunc)
)

// RegisterTransform binds a named transform used by on demand feature views.
// Transforms are process-local Go code; the registry stores only the name, so
// every process serving a view must register its transform at startup.
func RegisterTransform(name string, fn TransformFunc) {
	transformsMu.Lock()
	defer transformsMu.Unlock()
	transforms[name] = fn
}

func lookupTransform(name string) (TransformFunc, error) {
	transformsMu.RLock()
	defer transformsMu.RUnlock()
	fn, found := transforms[name]
	if !found {
		return nil, fmt.Errorf("transform %q is not registered", name)
	}

	return fn, nil
}
