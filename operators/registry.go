package operators

import (
	"sort"
	"sync"
)

// Constructor creates a planned operator.
type Constructor func() Operator

var registry = struct {
	sync.RWMutex
	ctors map[string]Constructor
}{ctors: map[string]Constructor{}}

// Register makes an operator constructor available to FromJSON under name.
// Registering a name twice replaces the earlier constructor.
func Register(name string, ctor Constructor) {
	registry.Lock()
	defer registry.Unlock()
	registry.ctors[name] = ctor
}

// Lookup returns the constructor registered under name.
func Lookup(name string) (Constructor, bool) {
	registry.RLock()
	defer registry.RUnlock()
	ctor, ok := registry.ctors[name]
	return ctor, ok
}

// Registered lists the registered operator names in sorted order.
func Registered() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.ctors))
	for name := range registry.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
