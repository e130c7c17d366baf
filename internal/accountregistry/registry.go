// Package accountregistry is the concurrent, shared set of watched
// addresses consulted by every chain pipeline and mutated by the admin
// endpoint and the YAML bootstrap loader.
package accountregistry

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// InsertResult reports whether Insert added a new address or found it
// already present. Second insertion of an existing address is never an
// error.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyPresent
)

// Registry is a copy-on-write map: readers dereference an atomic pointer
// with no locking, writers are serialised by mu and publish a fresh map.
type Registry struct {
	mu   sync.Mutex
	data atomic.Pointer[map[common.Address]string]
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	empty := make(map[common.Address]string)
	r.data.Store(&empty)
	return r
}

// Insert adds address/label if the address is not already present.
// Idempotent: a second insert of the same address is a no-op that reports
// AlreadyPresent rather than an error.
func (r *Registry) Insert(address common.Address, label string) InsertResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.data.Load()
	if _, ok := current[address]; ok {
		return AlreadyPresent
	}

	next := make(map[common.Address]string, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[address] = label
	r.data.Store(&next)
	return Inserted
}

// Contains is the hot-path check: called once per From and once per To of
// every decoded transfer on every monitored chain. No lock is taken.
func (r *Registry) Contains(address common.Address) bool {
	m := *r.data.Load()
	_, ok := m[address]
	return ok
}

// Get returns the label for address, if the address is present.
func (r *Registry) Get(address common.Address) (string, bool) {
	m := *r.data.Load()
	label, ok := m[address]
	return label, ok
}

// Snapshot returns an immutable view of the registry at this instant.
// Mutating the returned map has no effect on the registry.
func (r *Registry) Snapshot() map[common.Address]string {
	current := *r.data.Load()
	view := make(map[common.Address]string, len(current))
	for k, v := range current {
		view[k] = v
	}
	return view
}

// Len reports the current number of watched addresses, used to drive the
// registry_size metrics gauge.
func (r *Registry) Len() int {
	return len(*r.data.Load())
}
