// Package claim guarantees that a window handle is bound to at most one
// slot at a time.
package claim

import (
	"sync"

	"github.com/1broseidon/multiboxer/internal/platform"
)

// Registry is the process-wide set of claimed window handles. Every
// check-then-act runs under a single mutex.
type Registry struct {
	mu     sync.Mutex
	owners map[platform.WindowID]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[platform.WindowID]int)}
}

// TryClaim records slot as the owner of handle. It returns false when the
// handle is already owned; a conflict is a normal result, not an error.
func (r *Registry) TryClaim(handle platform.WindowID, slot int) bool {
	if handle == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.owners[handle]; taken {
		return false
	}
	r.owners[handle] = slot
	return true
}

// Release drops the claim on handle. Releasing an unclaimed handle is a
// no-op.
func (r *Registry) Release(handle platform.WindowID) {
	r.mu.Lock()
	delete(r.owners, handle)
	r.mu.Unlock()
}

// IsClaimed reports whether handle has an owner.
func (r *Registry) IsClaimed(handle platform.WindowID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.owners[handle]
	return ok
}

// Owner returns the slot owning handle.
func (r *Registry) Owner(handle platform.WindowID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.owners[handle]
	return slot, ok
}

// Len returns the number of claimed handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}

// Claim is an owned handle. Release is idempotent so it can be deferred
// on every exit path.
type Claim struct {
	registry *Registry
	handle   platform.WindowID
	slot     int
	once     sync.Once
}

// Acquire wraps TryClaim and returns a guard, or nil on conflict.
func (r *Registry) Acquire(handle platform.WindowID, slot int) *Claim {
	if !r.TryClaim(handle, slot) {
		return nil
	}
	return &Claim{registry: r, handle: handle, slot: slot}
}

// Handle returns the claimed window.
func (c *Claim) Handle() platform.WindowID {
	if c == nil {
		return 0
	}
	return c.handle
}

// Slot returns the owning slot id.
func (c *Claim) Slot() int {
	if c == nil {
		return 0
	}
	return c.slot
}

// Release returns the handle to the registry.
func (c *Claim) Release() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		c.registry.Release(c.handle)
	})
}
