package inference

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/net"
)

// ErrInvalidHandle is returned for a handle that was never issued or was already freed.
var ErrInvalidHandle = errors.New("invalid handle")

// Handle identifies a classifier held by a Registry. The zero Handle is never issued.
type Handle uintptr

type entry struct {
	mu sync.Mutex
	c  *Classifier
}

// Registry owns classifiers on behalf of callers that can only hold integers. Handles are never
// reused, so a stale handle fails instead of reaching another classifier. Calls on one handle are
// serialized; different handles score concurrently.
type Registry struct {
	mu      sync.Mutex
	last    Handle
	entries map[Handle]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]*entry)}
}

// Add takes ownership of c and returns its handle.
func (r *Registry) Add(c *Classifier) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last++
	r.entries[r.last] = &entry{c: c}
	return r.last
}

// Open loads a classifier and registers it.
func (r *Registry) Open(path string, topo net.Topology) (Handle, error) {
	c, err := Open(path, topo)
	if err != nil {
		return 0, err
	}
	return r.Add(c), nil
}

func (r *Registry) get(h Handle) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[h]
}

// Score scores text with the classifier of h, or returns CodeInvalidHandle.
func (r *Registry) Score(h Handle, text string) int32 {
	e := r.get(h)
	if e == nil {
		return CodeInvalidHandle
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c.Score(text)
}

// Free closes and forgets the classifier of h. Freeing an unknown or already freed handle
// returns ErrInvalidHandle.
func (r *Registry) Free(h Handle) error {
	r.mu.Lock()
	e, ok := r.entries[h]
	delete(r.entries, h)
	r.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrInvalidHandle, "handle %d", h)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c.Close()
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
