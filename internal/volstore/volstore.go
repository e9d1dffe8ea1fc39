// Package volstore stands in for "durable volume metadata storage", out
// of scope per spec.md §1 ("the core writes through an opaque
// repository"). Repository is the interface the dispatch engine's commit
// collaborators are expected to write through; InMemory is a trivial
// implementation sufficient for tests.
package volstore

import (
	"context"
	"fmt"
	"sync"
)

// Repository persists volume metadata as opaque blobs keyed by volume
// name. The dispatch engine never calls this directly — it is consumed
// only from within collaborators.CommitFunc implementations the
// surrounding system supplies.
type Repository interface {
	Get(ctx context.Context, volumeName string) ([]byte, bool, error)
	Put(ctx context.Context, volumeName string, data []byte) error
	Delete(ctx context.Context, volumeName string) error
}

// InMemory is a Repository backed by a guarded map, for tests and
// single-node development.
type InMemory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewInMemory constructs an empty InMemory repository.
func NewInMemory() *InMemory { return &InMemory{data: make(map[string][]byte)} }

func (r *InMemory) Get(_ context.Context, volumeName string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.data[volumeName]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (r *InMemory) Put(_ context.Context, volumeName string, data []byte) error {
	if volumeName == "" {
		return fmt.Errorf("volstore: empty volume name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	r.data[volumeName] = cp
	return nil
}

func (r *InMemory) Delete(_ context.Context, volumeName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, volumeName)
	return nil
}

var _ Repository = (*InMemory)(nil)
