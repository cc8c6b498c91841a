package assignment

import (
	"context"
	"sync"

	"github.com/dmitrymomot/rolloutkit/pkg/flags"
)

// MemoryStore is an in-memory Store implementation. It is useful for tests
// and single-process deployments; the conditional-create semantics match the
// durable implementations exactly.
type MemoryStore struct {
	mu          sync.RWMutex
	assignments map[memoryKey]*flags.Assignment
}

type memoryKey struct {
	userID       string
	experimentID string
}

// NewMemoryStore creates an empty in-memory assignment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: make(map[memoryKey]*flags.Assignment),
	}
}

// Get returns the stored assignment or ErrAssignmentNotFound.
func (m *MemoryStore) Get(ctx context.Context, userID, experimentID string) (*flags.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assignments[memoryKey{userID: userID, experimentID: experimentID}]
	if !ok {
		return nil, ErrAssignmentNotFound
	}

	copied := *a
	return &copied, nil
}

// PutIfAbsent stores the assignment unless one already exists for the pair.
func (m *MemoryStore) PutIfAbsent(ctx context.Context, a *flags.Assignment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{userID: a.UserID, experimentID: a.ExperimentID}
	if _, exists := m.assignments[key]; exists {
		return false, nil
	}

	copied := *a
	m.assignments[key] = &copied
	return true, nil
}

// Len returns the number of stored assignments.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assignments)
}
