package pending

import (
	"errors"
	"sync"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo.
type InMemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemoryRepo creates a new in-memory pending invitation repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		records: make(map[string]Record),
	}
}

// Get retrieves the record for a session.
func (r *InMemoryRepo) Get(sessionID string) (Record, bool, error) {
	if sessionID == "" {
		return Record{}, false, errors.New("sessionID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[sessionID]
	return record, ok, nil
}

// Put stores the record for a session.
func (r *InMemoryRepo) Put(sessionID string, record Record) error {
	if sessionID == "" {
		return errors.New("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[sessionID] = record
	return nil
}

// Delete removes the record for a session.
func (r *InMemoryRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, sessionID)
	return nil
}
