package signinstate

import (
	"sync"
	"time"

	consoleerrors "github.com/gatewaylabs/console/internal/errors"
)

// defaultTTL bounds how long a sign-in may stay parked at the identity
// provider before its state is judged stale.
const defaultTTL = 10 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. Stale states are rejected on read.
type InMemoryRepo struct {
	mu      sync.RWMutex
	states  map[string]*State
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewInMemoryRepo creates a new in-memory sign-in state repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states:  make(map[string]*State),
		ttl:     defaultTTL,
		nowFunc: time.Now,
	}
}

// Upsert stores or updates a sign-in state.
func (r *InMemoryRepo) Upsert(state string, signInState *State) error {
	if state == "" {
		return consoleerrors.ErrSignInStateNotFound
	}
	if signInState == nil {
		return consoleerrors.ErrSignInStateNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *signInState
	r.states[state] = &copied
	return nil
}

// Get retrieves a sign-in state by state parameter.
func (r *InMemoryRepo) Get(state string) (*State, error) {
	if state == "" {
		return nil, consoleerrors.ErrSignInStateNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	signInState, exists := r.states[state]
	if !exists {
		return nil, consoleerrors.ErrSignInStateNotFound
	}
	if r.nowFunc().Sub(signInState.CreatedAt) > r.ttl {
		return nil, consoleerrors.ErrSignInStateExpired
	}

	copied := *signInState
	return &copied, nil
}

// Delete removes a sign-in state.
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return consoleerrors.ErrSignInStateNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}
