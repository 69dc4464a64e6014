package authflowrepo

import (
	"errors"
	"sync"
	"time"
)

// maxStateAge bounds how long a login redirect may sit before the callback
// returns. Stale entries are pruned lazily on writes.
const maxStateAge = 10 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu     sync.RWMutex
	states map[string]*AuthFlowState
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]*AuthFlowState),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()

	// Store a copy to prevent external modifications
	r.states[state] = &AuthFlowState{
		Nonce:     authState.Nonce,
		ReturnURL: authState.ReturnURL,
		CreatedAt: authState.CreatedAt,
	}

	return nil
}

// Get retrieves an auth flow state by state parameter
func (r *InMemoryRepo) Get(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	authState, exists := r.states[state]
	if !exists {
		return nil, errors.New("state not found")
	}
	if time.Since(authState.CreatedAt) > maxStateAge {
		return nil, errors.New("state expired")
	}

	// Return a copy to prevent external modifications
	return &AuthFlowState{
		Nonce:     authState.Nonce,
		ReturnURL: authState.ReturnURL,
		CreatedAt: authState.CreatedAt,
	}, nil
}

// Delete removes an auth flow state. Deleting a missing state is not an error.
func (r *InMemoryRepo) Delete(state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, state)
	return nil
}

func (r *InMemoryRepo) pruneLocked() {
	for state, authState := range r.states {
		if time.Since(authState.CreatedAt) > maxStateAge {
			delete(r.states, state)
		}
	}
}
