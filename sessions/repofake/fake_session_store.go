// Package repofake provides an in-memory session store for tests. It stores
// raw JSON blobs with lazily-enforced TTLs so tests can exercise the same
// decode path as the Redis store, including malformed data.
package repofake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type FakeSessionStore struct {
	mu     sync.Mutex
	blobs  map[string]string
	expiry map[string]time.Time
	locks  map[string]time.Time
}

var _ sessions.Store = (*FakeSessionStore)(nil)

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{
		blobs:  make(map[string]string),
		expiry: make(map[string]time.Time),
		locks:  make(map[string]time.Time),
	}
}

func (f *FakeSessionStore) expired(id string) bool {
	t, ok := f.expiry[id]
	return ok && !t.After(NowTimeFunc())
}

// SetRaw stores an arbitrary blob, bypassing Record marshalling. Tests use it
// to inject malformed session data.
func (f *FakeSessionStore) SetRaw(id, blob string, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[id] = blob
	f.expiry[id] = NowTimeFunc().Add(ttl)
}

// TTL reports the remaining lifetime of a key, or false if absent.
func (f *FakeSessionStore) TTL(id string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired(id) {
		return 0, false
	}
	t, ok := f.expiry[id]
	if !ok {
		return 0, false
	}
	return t.Sub(NowTimeFunc()), true
}

func (f *FakeSessionStore) Get(_ context.Context, id string) (*sessions.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.expired(id) {
		delete(f.blobs, id)
		delete(f.expiry, id)
		return nil, apperrors.ErrSessionNotFound
	}

	raw, ok := f.blobs[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}

	var record sessions.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSessionMalformed, err)
	}
	return &record, nil
}

func (f *FakeSessionStore) Set(_ context.Context, id string, record *sessions.Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[id] = string(raw)
	f.expiry[id] = NowTimeFunc().Add(ttl)
	return nil
}

func (f *FakeSessionStore) Expire(_ context.Context, id string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.expired(id) {
		delete(f.blobs, id)
		delete(f.expiry, id)
		return nil
	}
	if _, ok := f.blobs[id]; !ok {
		return nil
	}
	f.expiry[id] = NowTimeFunc().Add(ttl)
	return nil
}

func (f *FakeSessionStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, id)
	delete(f.expiry, id)
	return nil
}

func (f *FakeSessionStore) lockKey(userID int64, provider string) string {
	return fmt.Sprintf("refresh-lock:%d:%s", userID, provider)
}

func (f *FakeSessionStore) AcquireRefreshLock(_ context.Context, userID int64, provider string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := f.lockKey(userID, provider)
	if until, ok := f.locks[key]; ok && until.After(NowTimeFunc()) {
		return false, nil
	}
	f.locks[key] = NowTimeFunc().Add(ttl)
	return true, nil
}

func (f *FakeSessionStore) ReleaseRefreshLock(_ context.Context, userID int64, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, f.lockKey(userID, provider))
	return nil
}
