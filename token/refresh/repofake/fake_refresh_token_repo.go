// Package repofake provides an in-memory refresh-token repository for tests.
package repofake

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/token/refresh"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type FakeRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*refresh.StoredRefreshToken
}

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{tokens: make(map[string]*refresh.StoredRefreshToken)}
}

func key(userID int64, provider string) string {
	return fmt.Sprintf("%d:%s", userID, provider)
}

func (f *FakeRefreshTokenRepo) Upsert(_ context.Context, token *refresh.StoredRefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := NowTimeFunc()
	stored := *token
	stored.LastUsedAt = &now
	if existing, ok := f.tokens[key(token.UserID, token.ProviderName)]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	f.tokens[key(token.UserID, token.ProviderName)] = &stored
	return nil
}

func (f *FakeRefreshTokenRepo) Get(_ context.Context, userID int64, provider string) (*refresh.StoredRefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token, ok := f.tokens[key(userID, provider)]
	if !ok {
		return nil, apperrors.ErrNoRefreshToken
	}
	copied := *token
	return &copied, nil
}

func (f *FakeRefreshTokenRepo) DeleteAllForUser(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for k, token := range f.tokens {
		if token.UserID == userID {
			delete(f.tokens, k)
		}
	}
	return nil
}

// Count reports how many rows are stored. Test helper.
func (f *FakeRefreshTokenRepo) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}
