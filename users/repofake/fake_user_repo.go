// Package repofake provides an in-memory user repository for tests.
package repofake

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type FakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*users.User
	bySub  map[string]int64
}

var _ users.Repo = (*FakeUserRepo)(nil)

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		nextID: 1,
		byID:   make(map[int64]*users.User),
		bySub:  make(map[string]int64),
	}
}

func (f *FakeUserRepo) FindOrCreate(_ context.Context, user *users.User) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := NowTimeFunc()
	if id, ok := f.bySub[user.IAMSubjectID]; ok {
		existing := f.byID[id]
		existing.Email = user.Email
		existing.GivenName = user.GivenName
		existing.FamilyName = user.FamilyName
		existing.LastLoginAt = &now
		copied := *existing
		return &copied, nil
	}

	created := *user
	created.ID = f.nextID
	created.CreatedAt = now
	created.LastLoginAt = &now
	f.nextID++
	f.byID[created.ID] = &created
	f.bySub[created.IAMSubjectID] = created.ID

	copied := created
	return &copied, nil
}

func (f *FakeUserRepo) GetBySubjectID(_ context.Context, subjectID string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.bySub[subjectID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	copied := *f.byID[id]
	return &copied, nil
}
