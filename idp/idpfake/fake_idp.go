// Package idpfake provides a scriptable IdentityProvider for tests.
package idpfake

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-session-gateway/idp"
)

type FakeIdP struct {
	mu sync.Mutex

	// Grant and Claims are returned by Exchange when ExchangeErr is nil.
	Grant  *idp.TokenGrant
	Claims *idp.Claims

	// RefreshGrant is returned by Refresh when RefreshErr is nil.
	RefreshGrant *idp.TokenGrant

	ExchangeErr error
	RefreshErr  error

	refreshCalls  int
	exchangeCalls int
	lastRefreshed string
}

var _ idp.IdentityProvider = (*FakeIdP)(nil)

func New() *FakeIdP {
	return &FakeIdP{}
}

func (f *FakeIdP) AuthCodeURL(state, nonce string) string {
	return "https://idp.test/authorize?state=" + state + "&nonce=" + nonce
}

func (f *FakeIdP) Exchange(_ context.Context, code string) (*idp.TokenGrant, *idp.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.exchangeCalls++
	if f.ExchangeErr != nil {
		return nil, nil, f.ExchangeErr
	}
	if f.Grant == nil || f.Claims == nil {
		return nil, nil, errors.New("fake idp: no scripted exchange response")
	}
	return f.Grant, f.Claims, nil
}

func (f *FakeIdP) Refresh(_ context.Context, refreshToken string) (*idp.TokenGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshCalls++
	f.lastRefreshed = refreshToken
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	if f.RefreshGrant == nil {
		return nil, errors.New("fake idp: no scripted refresh response")
	}
	return f.RefreshGrant, nil
}

// RefreshCalls reports how many Refresh calls were made.
func (f *FakeIdP) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// LastRefreshedToken reports the refresh token of the most recent Refresh call.
func (f *FakeIdP) LastRefreshedToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRefreshed
}
