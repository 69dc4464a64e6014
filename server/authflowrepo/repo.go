// Package authflowrepo stores the transient state of in-flight OIDC
// authorization flows, keyed by the opaque state parameter.
package authflowrepo

import "time"

type AuthFlowState struct {
	Nonce     string
	ReturnURL string
	CreatedAt time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
}
