package auth

import (
	"time"
)

// Credentials holds everything needed to act as a user against their PDS.
// Owned by the session Manager; persisted through a CredentialStore; mutated
// only by login and refresh; destroyed on sign-out or terminal refresh failure.
type Credentials struct {
	DID          string    `json:"did"`
	Handle       string    `json:"handle"`
	PDSURL       string    `json:"pdsUrl"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Clone returns a copy so callers can't mutate the Manager's cached state.
func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// State describes where a session is in its lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
	// StateExpired means refresh was exhausted or rejected; only a fresh
	// interactive login can leave this state.
	StateExpired
)

// String returns the lifecycle state name for logs and the session endpoint.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of session state handed to subscribers.
// The external UI consumes these instead of observing the Manager directly.
type Snapshot struct {
	State     State
	DID       string
	Handle    string
	ExpiresAt time.Time
}
