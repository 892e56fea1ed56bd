package auth

import "context"

// CredentialStore is the persistence contract for session credentials.
// The backend (sealed file, Postgres, in-memory) is chosen by the composition
// root; the Manager depends only on this interface.
//
// Implementations must be safe for concurrent use. No ordering is guaranteed
// between concurrent Save calls beyond last-write-wins. Retries belong to the
// caller, never to the store.
type CredentialStore interface {
	// Load returns the persisted credentials, or (nil, nil) when none exist.
	Load(ctx context.Context) (*Credentials, error)

	// Save persists the credentials, replacing any previous set.
	Save(ctx context.Context, creds *Credentials) error

	// Clear removes any persisted credentials. Idempotent.
	Clear(ctx context.Context) error
}

// SessionClient performs the network half of session management against the
// PDS. Split from the Manager so tests can drive the state machine without a
// live server.
type SessionClient interface {
	// CreateSession exchanges a handle and app password for credentials
	// via com.atproto.server.createSession.
	CreateSession(ctx context.Context, identifier, password string) (*Credentials, error)

	// RefreshSession exchanges the refresh token for new credentials via
	// com.atproto.server.refreshSession. Refresh tokens are single-use:
	// the old one is revoked when this succeeds.
	RefreshSession(ctx context.Context, creds *Credentials) (*Credentials, error)
}
