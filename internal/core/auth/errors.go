package auth

import "errors"

// Typed errors for session management.
// These allow callers to use errors.Is() for reliable error detection
// instead of fragile string matching.
var (
	// ErrNotAuthenticated indicates no session exists; the caller must log in.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCredentials indicates the PDS rejected the handle/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRefreshRejected indicates the PDS definitively rejected the refresh
	// token (revoked or expired grant). Never retried.
	ErrRefreshRejected = errors.New("refresh token rejected")

	// ErrReauthenticationRequired indicates the session is expired beyond
	// recovery and the user must log in again. This is the only error that
	// forces a fresh interactive login.
	ErrReauthenticationRequired = errors.New("reauthentication required")

	// ErrServer indicates the PDS returned a 5xx response.
	ErrServer = errors.New("server error")

	// ErrNetwork indicates the request never produced an HTTP response
	// (timeout, DNS failure, connection refused).
	ErrNetwork = errors.New("network error")
)
