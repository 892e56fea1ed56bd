package pds

import "errors"

// Typed errors for PDS record operations.
// These allow services to use errors.Is() for reliable error detection
// instead of fragile string matching.
var (
	// ErrUnauthorized indicates the request failed due to invalid or expired credentials (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the request was rejected due to insufficient permissions (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested record does not exist (HTTP 404).
	ErrNotFound = errors.New("record not found")

	// ErrValidation indicates the PDS rejected the record as malformed (HTTP 400).
	ErrValidation = errors.New("record validation failed")

	// ErrServer indicates the PDS returned a 5xx response.
	ErrServer = errors.New("server error")

	// ErrRateLimited indicates the PDS throttled the request (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrNetwork indicates the request never produced an HTTP response.
	ErrNetwork = errors.New("network error")

	// ErrIntegrity indicates a fetched record's content hash no longer
	// matches the CID recorded in a StrongRef. Treated as tampering, never
	// silently accepted.
	ErrIntegrity = errors.New("strong ref integrity violation")
)

// IsAuthError returns true if the error is an authentication/authorization
// error, i.e. re-authentication might help.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
