package auth

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// tokenExpiry extracts the expiration from an access JWT's exp claim.
// The signature is NOT verified - the PDS signed the token and is the
// authority on its own sessions; we only need the timestamp. Falls back to
// issuedAt + fallback for opaque tokens.
func tokenExpiry(accessToken string, issuedAt time.Time, fallback time.Duration) time.Time {
	tok, err := jwt.ParseString(accessToken,
		jwt.WithVerify(false),
		jwt.WithValidate(false),
	)
	if err != nil {
		return issuedAt.Add(fallback)
	}

	exp := tok.Expiration()
	if exp.IsZero() {
		return issuedAt.Add(fallback)
	}
	return exp
}

// stale reports whether the credentials are within threshold of expiring at
// the given instant. A stale token is never handed to a caller.
func stale(creds *Credentials, now time.Time, threshold time.Duration) bool {
	if creds == nil {
		return true
	}
	return !now.Before(creds.ExpiresAt.Add(-threshold))
}
