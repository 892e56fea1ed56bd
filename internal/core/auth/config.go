package auth

import "time"

// Defaults applied by Config.withDefaults. Retry values are configuration,
// not policy baked into the scheduler.
const (
	defaultSessionDuration  = 2 * time.Hour
	defaultRefreshThreshold = 1 * time.Hour
	defaultMaxRetryAttempts = 3
	defaultRetryBaseDelay   = 1 * time.Second
	defaultMaxRetryDelay    = 8 * time.Second
	defaultRequestTimeout   = 30 * time.Second
)

// Config is supplied by the composition root; the core never reads the
// environment itself.
type Config struct {
	// PDSHost is the base URL of the user's PDS, e.g. https://bsky.social.
	PDSHost string

	// UserAgent is sent on every XRPC request.
	UserAgent string

	// SessionDuration is the assumed access-token lifetime when the token's
	// exp claim cannot be parsed.
	SessionDuration time.Duration

	// RefreshThreshold is how long before expiry a token counts as stale.
	// CurrentToken never returns a token within this window of expiring.
	RefreshThreshold time.Duration

	// MaxRetryAttempts is the total number of refresh attempts (initial try
	// included) before the session transitions to expired.
	MaxRetryAttempts int

	// RetryBaseDelay is the first backoff delay; each attempt doubles it.
	RetryBaseDelay time.Duration

	// MaxRetryDelay caps the backoff delay growth.
	MaxRetryDelay time.Duration

	// RequestTimeout bounds each individual network call.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SessionDuration <= 0 {
		c.SessionDuration = defaultSessionDuration
	}
	if c.RefreshThreshold <= 0 {
		c.RefreshThreshold = defaultRefreshThreshold
	}
	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = defaultMaxRetryAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "anchor/1.0"
	}
	return c
}
