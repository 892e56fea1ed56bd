package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
)

// RefreshScheduler performs the refresh network call with bounded
// exponential backoff. Transient failures (network, 5xx) are retried with
// delay = min(MaxRetryDelay, RetryBaseDelay * 2^attempt); definitive
// rejections fail immediately. The scheduler owns the only retry loop in
// the core - every other component propagates failures to its caller.
type RefreshScheduler struct {
	client SessionClient
	cfg    Config
	log    *slog.Logger
}

// NewRefreshScheduler creates a scheduler using the given session client.
func NewRefreshScheduler(client SessionClient, cfg Config, log *slog.Logger) *RefreshScheduler {
	if client == nil {
		panic("auth: session client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RefreshScheduler{
		client: client,
		cfg:    cfg.withDefaults(),
		log:    log,
	}
}

// Refresh exchanges the refresh token for new credentials, retrying
// transient failures up to MaxRetryAttempts total attempts. Returns
// ErrRefreshRejected unwrapped-checkable when the grant is dead.
func (s *RefreshScheduler) Refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	if creds == nil {
		return nil, ErrNotAuthenticated
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryBaseDelay
	bo.MaxInterval = s.cfg.MaxRetryDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	// MaxRetryAttempts counts the initial attempt, WithMaxRetries counts
	// only the retries after it.
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.cfg.MaxRetryAttempts-1)), ctx)

	attempt := 0
	var refreshed *Credentials
	operation := func() error {
		attempt++
		next, err := s.client.RefreshSession(ctx, creds)
		if err != nil {
			if errors.Is(err, ErrRefreshRejected) {
				// Invalid grant is terminal; retrying would just burn the
				// rate limit on a dead token.
				return backoff.Permanent(err)
			}
			s.log.Warn("token refresh attempt failed",
				"did", creds.DID, "attempt", attempt, "error", err)
			return err
		}
		refreshed = next
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("refresh failed after %d attempt(s): %w", attempt, err)
	}

	return refreshed, nil
}
