package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Manager is the single source of truth for "am I authenticated" and
// "give me a valid token now". It orchestrates login, sign-out, and
// transparent refresh, persisting credentials through the injected store.
//
// Concurrency invariant: at most one refresh is in flight per session.
// Concurrent CurrentToken calls that find a stale token converge on the
// same underlying network call via a single-flight group keyed by DID.
type Manager struct {
	store     CredentialStore
	client    SessionClient
	scheduler *RefreshScheduler
	cfg       Config
	log       *slog.Logger
	now       func() time.Time

	mu    sync.RWMutex
	creds *Credentials
	state State
	subs  []chan Snapshot

	refreshGroup singleflight.Group
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithClock overrides the time source. Tests use this to drive the token
// freshness invariant without real waiting.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithScheduler replaces the refresh scheduler (tests inject one with
// millisecond delays).
func WithScheduler(s *RefreshScheduler) ManagerOption {
	return func(m *Manager) {
		m.scheduler = s
	}
}

// NewManager creates a session manager. The store and client are required;
// the scheduler defaults to one built from the same client and config.
func NewManager(store CredentialStore, client SessionClient, cfg Config, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("auth: credential store cannot be nil")
	}
	if client == nil {
		panic("auth: session client cannot be nil")
	}

	m := &Manager{
		store:  store,
		client: client,
		cfg:    cfg.withDefaults(),
		log:    slog.Default(),
		now:    time.Now,
		state:  StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.scheduler == nil {
		m.scheduler = NewRefreshScheduler(client, m.cfg, m.log)
	}
	return m
}

// Resume loads persisted credentials on startup so the app doesn't force a
// login after every restart. Missing credentials are not an error.
func (m *Manager) Resume(ctx context.Context) error {
	creds, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted credentials: %w", err)
	}
	if creds == nil {
		return nil
	}

	m.mu.Lock()
	m.creds = creds
	m.setStateLocked(StateAuthenticated)
	m.mu.Unlock()

	m.log.Info("resumed session", "did", creds.DID, "handle", creds.Handle)
	return nil
}

// Login exchanges a handle and app password for a session. On success the
// credentials are cached and persisted and the state becomes authenticated.
func (m *Manager) Login(ctx context.Context, handle, appPassword string) (*Credentials, error) {
	m.mu.Lock()
	m.setStateLocked(StateAuthenticating)
	m.mu.Unlock()

	creds, err := m.client.CreateSession(ctx, handle, appPassword)
	if err != nil {
		m.mu.Lock()
		m.setStateLocked(StateUnauthenticated)
		m.mu.Unlock()
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if saveErr := m.store.Save(ctx, creds); saveErr != nil {
		// The session is live on the PDS even if persistence failed; keep it
		// in memory and surface the storage problem.
		m.log.Error("failed to persist credentials after login",
			"did", creds.DID, "error", saveErr)
	}

	m.mu.Lock()
	m.creds = creds
	m.setStateLocked(StateAuthenticated)
	m.mu.Unlock()

	m.log.Info("logged in", "did", creds.DID, "handle", creds.Handle)
	return creds.Clone(), nil
}

// CurrentToken returns an access token guaranteed to be more than
// RefreshThreshold from expiry at the moment of return. A stale cached
// token triggers a synchronous refresh; the caller waits for its result.
func (m *Manager) CurrentToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	creds := m.creds
	state := m.state
	m.mu.RUnlock()

	if creds == nil {
		if state == StateExpired {
			return "", ErrReauthenticationRequired
		}
		return "", ErrNotAuthenticated
	}

	if !stale(creds, m.now(), m.cfg.RefreshThreshold) {
		return creds.AccessToken, nil
	}

	refreshed, err := m.refresh(ctx, creds.AccessToken)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// ForceRefresh refreshes regardless of apparent freshness. The record
// client calls this when the PDS answers 401 despite a token that looked
// valid locally (revoked server-side, clock skew).
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	creds := m.creds
	m.mu.RUnlock()

	if creds == nil {
		return "", ErrNotAuthenticated
	}

	refreshed, err := m.refresh(ctx, creds.AccessToken)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// refresh runs the scheduler inside the single-flight group. observedToken
// is the access token the caller decided was unusable; if the cached token
// has already moved past it, another caller's refresh won, and no new
// network call is made.
func (m *Manager) refresh(ctx context.Context, observedToken string) (*Credentials, error) {
	m.mu.RLock()
	key := "session"
	if m.creds != nil {
		key = m.creds.DID
	}
	m.mu.RUnlock()

	result, err, _ := m.refreshGroup.Do(key, func() (any, error) {
		m.mu.Lock()
		creds := m.creds
		if creds == nil {
			m.mu.Unlock()
			return nil, ErrNotAuthenticated
		}
		if creds.AccessToken != observedToken {
			// A concurrent refresh already replaced the token.
			m.mu.Unlock()
			return creds.Clone(), nil
		}
		m.setStateLocked(StateRefreshing)
		m.mu.Unlock()

		refreshed, refreshErr := m.scheduler.Refresh(ctx, creds)
		if refreshErr != nil {
			m.expire(ctx)
			if errors.Is(refreshErr, ErrRefreshRejected) {
				m.log.Warn("refresh token rejected, session expired", "did", creds.DID)
			} else {
				m.log.Warn("refresh retries exhausted, session expired",
					"did", creds.DID, "error", refreshErr)
			}
			return nil, fmt.Errorf("%w: %v", ErrReauthenticationRequired, refreshErr)
		}

		if saveErr := m.store.Save(ctx, refreshed); saveErr != nil {
			m.log.Error("failed to persist refreshed credentials",
				"did", refreshed.DID, "error", saveErr)
		}

		m.mu.Lock()
		m.creds = refreshed
		m.setStateLocked(StateAuthenticated)
		m.mu.Unlock()

		return refreshed.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Credentials), nil
}

// expire clears the session after a terminal refresh failure. Only a fresh
// interactive login leaves the expired state.
func (m *Manager) expire(ctx context.Context) {
	m.mu.Lock()
	m.creds = nil
	m.setStateLocked(StateExpired)
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("failed to clear credentials on expiry", "error", err)
	}
}

// SignOut clears the in-memory session and the store. Idempotent; never
// fails from the caller's point of view.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	did := ""
	if m.creds != nil {
		did = m.creds.DID
	}
	m.creds = nil
	m.setStateLocked(StateUnauthenticated)
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("failed to clear credential store on sign-out", "error", err)
	}
	if did != "" {
		m.log.Info("signed out", "did", did)
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// DID returns the authenticated user's DID, or "" when signed out.
func (m *Manager) DID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.DID
}

// Credentials returns a copy of the cached credentials, or nil.
func (m *Manager) Credentials() *Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.Clone()
}

// Subscribe returns a channel of state snapshots. The external UI layer
// consumes this instead of observing the Manager's internals. Slow
// consumers miss intermediate snapshots rather than blocking the core.
func (m *Manager) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 16)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// setStateLocked updates state and notifies subscribers. Callers hold m.mu.
func (m *Manager) setStateLocked(state State) {
	m.state = state
	snap := Snapshot{State: state}
	if m.creds != nil {
		snap.DID = m.creds.DID
		snap.Handle = m.creds.Handle
		snap.ExpiresAt = m.creds.ExpiresAt
	}
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// KeepFresh proactively refreshes before the token goes stale so that
// CurrentToken rarely blocks on a network round trip. Blocks until ctx is
// done; run it in its own goroutine from the composition root.
func (m *Manager) KeepFresh(ctx context.Context) {
	interval := m.cfg.RefreshThreshold / 4
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			creds := m.creds
			m.mu.RUnlock()

			if creds == nil || !stale(creds, m.now(), m.cfg.RefreshThreshold) {
				continue
			}
			if _, err := m.refresh(ctx, creds.AccessToken); err != nil {
				m.log.Warn("proactive refresh failed", "error", err)
			}
		}
	}
}
