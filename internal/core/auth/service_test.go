package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory CredentialStore with call counters.
type fakeStore struct {
	mu         sync.Mutex
	creds      *Credentials
	saveCalls  int
	clearCalls int
	saveErr    error
	loadErr    error
}

func (s *fakeStore) Load(ctx context.Context) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.creds.Clone(), nil
}

func (s *fakeStore) Save(ctx context.Context, creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.creds = creds.Clone()
	return nil
}

func (s *fakeStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	s.creds = nil
	return nil
}

// fakeSessionClient mints sequential tokens and lets tests inject failures
// and artificial refresh latency.
type fakeSessionClient struct {
	mu           sync.Mutex
	createCalls  int
	refreshCalls int
	createErr    error
	refreshErrs  []error // consumed one per refresh call, then success
	refreshDelay time.Duration
	tokenTTL     time.Duration
	clock        func() time.Time
}

func newFakeSessionClient(clock func() time.Time) *fakeSessionClient {
	return &fakeSessionClient{
		tokenTTL: 2 * time.Hour,
		clock:    clock,
	}
}

func (c *fakeSessionClient) mint(seq int) *Credentials {
	now := c.clock()
	return &Credentials{
		DID:          "did:plc:alice123",
		Handle:       "alice.example",
		PDSURL:       "https://pds.example",
		AccessToken:  fmt.Sprintf("access-%d", seq),
		RefreshToken: fmt.Sprintf("refresh-%d", seq),
		IssuedAt:     now,
		ExpiresAt:    now.Add(c.tokenTTL),
	}
}

func (c *fakeSessionClient) CreateSession(ctx context.Context, identifier, password string) (*Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if c.createErr != nil {
		return nil, c.createErr
	}
	return c.mint(c.createCalls), nil
}

func (c *fakeSessionClient) RefreshSession(ctx context.Context, creds *Credentials) (*Credentials, error) {
	c.mu.Lock()
	c.refreshCalls++
	seq := 100 + c.refreshCalls
	var err error
	if len(c.refreshErrs) > 0 {
		err = c.refreshErrs[0]
		c.refreshErrs = c.refreshErrs[1:]
	}
	delay := c.refreshDelay
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mint(seq), nil
}

func (c *fakeSessionClient) counts() (creates, refreshes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls, c.refreshCalls
}

// fakeClock is a mutable time source shared between the manager and the
// fake session client.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		PDSHost:          "https://pds.example",
		RefreshThreshold: 1 * time.Hour,
		MaxRetryAttempts: 3,
		RetryBaseDelay:   1 * time.Millisecond,
		MaxRetryDelay:    4 * time.Millisecond,
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeStore, *fakeSessionClient, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := &fakeStore{}
	client := newFakeSessionClient(clock.Now)
	manager := NewManager(store, client, testConfig(), WithClock(clock.Now))
	return manager, store, client, clock
}

func TestLogin_Success(t *testing.T) {
	manager, store, client, _ := newTestManager(t)

	creds, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)
	require.NotNil(t, creds)

	assert.Equal(t, "did:plc:alice123", creds.DID)
	assert.Equal(t, StateAuthenticated, manager.State())
	assert.Equal(t, 1, store.saveCalls)

	creates, refreshes := client.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, refreshes)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	manager, _, client, _ := newTestManager(t)
	client.createErr = fmt.Errorf("%w: bad password", ErrInvalidCredentials)

	_, err := manager.Login(context.Background(), "alice.example", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, StateUnauthenticated, manager.State())
}

func TestLogin_SurvivesStoreFailure(t *testing.T) {
	manager, store, _, _ := newTestManager(t)
	store.saveErr = errors.New("disk full")

	// The PDS session is live even if persistence failed; login succeeds.
	creds, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)
	assert.NotNil(t, creds)
	assert.Equal(t, StateAuthenticated, manager.State())
}

func TestCurrentToken_NotAuthenticated(t *testing.T) {
	manager, _, _, _ := newTestManager(t)

	_, err := manager.CurrentToken(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCurrentToken_FreshTokenNoRefresh(t *testing.T) {
	manager, _, client, _ := newTestManager(t)

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	token, err := manager.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	_, refreshes := client.counts()
	assert.Equal(t, 0, refreshes)
}

func TestCurrentToken_StaleTriggersRefresh(t *testing.T) {
	manager, _, client, clock := newTestManager(t)

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	t1, err := manager.CurrentToken(context.Background())
	require.NoError(t, err)

	// Fast-forward past expiresAt - refreshThreshold (token TTL 2h,
	// threshold 1h: stale after 1h).
	clock.Advance(90 * time.Minute)

	t2, err := manager.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)

	_, refreshes := client.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, StateAuthenticated, manager.State())
}

// Token freshness invariant: every token returned is more than
// refreshThreshold from expiry at the moment of return.
func TestCurrentToken_FreshnessInvariant(t *testing.T) {
	manager, _, _, clock := newTestManager(t)

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	steps := []time.Duration{
		0, 10 * time.Minute, 45 * time.Minute, 20 * time.Minute,
		50 * time.Minute, 59 * time.Minute, 2 * time.Minute, 3 * time.Hour,
	}
	for _, step := range steps {
		clock.Advance(step)

		_, err := manager.CurrentToken(context.Background())
		require.NoError(t, err)

		creds := manager.Credentials()
		require.NotNil(t, creds)
		assert.Greater(t, creds.ExpiresAt.Sub(clock.Now()), 1*time.Hour,
			"token returned within refreshThreshold of expiry after advancing %v", step)
	}
}

func TestCurrentToken_SingleFlightRefresh(t *testing.T) {
	manager, _, client, clock := newTestManager(t)
	client.refreshDelay = 50 * time.Millisecond

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)

	const callers = 10
	tokens := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = manager.CurrentToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0], tokens[i], "all callers converge on one refresh result")
	}

	_, refreshes := client.counts()
	assert.Equal(t, 1, refreshes, "N concurrent stale reads must trigger exactly one refresh")
}

func TestCurrentToken_RefreshRejectedExpiresSession(t *testing.T) {
	manager, store, client, clock := newTestManager(t)
	client.refreshErrs = []error{fmt.Errorf("%w: invalid grant", ErrRefreshRejected)}

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)

	_, err = manager.CurrentToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.Equal(t, StateExpired, manager.State())
	assert.Equal(t, 1, store.clearCalls)

	// Definitive rejection is never retried.
	_, refreshes := client.counts()
	assert.Equal(t, 1, refreshes)

	// The expired state persists until a fresh login.
	_, err = manager.CurrentToken(context.Background())
	assert.ErrorIs(t, err, ErrReauthenticationRequired)
}

func TestCurrentToken_TransientExhaustionExpiresSession(t *testing.T) {
	manager, _, client, clock := newTestManager(t)
	client.refreshErrs = []error{
		fmt.Errorf("%w: timeout", ErrNetwork),
		fmt.Errorf("%w: timeout", ErrNetwork),
		fmt.Errorf("%w: 503", ErrServer),
	}

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)

	_, err = manager.CurrentToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.Equal(t, StateExpired, manager.State())

	// All MaxRetryAttempts were used before giving up.
	_, refreshes := client.counts()
	assert.Equal(t, 3, refreshes)
}

func TestSignOut_Idempotent(t *testing.T) {
	manager, store, _, _ := newTestManager(t)

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	manager.SignOut(context.Background())
	assert.Equal(t, StateUnauthenticated, manager.State())
	assert.Equal(t, "", manager.DID())

	// Signing out again is a no-op, not an error.
	manager.SignOut(context.Background())
	assert.Equal(t, StateUnauthenticated, manager.State())
	assert.Equal(t, 2, store.clearCalls)
}

func TestResume_LoadsPersistedSession(t *testing.T) {
	clock := newFakeClock()
	client := newFakeSessionClient(clock.Now)
	store := &fakeStore{creds: client.mint(7)}
	manager := NewManager(store, client, testConfig(), WithClock(clock.Now))

	require.NoError(t, manager.Resume(context.Background()))
	assert.Equal(t, StateAuthenticated, manager.State())
	assert.Equal(t, "did:plc:alice123", manager.DID())

	token, err := manager.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-7", token)
}

func TestResume_EmptyStore(t *testing.T) {
	manager, _, _, _ := newTestManager(t)

	require.NoError(t, manager.Resume(context.Background()))
	assert.Equal(t, StateUnauthenticated, manager.State())
}

func TestSubscribe_ReceivesStateChanges(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ch := manager.Subscribe()

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	var states []State
	for len(ch) > 0 {
		snap := <-ch
		states = append(states, snap.State)
	}
	require.NotEmpty(t, states)
	assert.Contains(t, states, StateAuthenticating)
	assert.Equal(t, StateAuthenticated, states[len(states)-1])
}

func TestForceRefresh_ConcurrentWinnerDeduplicates(t *testing.T) {
	manager, _, client, _ := newTestManager(t)

	_, err := manager.Login(context.Background(), "alice.example", "app-password-x")
	require.NoError(t, err)

	// First forced refresh replaces the token.
	t1, err := manager.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "access-1", t1)

	_, refreshes := client.counts()
	assert.Equal(t, 1, refreshes)
}
