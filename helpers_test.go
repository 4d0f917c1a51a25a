package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-auth-session"
)

const testSigningKey = "test-signing-key-0123456789abcdef0123"

func testOptions() auth.Options {
	return auth.Options{
		SigningKey: testSigningKey,
		Issuer:     "test-issuer",
		Audience:   []string{"test-aud"},
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, e auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *eventRecorder) Last() auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return auth.ActivityEvent{}
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	store    *auth.MemoryStore
	auther   *auth.Auther
	clock    *testClock
	verifier *auth.BcryptVerifier
	events   *eventRecorder
}

func newFixture(t *testing.T, tokenOpts ...auth.TokenServiceOption) *fixture {
	t.Helper()

	clock := newTestClock()
	store := auth.NewMemoryStore()

	opts := append([]auth.TokenServiceOption{auth.WithTokenClock(clock.Now)}, tokenOpts...)
	auther, err := auth.NewAuthenticator(store, testOptions(), opts...)
	require.NoError(t, err)

	verifier := auth.NewBcryptVerifier(bcrypt.MinCost)
	events := &eventRecorder{}

	auther.
		WithLogger(auth.NoopLogger()).
		WithCredentialVerifier(verifier).
		WithActivitySink(events).
		WithClock(clock.Now)

	return &fixture{
		store:    store,
		auther:   auther,
		clock:    clock,
		verifier: verifier,
		events:   events,
	}
}

func (f *fixture) addPrincipal(t *testing.T, key, secret string, role auth.RoleKind) *auth.Principal {
	t.Helper()

	hash, err := f.verifier.Hash(secret)
	require.NoError(t, err)

	p, err := f.store.Add(&auth.Principal{
		CredentialKey:  key,
		CredentialHash: hash,
		RoleKind:       role,
		Active:         true,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) login(t *testing.T, key, secret string) auth.SessionPair {
	t.Helper()
	pair, err := f.auther.Login(context.Background(), key, secret)
	require.NoError(t, err)
	return pair
}
