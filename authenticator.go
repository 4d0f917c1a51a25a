package auth

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Auther runs the session lifecycle: join, login, refresh, authorize, logout.
type Auther struct {
	store        PrincipalStore
	credentials  CredentialVerifier
	issuer       TokenIssuer
	verifier     TokenVerifier
	logger       Logger
	activitySink ActivitySink
	metrics      *Metrics
	limiter      LoginLimiter
	denylist     RefreshDenylist
	storeTimeout time.Duration
	now          func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store PrincipalStore, opts Config, tokenOpts ...TokenServiceOption) (*Auther, error) {
	if store == nil {
		return nil, goerrors.New("principal store is required", goerrors.CategoryBadInput)
	}

	tokens, err := NewTokenService(opts, tokenOpts...)
	if err != nil {
		return nil, err
	}

	return &Auther{
		store:        store,
		credentials:  NewBcryptVerifier(0),
		issuer:       tokens,
		verifier:     tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}, nil
}

// WithLogger sets the logger. A TokenService built without WithTokenLogger
// logs through it too.
func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	if ts, ok := s.verifier.(*TokenService); ok {
		ts.inheritLogger(s.logger)
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithMetrics records outcomes on m. A nil m disables metrics.
func (s *Auther) WithMetrics(m *Metrics) *Auther {
	s.metrics = m
	return s
}

// WithLoginLimiter throttles Login per credential key.
func (s *Auther) WithLoginLimiter(limiter LoginLimiter) *Auther {
	s.limiter = limiter
	return s
}

// WithRefreshDenylist enables strict refresh rotation and Logout revocation.
func (s *Auther) WithRefreshDenylist(denylist RefreshDenylist) *Auther {
	s.denylist = denylist
	return s
}

// WithCredentialVerifier replaces the default bcrypt verifier.
func (s *Auther) WithCredentialVerifier(v CredentialVerifier) *Auther {
	if v != nil {
		s.credentials = v
	}
	return s
}

// WithTokenService swaps the issuer and verifier pair.
func (s *Auther) WithTokenService(ts *TokenService) *Auther {
	if ts != nil {
		ts.inheritLogger(s.logger)
		s.issuer = ts
		s.verifier = ts
	}
	return s
}

// WithStoreTimeout bounds every principal store call. Zero means the caller's
// context is the only bound.
func (s *Auther) WithStoreTimeout(d time.Duration) *Auther {
	s.storeTimeout = d
	return s
}

// WithClock injects the clock used for activity timestamps.
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// CredentialVerifier returns the verifier used to hash and check secrets.
func (s *Auther) CredentialVerifier() CredentialVerifier {
	return s.credentials
}

// Join registers a principal and returns its first session pair. The store
// must implement PrincipalRegistrar.
func (s *Auther) Join(ctx context.Context, req JoinRequest) (SessionPair, error) {
	registrar, ok := s.store.(PrincipalRegistrar)
	if !ok {
		return SessionPair{}, goerrors.New("principal store does not support registration", goerrors.CategoryOperation).
			WithCode(goerrors.CodeInternal)
	}

	key := NormalizeCredentialKey(req.CredentialKey)
	if key == "" {
		return SessionPair{}, goerrors.New("credential key is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	role := req.RoleKind
	if role == "" {
		role = RoleMember
	}
	if !role.IsValid() {
		return SessionPair{}, ErrInvalidRoleKind
	}

	hash, err := s.credentials.Hash(req.Secret)
	if err != nil {
		return SessionPair{}, err
	}

	principal, err := s.withStore(ctx, func(ctx context.Context) (*Principal, error) {
		return registrar.Register(ctx, &Principal{
			RoleKind:       role,
			TenantID:       req.TenantID,
			CredentialKey:  key,
			CredentialHash: hash,
			Active:         true,
		})
	})
	if err != nil {
		if errors.Is(err, ErrCredentialKeyTaken) {
			return SessionPair{}, ErrCredentialKeyTaken
		}
		s.logger.Error("join register error", "error", err)
		return SessionPair{}, withCause(ErrAuthUnavailable, err)
	}

	pair, err := s.issuer.Issue(ctx, principal.Ref())
	if err != nil {
		s.logger.Error("join issue error", "error", err)
		return SessionPair{}, err
	}

	s.emit(ctx, ActivityEventJoin, principal.Ref(), "", nil)
	return pair, nil
}

// Login verifies a credential key and secret and returns a fresh session
// pair. Unknown keys and wrong secrets are reported identically.
func (s *Auther) Login(ctx context.Context, identifier, secret string) (SessionPair, error) {
	key := NormalizeCredentialKey(identifier)

	if s.limiter != nil && !s.limiter.Allow(key) {
		s.metrics.login(OutcomeThrottled)
		s.emit(ctx, ActivityEventLoginFailure, PrincipalRef{}, "throttled", map[string]any{"identifier": key})
		return SessionPair{}, ErrTooManyLoginAttempts
	}

	principal, err := s.withStore(ctx, func(ctx context.Context) (*Principal, error) {
		return s.store.FindByCredentialKey(ctx, key)
	})
	if err != nil {
		if IsNotFound(err) {
			// unknown keys pay for a comparison too
			s.credentials.Verify(secret, "")
			s.metrics.login(OutcomeRejected)
			s.emit(ctx, ActivityEventLoginFailure, PrincipalRef{}, "invalid_credentials", map[string]any{"identifier": key})
			return SessionPair{}, ErrInvalidCredentials
		}
		s.logger.Error("login store error", "error", err)
		s.metrics.login(OutcomeUnavailable)
		return SessionPair{}, withCause(ErrAuthUnavailable, err)
	}

	if !s.credentials.Verify(secret, principal.CredentialHash) {
		s.metrics.login(OutcomeRejected)
		s.emit(ctx, ActivityEventLoginFailure, principal.Ref(), "invalid_credentials", map[string]any{"identifier": key})
		return SessionPair{}, ErrInvalidCredentials
	}

	if !principal.IsActive() {
		s.logger.Warn("login blocked for inactive principal", "principal", principal.ID)
		s.metrics.login(OutcomeInactive)
		s.emit(ctx, ActivityEventLoginFailure, principal.Ref(), "inactive", nil)
		return SessionPair{}, ErrAccountInactive
	}

	pair, err := s.issuer.Issue(ctx, principal.Ref())
	if err != nil {
		s.logger.Error("login issue error", "error", err)
		s.metrics.login(OutcomeUnavailable)
		return SessionPair{}, err
	}

	s.metrics.login(OutcomeSuccess)
	s.emit(ctx, ActivityEventLoginSuccess, principal.Ref(), "", nil)
	return pair, nil
}

// resolve fetches id and checks liveness. It returns ErrPrincipalNotFound,
// ErrPrincipalInactive, or an ErrAuthUnavailable wrapper.
func (s *Auther) resolve(ctx context.Context, id string) (*Principal, error) {
	principal, err := s.withStore(ctx, func(ctx context.Context) (*Principal, error) {
		return s.store.FindByID(ctx, id)
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrPrincipalNotFound
		}
		return nil, withCause(ErrAuthUnavailable, err)
	}
	if !principal.IsActive() {
		return principal, ErrPrincipalInactive
	}
	return principal, nil
}

func (s *Auther) withStore(ctx context.Context, fn func(context.Context) (*Principal, error)) (*Principal, error) {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	principal, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, ErrPrincipalNotFound
	}
	return principal, nil
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, ref PrincipalRef, reason string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:   eventType,
		PrincipalID: ref.ID,
		RoleKind:    ref.RoleKind,
		Reason:      reason,
		Metadata:    metadata,
		OccurredAt:  s.now(),
	}
	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}
