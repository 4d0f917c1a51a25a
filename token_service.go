package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/oklog/ulid/v2"
)

// MinSigningKeyLength is the shortest HMAC secret NewTokenService accepts.
const MinSigningKeyLength = 32

// TokenService signs and verifies session tokens with a server held HMAC key.
// It performs no I/O and holds no mutable state after construction.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newID      func() string
	decorator  ClaimsDecorator
	logger     Logger
	loggerSet  bool
}

var (
	_ TokenIssuer   = (*TokenService)(nil)
	_ TokenVerifier = (*TokenService)(nil)
)

// TokenServiceOption customizes a TokenService.
type TokenServiceOption func(*TokenService)

// WithTokenClock injects the clock used for issuance and expiry checks.
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenIDGenerator overrides how jti values are generated.
func WithTokenIDGenerator(gen func() string) TokenServiceOption {
	return func(ts *TokenService) {
		if gen != nil {
			ts.newID = gen
		}
	}
}

// WithTokenClaimsDecorator sets the decorator applied to access tokens.
func WithTokenClaimsDecorator(decorator ClaimsDecorator) TokenServiceOption {
	return func(ts *TokenService) {
		ts.decorator = normalizeClaimsDecorator(decorator)
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
		ts.loggerSet = true
	}
}

// NewTokenService creates a TokenService from cfg.
func NewTokenService(cfg Config, opts ...TokenServiceOption) (*TokenService, error) {
	if cfg == nil {
		return nil, errors.New("token service config is required", errors.CategoryBadInput)
	}

	key := []byte(cfg.GetSigningKey())
	if len(key) < MinSigningKeyLength {
		return nil, errors.New(
			fmt.Sprintf("signing key must be at least %d bytes", MinSigningKeyLength),
			errors.CategoryBadInput,
		).WithTextCode("WEAK_SIGNING_KEY")
	}

	// an empty issuer disables the parser's iss check
	issuer := strings.TrimSpace(cfg.GetIssuer())
	if issuer == "" {
		return nil, errors.New("token issuer is required", errors.CategoryBadInput).
			WithTextCode(TextCodeMissingIssuer)
	}

	var aud jwt.ClaimStrings
	if a := cfg.GetAudience(); len(a) > 0 {
		aud = make(jwt.ClaimStrings, len(a))
		copy(aud, a)
	}

	ts := &TokenService{
		signingKey: key,
		issuer:     issuer,
		audience:   aud,
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		now:        time.Now,
		newID:      func() string { return ulid.Make().String() },
		decorator:  noopClaimsDecorator{},
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	if ts.accessTTL <= 0 || ts.refreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive", errors.CategoryBadInput)
	}

	return ts, nil
}

// inheritLogger adopts logger unless WithTokenLogger was given.
func (ts *TokenService) inheritLogger(logger Logger) {
	if !ts.loggerSet {
		ts.logger = normalizeLogger(logger)
	}
}

// AccessTTL returns the configured access token lifetime.
func (ts *TokenService) AccessTTL() time.Duration {
	return ts.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (ts *TokenService) RefreshTTL() time.Duration {
	return ts.refreshTTL
}

// Issue mints an access/refresh pair for principal.
func (ts *TokenService) Issue(ctx context.Context, principal PrincipalRef) (SessionPair, error) {
	if principal.ID == "" {
		return SessionPair{}, errors.New("principal id is required", errors.CategoryBadInput)
	}
	if !principal.RoleKind.IsValid() {
		return SessionPair{}, ErrInvalidRoleKind
	}

	now := ts.now()

	access := ts.newClaims(principal.ID, TokenKindAccess, now, ts.accessTTL)
	access.Role = principal.RoleKind
	access.TenantID = principal.TenantID

	snapshot := captureImmutableClaims(access)
	if err := ts.decorator.Decorate(ctx, principal, access); err != nil {
		ts.logger.Error("claims decorator failed", "error", err)
		return SessionPair{}, errors.Wrap(err, errors.CategoryInternal, "failed to decorate access claims")
	}
	if err := snapshot.validate(access); err != nil {
		ts.logger.Error("claims decorator mutated immutable claims", "error", err)
		return SessionPair{}, err
	}

	refresh := ts.newClaims(principal.ID, TokenKindRefresh, now, ts.refreshTTL)

	accessToken, err := ts.sign(access)
	if err != nil {
		return SessionPair{}, err
	}

	refreshToken, err := ts.sign(refresh)
	if err != nil {
		return SessionPair{}, err
	}

	return SessionPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        DefaultAuthScheme,
		ExpiresAt:        access.Expires(),
		RefreshableUntil: refresh.Expires(),
	}, nil
}

func (ts *TokenService) newClaims(subject string, kind TokenKind, now time.Time, ttl time.Duration) *SessionClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	return &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ts.newID(),
		},
		Kind: kind,
	}
}

func (ts *TokenService) sign(claims *SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Verify validates signature, issuer, audience, expiry, and kind. Every
// failure is reported as ErrTokenInvalid; the cause is kept in the metadata.
func (ts *TokenService) Verify(tokenString string, expected TokenKind) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, withCause(ErrTokenInvalid, fmt.Errorf("empty token"))
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ts.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(ts.now),
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			ts.logger.Debug("token verify rejected expired token")
			return nil, withCause(ErrTokenExpired, err)
		}
		ts.logger.Debug("token verify rejected token", "error", err)
		return nil, withCause(ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, withCause(ErrTokenInvalid, fmt.Errorf("token not valid"))
	}

	if claims.Kind != expected {
		ts.logger.Debug("token verify kind mismatch", "kind", claims.Kind, "expected", expected)
		return nil, withCause(ErrTokenInvalid, fmt.Errorf("token kind %q, expected %q", claims.Kind, expected))
	}

	return claims, nil
}
