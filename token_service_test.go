package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-session"
)

func newTokenService(t *testing.T, clock *testClock, opts ...auth.TokenServiceOption) *auth.TokenService {
	t.Helper()
	opts = append([]auth.TokenServiceOption{
		auth.WithTokenClock(clock.Now),
		auth.WithTokenLogger(auth.NoopLogger()),
	}, opts...)
	ts, err := auth.NewTokenService(testOptions(), opts...)
	require.NoError(t, err)
	return ts
}

var testRef = auth.PrincipalRef{
	ID:       "6f1c3c8e-8c9a-4c0e-9a53-4bb3d0c2a001",
	RoleKind: auth.RoleStaff,
	TenantID: "tenant-a",
}

func TestNewTokenService_RejectsWeakKey(t *testing.T) {
	_, err := auth.NewTokenService(auth.Options{SigningKey: "short"})
	require.Error(t, err)

	_, err = auth.NewTokenService(nil)
	require.Error(t, err)
}

func TestNewTokenService_Defaults(t *testing.T) {
	ts, err := auth.NewTokenService(auth.Options{SigningKey: testSigningKey})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ts.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, ts.RefreshTTL())
}

func TestTokenService_IssueVerifyRoundTrip(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	pair, err := ts.Issue(context.Background(), testRef)
	require.NoError(t, err)

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, clock.Now().Add(time.Hour).Equal(pair.ExpiresAt))
	assert.True(t, clock.Now().Add(7*24*time.Hour).Equal(pair.RefreshableUntil))

	access, err := ts.Verify(pair.AccessToken, auth.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, testRef.ID, access.SubjectID())
	assert.Equal(t, auth.TokenKindAccess, access.Kind)
	assert.Equal(t, auth.RoleStaff, access.Role)
	assert.Equal(t, "tenant-a", access.TenantID)
	assert.Equal(t, "test-issuer", access.Issuer)
	assert.True(t, clock.Now().Equal(access.Issued()))
	assert.True(t, pair.ExpiresAt.Equal(access.Expires()))
	assert.NotEmpty(t, access.TokenID())

	refresh, err := ts.Verify(pair.RefreshToken, auth.TokenKindRefresh)
	require.NoError(t, err)
	assert.Equal(t, testRef.ID, refresh.SubjectID())
	assert.Equal(t, auth.TokenKindRefresh, refresh.Kind)
	assert.Empty(t, refresh.Role)
	assert.NotEqual(t, access.TokenID(), refresh.TokenID())
}

func TestTokenService_KindMismatchRejected(t *testing.T) {
	ts := newTokenService(t, newTestClock())

	pair, err := ts.Issue(context.Background(), testRef)
	require.NoError(t, err)

	_, err = ts.Verify(pair.AccessToken, auth.TokenKindRefresh)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))

	_, err = ts.Verify(pair.RefreshToken, auth.TokenKindAccess)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))
}

func TestTokenService_ExpiryIsStrict(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	pair, err := ts.Issue(context.Background(), testRef)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	_, err = ts.Verify(pair.AccessToken, auth.TokenKindAccess)
	require.NoError(t, err)

	// now == exp is already expired
	clock.Advance(time.Second)
	_, err = ts.Verify(pair.AccessToken, auth.TokenKindAccess)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))

	_, err = ts.Verify(pair.RefreshToken, auth.TokenKindRefresh)
	require.NoError(t, err)

	clock.Advance(7 * 24 * time.Hour)
	_, err = ts.Verify(pair.RefreshToken, auth.TokenKindRefresh)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))
}

func TestTokenService_ExpiredTokenIsRecognisable(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	pair, err := ts.Issue(context.Background(), testRef)
	require.NoError(t, err)

	_, err = ts.Verify(pair.RefreshToken, auth.TokenKindAccess)
	require.Error(t, err)
	assert.False(t, auth.IsTokenExpiredError(err))

	clock.Advance(time.Hour)
	_, err = ts.Verify(pair.AccessToken, auth.TokenKindAccess)
	require.Error(t, err)
	assert.True(t, auth.IsTokenExpiredError(err))
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))

	// the public payload is the same as for any other invalid token
	status, payload := auth.PublicError(err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeTokenInvalid, payload.TextCode)
}

type blankIssuerConfig struct {
	auth.Options
}

func (blankIssuerConfig) GetIssuer() string { return " " }

func TestNewTokenService_RequiresIssuer(t *testing.T) {
	_, err := auth.NewTokenService(blankIssuerConfig{Options: testOptions()})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryBadInput, richErr.Category)
	assert.Equal(t, auth.TextCodeMissingIssuer, richErr.TextCode)
}

func TestTokenService_ForeignTrustDomainRejected(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	otherIssuer := testOptions()
	otherIssuer.Issuer = "someone-else"
	foreign, err := auth.NewTokenService(otherIssuer, auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	otherKey := testOptions()
	otherKey.SigningKey = "another-signing-key-0123456789abcdef"
	forged, err := auth.NewTokenService(otherKey, auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	otherAud := testOptions()
	otherAud.Audience = []string{"other-aud"}
	wrongAud, err := auth.NewTokenService(otherAud, auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	for name, src := range map[string]*auth.TokenService{
		"issuer":   foreign,
		"key":      forged,
		"audience": wrongAud,
	} {
		t.Run(name, func(t *testing.T) {
			pair, err := src.Issue(context.Background(), testRef)
			require.NoError(t, err)

			_, err = ts.Verify(pair.AccessToken, auth.TokenKindAccess)
			assert.True(t, errors.Is(err, auth.ErrTokenInvalid))
		})
	}
}

func TestTokenService_RejectsGarbageAndOtherAlgorithms(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	_, err := ts.Verify("", auth.TokenKindAccess)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))

	_, err = ts.Verify("not.a.jwt", auth.TokenKindAccess)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))

	claims := auth.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   testRef.ID,
			Audience:  jwt.ClaimStrings{"test-aud"},
			IssuedAt:  jwt.NewNumericDate(clock.Now()),
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			ID:        "jti-1",
		},
		Kind: auth.TokenKindAccess,
		Role: auth.RoleAdmin,
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Verify(unsigned, auth.TokenKindAccess)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	_, err = ts.Verify(hs512, auth.TokenKindAccess)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	_, err = ts.Verify(hs256, auth.TokenKindAccess)
	assert.NoError(t, err)
}

func TestTokenService_StructuralClaimsRequired(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	base := func() auth.SessionClaims {
		return auth.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   testRef.ID,
				Audience:  jwt.ClaimStrings{"test-aud"},
				IssuedAt:  jwt.NewNumericDate(clock.Now()),
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
				ID:        "jti-1",
			},
			Kind: auth.TokenKindAccess,
			Role: auth.RoleAdmin,
		}
	}

	tests := map[string]func(*auth.SessionClaims){
		"missing subject": func(c *auth.SessionClaims) { c.Subject = "" },
		"missing jti":     func(c *auth.SessionClaims) { c.ID = "" },
		"unknown kind":    func(c *auth.SessionClaims) { c.Kind = "session" },
		"unknown role":    func(c *auth.SessionClaims) { c.Role = "nurse" },
		"missing exp":     func(c *auth.SessionClaims) { c.ExpiresAt = nil },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSigningKey))
			require.NoError(t, err)

			_, err = ts.Verify(signed, auth.TokenKindAccess)
			assert.True(t, errors.Is(err, auth.ErrTokenInvalid))
		})
	}
}

func TestTokenService_SuccessiveIssuesDiffer(t *testing.T) {
	ts := newTokenService(t, newTestClock())

	p1, err := ts.Issue(context.Background(), testRef)
	require.NoError(t, err)
	p2, err := ts.Issue(context.Background(), testRef)
	require.NoError(t, err)

	assert.NotEqual(t, p1.AccessToken, p2.AccessToken)
	assert.NotEqual(t, p1.RefreshToken, p2.RefreshToken)
}

func TestTokenService_IssueValidatesPrincipal(t *testing.T) {
	ts := newTokenService(t, newTestClock())

	_, err := ts.Issue(context.Background(), auth.PrincipalRef{RoleKind: auth.RoleAdmin})
	assert.Error(t, err)

	_, err = ts.Issue(context.Background(), auth.PrincipalRef{ID: "p", RoleKind: "nurse"})
	assert.True(t, errors.Is(err, auth.ErrInvalidRoleKind))
}

func TestTokenService_ClaimsDecorator(t *testing.T) {
	clock := newTestClock()

	decorated := newTokenService(t, clock, auth.WithTokenClaimsDecorator(
		auth.ClaimsDecoratorFunc(func(_ context.Context, ref auth.PrincipalRef, c *auth.SessionClaims) error {
			if c.Metadata == nil {
				c.Metadata = map[string]any{}
			}
			c.Metadata["plan"] = "pro"
			return nil
		}),
	))

	pair, err := decorated.Issue(context.Background(), testRef)
	require.NoError(t, err)

	access, err := decorated.Verify(pair.AccessToken, auth.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, "pro", access.Metadata["plan"])

	refresh, err := decorated.Verify(pair.RefreshToken, auth.TokenKindRefresh)
	require.NoError(t, err)
	assert.Empty(t, refresh.Metadata)
}

func TestTokenService_ClaimsDecoratorCannotMutateProtectedClaims(t *testing.T) {
	mutations := map[string]func(*auth.SessionClaims){
		"subject":  func(c *auth.SessionClaims) { c.Subject = "someone-else" },
		"role":     func(c *auth.SessionClaims) { c.Role = auth.RoleOwner },
		"kind":     func(c *auth.SessionClaims) { c.Kind = auth.TokenKindRefresh },
		"tenant":   func(c *auth.SessionClaims) { c.TenantID = "tenant-b" },
		"expiry":   func(c *auth.SessionClaims) { c.ExpiresAt = jwt.NewNumericDate(c.ExpiresAt.Add(time.Hour)) },
		"audience": func(c *auth.SessionClaims) { c.Audience = jwt.ClaimStrings{"x"} },
		"jti":      func(c *auth.SessionClaims) { c.ID = "fixed" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			ts := newTokenService(t, newTestClock(), auth.WithTokenClaimsDecorator(
				auth.ClaimsDecoratorFunc(func(_ context.Context, _ auth.PrincipalRef, c *auth.SessionClaims) error {
					mutate(c)
					return nil
				}),
			))

			_, err := ts.Issue(context.Background(), testRef)
			assert.True(t, errors.Is(err, auth.ErrImmutableClaimMutation))
		})
	}
}

func TestTokenService_ClaimsDecoratorError(t *testing.T) {
	boom := errors.New("boom")
	ts := newTokenService(t, newTestClock(), auth.WithTokenClaimsDecorator(
		auth.ClaimsDecoratorFunc(func(context.Context, auth.PrincipalRef, *auth.SessionClaims) error {
			return boom
		}),
	))

	_, err := ts.Issue(context.Background(), testRef)
	assert.Error(t, err)
}
