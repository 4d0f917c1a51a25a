package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-session"
)

func TestAuthorize_AdminScenario(t *testing.T) {
	f := newFixture(t)
	p1 := f.addPrincipal(t, "p1@example.com", "p1-secret", auth.RoleAdmin)

	pair := f.login(t, "p1@example.com", "p1-secret")

	got, err := f.auther.Authorize(context.Background(), pair.AccessToken, auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, p1.ID.String(), got.ID)
	assert.Equal(t, auth.RoleAdmin, got.RoleKind)
	assert.NotEmpty(t, got.TokenID)
	assert.True(t, got.ExpiresAt.Equal(pair.ExpiresAt))

	_, err = f.auther.Login(context.Background(), "p1@example.com", "wrong")
	assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))

	require.NoError(t, f.store.Deactivate(p1.ID))

	_, err = f.auther.Authorize(context.Background(), pair.AccessToken, auth.RoleAdmin)
	assert.True(t, errors.Is(err, auth.ErrUnauthenticated))

	_, err = f.auther.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, errors.Is(err, auth.ErrInvalidRefreshToken))
}

func TestAuthorize_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "p@example.com", "secret", auth.RoleMember)
	pair := f.login(t, "p@example.com", "secret")

	a, err := f.auther.Authorize(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	b, err := f.auther.Authorize(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAuthorize_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "p@example.com", "secret", auth.RoleMember)
	pair := f.login(t, "p@example.com", "secret")

	other := newFixture(t)
	other.addPrincipal(t, "p@example.com", "secret", auth.RoleMember)
	orphan := other.login(t, "p@example.com", "secret")

	for name, token := range map[string]string{
		"no token":      "",
		"blank":         "   ",
		"garbage":       "garbage",
		"refresh token": pair.RefreshToken,
		"unknown sub":   orphan.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.auther.Authorize(context.Background(), token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, auth.ErrUnauthenticated))
			assert.Equal(t, auth.ErrUnauthenticated.Error(), err.Error())
		})
	}
}

func TestAuthorize_ExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "p@example.com", "secret", auth.RoleMember)
	pair := f.login(t, "p@example.com", "secret")

	f.clock.Advance(time.Hour)

	_, err := f.auther.Authorize(context.Background(), pair.AccessToken)
	assert.True(t, errors.Is(err, auth.ErrUnauthenticated))
	assert.False(t, auth.IsTokenExpiredError(err), "callers only see the generic rejection")

	last := f.events.Last()
	assert.Equal(t, auth.ActivityEventAuthorizeDenied, last.EventType)
	assert.Equal(t, "token_expired", last.Reason)
}

func TestAuthorize_RoleDowngradeIsImmediate(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "boss@example.com", "secret", auth.RoleAdmin)
	pair := f.login(t, "boss@example.com", "secret")

	require.NoError(t, f.store.ChangeRole(p.ID, auth.RoleMember))

	_, err := f.auther.Authorize(context.Background(), pair.AccessToken, auth.RoleAdmin)
	assert.True(t, errors.Is(err, auth.ErrForbidden))

	got, err := f.auther.Authorize(context.Background(), pair.AccessToken, auth.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMember, got.RoleKind)
}

func TestAuthorize_Forbidden(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "emp@example.com", "secret", auth.RoleEmployee)
	pair := f.login(t, "emp@example.com", "secret")

	_, err := f.auther.Authorize(context.Background(), pair.AccessToken, auth.RoleAdmin, auth.RoleOwner)
	assert.True(t, errors.Is(err, auth.ErrForbidden))
	assert.False(t, errors.Is(err, auth.ErrUnauthenticated))

	_, err = f.auther.Authorize(context.Background(), pair.AccessToken, "nurse")
	assert.True(t, errors.Is(err, auth.ErrForbidden))

	_, err = f.auther.Authorize(context.Background(), pair.AccessToken, auth.RoleEmployee, auth.RoleStaff)
	assert.NoError(t, err)

	assert.Equal(t, auth.ActivityEventAuthorizeDenied, f.events.Last().EventType)
}

func TestAuthorize_StoreFailureFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "p@example.com", "secret", auth.RoleMember)
	pair := f.login(t, "p@example.com", "secret")

	f.store.FailWith(context.DeadlineExceeded)

	got, err := f.auther.Authorize(context.Background(), pair.AccessToken)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, auth.ErrAuthUnavailable))
	assert.False(t, errors.Is(err, auth.ErrUnauthenticated))
}

func TestAuthorize_TenantScopedStaff(t *testing.T) {
	f := newFixture(t)

	hash, err := f.verifier.Hash("secret")
	require.NoError(t, err)
	_, err = f.store.Add(&auth.Principal{
		CredentialKey:  "staff@tenant.example",
		CredentialHash: hash,
		RoleKind:       auth.RoleStaff,
		TenantID:       "tenant-42",
		Active:         true,
	})
	require.NoError(t, err)

	pair := f.login(t, "staff@tenant.example", "secret")
	got, err := f.auther.Authorize(context.Background(), pair.AccessToken, auth.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, "tenant-42", got.TenantID)
}
