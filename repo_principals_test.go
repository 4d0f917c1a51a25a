package auth_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-auth-session"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRepository(t *testing.T, opts ...auth.PrincipalRepositoryOption) *auth.PrincipalRepository {
	t.Helper()
	opts = append([]auth.PrincipalRepositoryOption{auth.WithRepositoryLogger(auth.NoopLogger())}, opts...)
	repo := auth.NewPrincipalRepository(newTestDB(t), opts...)
	require.NoError(t, repo.CreateSchema(context.Background()))
	return repo
}

func TestPrincipalRepository_RegisterAndFind(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p, err := repo.Register(ctx, &auth.Principal{
		CredentialKey:  " Admin@Example.com ",
		CredentialHash: "hash",
		RoleKind:       auth.RoleAdmin,
		TenantID:       "t1",
		Active:         true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)

	byID, err := repo.FindByID(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", byID.CredentialKey)
	assert.Equal(t, auth.RoleAdmin, byID.RoleKind)
	assert.Equal(t, "t1", byID.TenantID)
	assert.True(t, byID.IsActive())

	byKey, err := repo.FindByCredentialKey(ctx, "ADMIN@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byKey.ID)
}

func TestPrincipalRepository_NotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, auth.ErrPrincipalNotFound))

	_, err = repo.FindByID(ctx, "nope")
	assert.True(t, errors.Is(err, auth.ErrPrincipalNotFound))

	_, err = repo.FindByCredentialKey(ctx, "missing@example.com")
	assert.True(t, errors.Is(err, auth.ErrPrincipalNotFound))

	_, err = repo.FindByCredentialKey(ctx, "  ")
	assert.True(t, errors.Is(err, auth.ErrPrincipalNotFound))
}

func TestPrincipalRepository_DuplicateKey(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Register(ctx, &auth.Principal{CredentialKey: "a@example.com", CredentialHash: "h", RoleKind: auth.RoleMember, Active: true})
	require.NoError(t, err)

	_, err = repo.Register(ctx, &auth.Principal{CredentialKey: "A@EXAMPLE.com", CredentialHash: "h", RoleKind: auth.RoleMember, Active: true})
	assert.True(t, errors.Is(err, auth.ErrCredentialKeyTaken))

	_, err = repo.Register(ctx, &auth.Principal{CredentialKey: "b@example.com", CredentialHash: "h", RoleKind: "nurse"})
	assert.True(t, errors.Is(err, auth.ErrInvalidRoleKind))
}

func TestPrincipalRepository_SoftDeleteStillResolves(t *testing.T) {
	events := &eventRecorder{}
	repo := newTestRepository(t, auth.WithRepositoryActivitySink(events))
	ctx := context.Background()

	p, err := repo.Register(ctx, &auth.Principal{CredentialKey: "a@example.com", CredentialHash: "h", RoleKind: auth.RoleMember, Active: true})
	require.NoError(t, err)

	require.NoError(t, repo.Deactivate(ctx, p.ID, "requested"))

	got, err := repo.FindByID(ctx, p.ID.String())
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	assert.NotNil(t, got.DeletedAt)

	got, err = repo.FindByCredentialKey(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, got.IsActive())

	require.NoError(t, repo.Reactivate(ctx, p.ID, "appeal"))
	got, err = repo.FindByID(ctx, p.ID.String())
	require.NoError(t, err)
	assert.True(t, got.IsActive())
	assert.Nil(t, got.DeletedAt)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventPrincipalChanged,
		auth.ActivityEventPrincipalChanged,
	}, events.Types())
	assert.Equal(t, "reactivated", events.Last().Metadata["change"])
}

func TestPrincipalRepository_ChangeRoleAndRotate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p, err := repo.Register(ctx, &auth.Principal{CredentialKey: "a@example.com", CredentialHash: "h1", RoleKind: auth.RoleMember, Active: true})
	require.NoError(t, err)

	require.NoError(t, repo.ChangeRole(ctx, p.ID, auth.RoleModerator))
	assert.True(t, errors.Is(repo.ChangeRole(ctx, p.ID, "nurse"), auth.ErrInvalidRoleKind))

	require.NoError(t, repo.RotateCredential(ctx, p.ID, "h2"))
	assert.True(t, errors.Is(repo.RotateCredential(ctx, p.ID, ""), auth.ErrEmptySecret))

	got, err := repo.FindByID(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, auth.RoleModerator, got.RoleKind)
	assert.Equal(t, "h2", got.CredentialHash)

	assert.True(t, errors.Is(repo.Deactivate(ctx, uuid.New(), ""), auth.ErrPrincipalNotFound))
}

func TestPrincipalRepository_WithAuthenticator(t *testing.T) {
	clock := newTestClock()
	repo := newTestRepository(t, auth.WithRepositoryClock(clock.Now))
	ctx := context.Background()

	auther, err := auth.NewAuthenticator(repo, testOptions(), auth.WithTokenClock(clock.Now))
	require.NoError(t, err)
	auther.WithLogger(auth.NoopLogger()).WithCredentialVerifier(auth.NewBcryptVerifier(4))

	pair, err := auther.Join(ctx, auth.JoinRequest{CredentialKey: "owner@example.com", Secret: "owner-secret", RoleKind: auth.RoleOwner})
	require.NoError(t, err)

	got, err := auther.Authorize(ctx, pair.AccessToken, auth.RoleOwner)
	require.NoError(t, err)

	_, err = auther.Join(ctx, auth.JoinRequest{CredentialKey: "owner@example.com", Secret: "owner-secret"})
	assert.True(t, errors.Is(err, auth.ErrCredentialKeyTaken))

	id, err := uuid.Parse(got.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Deactivate(ctx, id, "offboarded"))

	_, err = auther.Authorize(ctx, pair.AccessToken)
	assert.True(t, errors.Is(err, auth.ErrUnauthenticated))

	clock.Advance(time.Minute)
	_, err = auther.Refresh(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, auth.ErrInvalidRefreshToken))

	_, err = auther.Login(ctx, "owner@example.com", "owner-secret")
	assert.True(t, errors.Is(err, auth.ErrAccountInactive))
}
