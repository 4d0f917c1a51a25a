package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// PrincipalRepository is a bun backed PrincipalStore. Lookups include soft
// deleted rows so callers can tell "not found" from "found but inactive".
type PrincipalRepository struct {
	repository.Repository[*Principal]
	db           *bun.DB
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

var (
	_ PrincipalStore     = (*PrincipalRepository)(nil)
	_ PrincipalRegistrar = (*PrincipalRepository)(nil)
)

// PrincipalRepositoryOption customizes a PrincipalRepository.
type PrincipalRepositoryOption func(*PrincipalRepository)

// WithRepositoryActivitySink publishes lifecycle changes to sink.
func WithRepositoryActivitySink(sink ActivitySink) PrincipalRepositoryOption {
	return func(r *PrincipalRepository) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithRepositoryClock injects the clock used for timestamps.
func WithRepositoryClock(now func() time.Time) PrincipalRepositoryOption {
	return func(r *PrincipalRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRepositoryLogger sets the logger.
func WithRepositoryLogger(logger Logger) PrincipalRepositoryOption {
	return func(r *PrincipalRepository) {
		r.logger = normalizeLogger(logger)
	}
}

// NewPrincipalRepository creates a PrincipalRepository on db.
func NewPrincipalRepository(db *bun.DB, opts ...PrincipalRepositoryOption) *PrincipalRepository {
	repo := repository.NewRepository[*Principal](db, repository.ModelHandlers[*Principal]{
		NewRecord: func() *Principal { return &Principal{} },
		GetID: func(p *Principal) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Principal, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "credential_key"
		},
	})

	r := &PrincipalRepository{
		Repository:   repo,
		db:           db,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// CreateSchema creates the principals table when it does not exist.
func (r *PrincipalRepository) CreateSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*Principal)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create principals table")
	}
	return nil
}

// Register implements PrincipalRegistrar.
func (r *PrincipalRepository) Register(ctx context.Context, principal *Principal) (*Principal, error) {
	if principal == nil {
		return nil, goerrors.New("principal is required", goerrors.CategoryBadInput)
	}
	if !principal.RoleKind.IsValid() {
		return nil, ErrInvalidRoleKind
	}

	principal.CredentialKey = NormalizeCredentialKey(principal.CredentialKey)
	if principal.ID == uuid.Nil {
		principal.ID = uuid.New()
	}
	now := r.now()
	principal.CreatedAt = now
	principal.UpdatedAt = now

	record, err := r.Repository.CreateTx(ctx, r.db, principal)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCredentialKeyTaken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register principal")
	}

	return record, nil
}

// FindByID implements PrincipalStore.
func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (*Principal, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrPrincipalNotFound
	}
	return r.findOne(ctx, "id", uid)
}

// FindByCredentialKey implements PrincipalStore.
func (r *PrincipalRepository) FindByCredentialKey(ctx context.Context, key string) (*Principal, error) {
	key = NormalizeCredentialKey(key)
	if key == "" {
		return nil, ErrPrincipalNotFound
	}
	return r.findOne(ctx, "credential_key", key)
}

func (r *PrincipalRepository) findOne(ctx context.Context, column string, value any) (*Principal, error) {
	record := &Principal{}
	err := r.db.NewSelect().
		Model(record).
		WhereAllWithDeleted().
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}

	return record, nil
}

// Deactivate flips the active flag and stamps deleted_at. The row is kept.
func (r *PrincipalRepository) Deactivate(ctx context.Context, id uuid.UUID, reason string) error {
	now := r.now()
	err := r.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("active = ?", false).Set("deleted_at = ?", now)
	})
	if err != nil {
		return err
	}
	r.emit(ctx, id, "deactivated", reason)
	return nil
}

// Reactivate clears the deactivation markers.
func (r *PrincipalRepository) Reactivate(ctx context.Context, id uuid.UUID, reason string) error {
	err := r.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("active = ?", true).Set("deleted_at = NULL")
	})
	if err != nil {
		return err
	}
	r.emit(ctx, id, "reactivated", reason)
	return nil
}

// ChangeRole updates the role kind. Outstanding access tokens keep the old
// role claim but the gate always checks the stored one.
func (r *PrincipalRepository) ChangeRole(ctx context.Context, id uuid.UUID, role RoleKind) error {
	if !role.IsValid() {
		return ErrInvalidRoleKind
	}
	err := r.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("role_kind = ?", role)
	})
	if err != nil {
		return err
	}
	r.emit(ctx, id, "role_changed", string(role))
	return nil
}

// RotateCredential replaces the stored credential hash.
func (r *PrincipalRepository) RotateCredential(ctx context.Context, id uuid.UUID, hash string) error {
	if hash == "" {
		return ErrEmptySecret
	}
	return r.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("credential_hash = ?", hash)
	})
}

func (r *PrincipalRepository) update(ctx context.Context, id uuid.UUID, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := r.db.NewUpdate().
		Model((*Principal)(nil)).
		WhereAllWithDeleted().
		Set("updated_at = ?", r.now()).
		Where("?TableAlias.id = ?", id)

	res, err := set(q).Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update principal")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (r *PrincipalRepository) emit(ctx context.Context, id uuid.UUID, change, reason string) {
	event := ActivityEvent{
		EventType:   ActivityEventPrincipalChanged,
		PrincipalID: id.String(),
		Reason:      reason,
		Metadata:    map[string]any{"change": change},
		OccurredAt:  r.now(),
	}
	if err := r.activitySink.Record(ctx, event); err != nil {
		r.logger.Warn("activity sink record error", "error", err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
