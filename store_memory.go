package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goerrors "github.com/goliatone/go-errors"
)

// MemoryStore is a concurrency safe in-memory PrincipalStore. It is meant for
// tests and single process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Principal
	byKey   map[string]uuid.UUID
	now     func() time.Time
	failure error
}

var (
	_ PrincipalStore     = (*MemoryStore)(nil)
	_ PrincipalRegistrar = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[uuid.UUID]*Principal),
		byKey: make(map[string]uuid.UUID),
		now:   time.Now,
	}
}

// FailWith makes every lookup return err until called again with nil.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Add stores principal as-is, assigning an id when missing.
func (s *MemoryStore) Add(principal *Principal) (*Principal, error) {
	if principal == nil {
		return nil, goerrors.New("principal is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if !principal.RoleKind.IsValid() {
		return nil, ErrInvalidRoleKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := *principal
	record.CredentialKey = NormalizeCredentialKey(record.CredentialKey)
	if _, taken := s.byKey[record.CredentialKey]; taken {
		return nil, ErrCredentialKeyTaken
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if _, taken := s.byID[record.ID]; taken {
		return nil, goerrors.New(fmt.Sprintf("principal id %s already registered", record.ID), goerrors.CategoryConflict).
			WithTextCode(TextCodePrincipalIDTaken).
			WithCode(goerrors.CodeConflict)
	}

	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	s.byID[record.ID] = &record
	s.byKey[record.CredentialKey] = record.ID

	out := record
	return &out, nil
}

// Register implements PrincipalRegistrar.
func (s *MemoryStore) Register(ctx context.Context, principal *Principal) (*Principal, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.Add(principal)
}

// FindByID implements PrincipalStore.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*Principal, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrPrincipalNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[uid]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	out := *p
	return &out, nil
}

// FindByCredentialKey implements PrincipalStore.
func (s *MemoryStore) FindByCredentialKey(ctx context.Context, key string) (*Principal, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[NormalizeCredentialKey(key)]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

// Deactivate soft deletes the principal.
func (s *MemoryStore) Deactivate(id uuid.UUID) error {
	return s.update(id, func(p *Principal, now time.Time) {
		p.Active = false
		p.DeletedAt = &now
	})
}

// Reactivate clears the soft delete marker.
func (s *MemoryStore) Reactivate(id uuid.UUID) error {
	return s.update(id, func(p *Principal, _ time.Time) {
		p.Active = true
		p.DeletedAt = nil
	})
}

// ChangeRole updates the principal's role kind.
func (s *MemoryStore) ChangeRole(id uuid.UUID, role RoleKind) error {
	if !role.IsValid() {
		return ErrInvalidRoleKind
	}
	return s.update(id, func(p *Principal, _ time.Time) {
		p.RoleKind = role
	})
}

// RotateCredential replaces the stored credential hash.
func (s *MemoryStore) RotateCredential(id uuid.UUID, hash string) error {
	return s.update(id, func(p *Principal, _ time.Time) {
		p.CredentialHash = hash
	})
}

func (s *MemoryStore) update(id uuid.UUID, fn func(*Principal, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	now := s.now()
	fn(p, now)
	p.UpdatedAt = now
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}
