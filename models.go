package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Principal is any authenticable actor. It is also the bun model used by
// PrincipalRepository.
type Principal struct {
	bun.BaseModel  `bun:"table:principals,alias:prn"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	RoleKind       RoleKind   `bun:"role_kind,notnull" json:"role_kind"`
	TenantID       string     `bun:"tenant_id" json:"tenant_id,omitempty"`
	CredentialKey  string     `bun:"credential_key,notnull,unique" json:"credential_key"`
	CredentialHash string     `bun:"credential_hash,notnull" json:"-"`
	Active         bool       `bun:"active,notnull" json:"active"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsActive reports whether the principal may authenticate.
func (p *Principal) IsActive() bool {
	if p == nil {
		return false
	}
	return p.Active && p.DeletedAt == nil
}

// PrincipalRef is the projection the token issuer needs.
type PrincipalRef struct {
	ID       string
	RoleKind RoleKind
	TenantID string
}

// Ref returns the issuer projection of p.
func (p *Principal) Ref() PrincipalRef {
	return PrincipalRef{
		ID:       p.ID.String(),
		RoleKind: p.RoleKind,
		TenantID: p.TenantID,
	}
}

// AuthenticatedPrincipal is what the gate hands to downstream handlers.
type AuthenticatedPrincipal struct {
	ID        string    `json:"id"`
	RoleKind  RoleKind  `json:"role_kind"`
	TenantID  string    `json:"tenant_id,omitempty"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasRole reports whether the principal's current role kind is one of kinds.
func (a *AuthenticatedPrincipal) HasRole(kinds ...RoleKind) bool {
	if a == nil {
		return false
	}
	for _, k := range kinds {
		if a.RoleKind == k {
			return true
		}
	}
	return false
}

// SessionPair is returned after join, login, and refresh.
type SessionPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshableUntil time.Time `json:"refreshable_until"`
}

// JoinRequest carries the data needed to register a principal.
type JoinRequest struct {
	CredentialKey string   `json:"email"`
	Secret        string   `json:"password"`
	RoleKind      RoleKind `json:"role_kind"`
	TenantID      string   `json:"tenant_id,omitempty"`
}

// NormalizeCredentialKey trims and lower-cases a credential key.
func NormalizeCredentialKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
