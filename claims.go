package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	// TokenKindAccess authorizes individual requests
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is only accepted by Refresh
	TokenKindRefresh TokenKind = "refresh"
)

// IsValid reports whether k is a known token kind
func (k TokenKind) IsValid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// SessionClaims is the single claims shape used for both token kinds.
type SessionClaims struct {
	jwt.RegisteredClaims
	Kind     TokenKind      `json:"kind"`
	Role     RoleKind       `json:"role,omitempty"`
	TenantID string         `json:"tid,omitempty"`
	Metadata map[string]any `json:"meta,omitempty"` // extension payload, access tokens only
}

var _ jwt.ClaimsValidator = (*SessionClaims)(nil)

// SubjectID returns the principal id
func (c *SessionClaims) SubjectID() string {
	return c.RegisteredClaims.Subject
}

// TokenID returns the jti claim
func (c *SessionClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *SessionClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Validate runs after the registered claims checks inside the jwt parser.
func (c *SessionClaims) Validate() error {
	if c.RegisteredClaims.Subject == "" {
		return errors.New("missing subject claim")
	}
	if c.RegisteredClaims.ID == "" {
		return errors.New("missing token id claim")
	}
	if !c.Kind.IsValid() {
		return errors.New("unknown token kind")
	}
	if c.Kind == TokenKindAccess && !c.Role.IsValid() {
		return errors.New("access token carries an unknown role kind")
	}
	return nil
}
