package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type immutableClaimsSnapshot struct {
	subject  string
	issuer   string
	tokenID  string
	kind     TokenKind
	role     RoleKind
	tenantID string
	audience []string
	dates    map[string]*time.Time
}

func captureImmutableClaims(claims *SessionClaims) immutableClaimsSnapshot {
	var audienceCopy []string
	if len(claims.RegisteredClaims.Audience) > 0 {
		audienceCopy = append(audienceCopy, claims.RegisteredClaims.Audience...)
	}

	return immutableClaimsSnapshot{
		subject:  claims.RegisteredClaims.Subject,
		issuer:   claims.RegisteredClaims.Issuer,
		tokenID:  claims.RegisteredClaims.ID,
		kind:     claims.Kind,
		role:     claims.Role,
		tenantID: claims.TenantID,
		audience: audienceCopy,
		dates: map[string]*time.Time{
			"iat": numericDateValue(claims.RegisteredClaims.IssuedAt),
			"nbf": numericDateValue(claims.RegisteredClaims.NotBefore),
			"exp": numericDateValue(claims.RegisteredClaims.ExpiresAt),
		},
	}
}

func (snap immutableClaimsSnapshot) validate(claims *SessionClaims) error {
	switch {
	case claims.RegisteredClaims.Subject != snap.subject:
		return immutableClaimViolation("sub")
	case claims.RegisteredClaims.Issuer != snap.issuer:
		return immutableClaimViolation("iss")
	case claims.RegisteredClaims.ID != snap.tokenID:
		return immutableClaimViolation("jti")
	case claims.Kind != snap.kind:
		return immutableClaimViolation("kind")
	case claims.Role != snap.role:
		return immutableClaimViolation("role")
	case claims.TenantID != snap.tenantID:
		return immutableClaimViolation("tid")
	case !audienceEqual(claims.RegisteredClaims.Audience, snap.audience):
		return immutableClaimViolation("aud")
	}

	current := map[string]*jwt.NumericDate{
		"iat": claims.RegisteredClaims.IssuedAt,
		"nbf": claims.RegisteredClaims.NotBefore,
		"exp": claims.RegisteredClaims.ExpiresAt,
	}
	for field, expected := range snap.dates {
		if !numericDateEqual(current[field], expected) {
			return immutableClaimViolation(field)
		}
	}

	return nil
}

func numericDateValue(date *jwt.NumericDate) *time.Time {
	if date == nil {
		return nil
	}
	t := date.Time
	return &t
}

func numericDateEqual(date *jwt.NumericDate, expected *time.Time) bool {
	if expected == nil {
		return date == nil
	}
	return date != nil && date.Time.Equal(*expected)
}

func audienceEqual(a jwt.ClaimStrings, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func immutableClaimViolation(field string) error {
	clone := ErrImmutableClaimMutation.Clone()
	if clone == nil {
		return ErrImmutableClaimMutation
	}
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	clone.Source = ErrImmutableClaimMutation
	return clone.WithMetadata(map[string]any{"claim": field})
}
