package auth

import (
	"context"
	"errors"
	"strings"
)

// Authorize verifies an access token, re-resolves its principal, and checks
// the principal's current role kind against required. An empty required list
// means any authenticated principal passes.
//
// Missing, invalid, expired, orphaned, and inactive cases all return
// ErrUnauthenticated. Store failures return ErrAuthUnavailable.
func (s *Auther) Authorize(ctx context.Context, bearer string, required ...RoleKind) (*AuthenticatedPrincipal, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, s.denyUnauthenticated(ctx, PrincipalRef{}, "no_token", nil)
	}

	claims, err := s.verifier.Verify(bearer, TokenKindAccess)
	if err != nil {
		return nil, s.denyUnauthenticated(ctx, PrincipalRef{}, tokenRejectReason(err), err)
	}

	principal, err := s.resolve(ctx, claims.SubjectID())
	switch {
	case errors.Is(err, ErrAuthUnavailable):
		s.logger.Error("authorize store error", "error", err)
		s.metrics.authorize(OutcomeUnavailable)
		return nil, err
	case errors.Is(err, ErrPrincipalInactive):
		return nil, s.denyUnauthenticated(ctx, principal.Ref(), "inactive", err)
	case err != nil:
		return nil, s.denyUnauthenticated(ctx, PrincipalRef{ID: claims.SubjectID()}, "not_found", err)
	}

	// a requirement of only unknown kinds matches nobody
	if len(required) > 0 && !NewRoleSet(required...).Contains(principal.RoleKind) {
		s.metrics.authorize(OutcomeForbidden)
		s.emit(ctx, ActivityEventAuthorizeDenied, principal.Ref(), "forbidden", map[string]any{
			"required": required,
		})
		return nil, ErrForbidden
	}

	s.metrics.authorize(OutcomeSuccess)
	return &AuthenticatedPrincipal{
		ID:        principal.ID.String(),
		RoleKind:  principal.RoleKind,
		TenantID:  principal.TenantID,
		TokenID:   claims.TokenID(),
		ExpiresAt: claims.Expires(),
	}, nil
}

// tokenRejectReason labels activity events. It never reaches the caller.
func tokenRejectReason(err error) string {
	if IsTokenExpiredError(err) {
		return "token_expired"
	}
	return "token_invalid"
}

func (s *Auther) denyUnauthenticated(ctx context.Context, ref PrincipalRef, reason string, cause error) error {
	if cause != nil {
		s.logger.Debug("authorize rejected", "reason", reason, "error", cause)
	}
	s.metrics.authorize(OutcomeRejected)
	s.emit(ctx, ActivityEventAuthorizeDenied, ref, reason, nil)
	return ErrUnauthenticated
}
