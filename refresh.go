package auth

import (
	"context"
	"errors"
)

// Refresh exchanges a refresh token for a new session pair. The principal is
// re-resolved so deactivation and role changes apply on the next refresh.
// Every security rejection is reported as ErrInvalidRefreshToken.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (SessionPair, error) {
	claims, err := s.verifier.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return s.rejectRefresh(ctx, PrincipalRef{}, tokenRejectReason(err), err)
	}

	principal, err := s.resolve(ctx, claims.SubjectID())
	switch {
	case errors.Is(err, ErrAuthUnavailable):
		s.logger.Error("refresh store error", "error", err)
		s.metrics.refresh(OutcomeUnavailable)
		return SessionPair{}, err
	case errors.Is(err, ErrPrincipalInactive):
		return s.rejectRefresh(ctx, principal.Ref(), "inactive", err)
	case err != nil:
		return s.rejectRefresh(ctx, PrincipalRef{ID: claims.SubjectID()}, "not_found", err)
	}

	// role comes from the store, never from the presented token
	pair, err := s.issuer.Issue(ctx, principal.Ref())
	if err != nil {
		s.logger.Error("refresh issue error", "error", err)
		s.metrics.refresh(OutcomeUnavailable)
		return SessionPair{}, err
	}

	// the presented token is only spent once a replacement exists
	if s.denylist != nil {
		first, err := s.denylist.Claim(ctx, claims.TokenID(), claims.Expires())
		if err != nil {
			s.logger.Error("refresh denylist error", "error", err)
			s.metrics.refresh(OutcomeUnavailable)
			return SessionPair{}, withCause(ErrAuthUnavailable, err)
		}
		if !first {
			return s.rejectRefresh(ctx, principal.Ref(), "token_reused", nil)
		}
	}

	s.metrics.refresh(OutcomeSuccess)
	s.emit(ctx, ActivityEventRefreshSuccess, principal.Ref(), "", nil)
	return pair, nil
}

func (s *Auther) rejectRefresh(ctx context.Context, ref PrincipalRef, reason string, cause error) (SessionPair, error) {
	if cause != nil {
		s.logger.Debug("refresh rejected", "reason", reason, "error", cause)
	}
	s.metrics.refresh(OutcomeRejected)
	s.emit(ctx, ActivityEventRefreshFailure, ref, reason, nil)
	return SessionPair{}, ErrInvalidRefreshToken
}

// Logout revokes refreshToken when a denylist is configured. Without one it
// only validates the token, since stateless tokens cannot be withdrawn.
// Invalid tokens are accepted silently so logout never reveals token state.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.verifier.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		s.logger.Debug("logout with invalid refresh token", "error", err)
		return nil
	}

	if s.denylist != nil {
		if err := s.denylist.Revoke(ctx, claims.TokenID(), claims.Expires()); err != nil {
			s.logger.Error("logout revoke error", "error", err)
			return withCause(ErrAuthUnavailable, err)
		}
	}

	s.emit(ctx, ActivityEventLogout, PrincipalRef{ID: claims.SubjectID()}, "", nil)
	return nil
}
