package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeAccountInactive       = "ACCOUNT_INACTIVE"
	TextCodeTooManyLoginAttempts  = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeCredentialKeyTaken    = "CREDENTIAL_KEY_TAKEN"
	TextCodeTokenInvalid          = "TOKEN_INVALID"
	TextCodeInvalidRefreshToken   = "INVALID_REFRESH_TOKEN"
	TextCodeUnauthenticated       = "UNAUTHENTICATED"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodePrincipalNotFound     = "PRINCIPAL_NOT_FOUND"
	TextCodePrincipalInactive     = "PRINCIPAL_INACTIVE"
	TextCodeAuthUnavailable       = "AUTH_UNAVAILABLE"
	TextCodeImmutableClaimMutated = "IMMUTABLE_CLAIM_MUTATED"
	TextCodeEmptySecret           = "EMPTY_SECRET"
	TextCodeSecretTooLong         = "SECRET_TOO_LONG"
	TextCodeInvalidRoleKind       = "INVALID_ROLE_KIND"
	TextCodePrincipalIDTaken      = "PRINCIPAL_ID_TAKEN"
	TextCodeMissingIssuer         = "MISSING_ISSUER"
)

// ErrInvalidCredentials is returned by Login for unknown keys and wrong secrets alike.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive is returned by Login when the secret matches a deactivated principal.
var ErrAccountInactive = goerrors.New("account is inactive", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeForbidden)

// ErrTooManyLoginAttempts is returned when the login limiter rejects a credential key.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyLoginAttempts).
	WithCode(429)

// ErrCredentialKeyTaken is returned by Join when the credential key is already registered.
var ErrCredentialKeyTaken = goerrors.New("credential key already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeCredentialKeyTaken).
	WithCode(goerrors.CodeConflict)

// ErrTokenInvalid covers bad signatures, foreign issuers, expiry, and kind mismatches.
var ErrTokenInvalid = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is the expiry flavour of ErrTokenInvalid. It carries the same
// public message and text code and matches ErrTokenInvalid through errors.Is.
var ErrTokenExpired = chained(ErrTokenInvalid)

// ErrInvalidRefreshToken is the only rejection Refresh reports to callers.
var ErrInvalidRefreshToken = goerrors.New("invalid or expired refresh token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned by Authorize for missing, bad, or orphaned tokens.
var ErrUnauthenticated = goerrors.New("unauthenticated", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned by Authorize when the principal lacks a required role kind.
var ErrForbidden = goerrors.New("forbidden", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrPrincipalNotFound is returned by stores. It never leaves this package as-is.
var ErrPrincipalNotFound = goerrors.New("principal not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePrincipalNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrPrincipalInactive marks a resolved but deactivated principal. Internal only.
var ErrPrincipalInactive = goerrors.New("principal inactive", goerrors.CategoryAuth).
	WithTextCode(TextCodePrincipalInactive).
	WithCode(goerrors.CodeUnauthorized)

// ErrAuthUnavailable is returned when the principal store fails or times out.
var ErrAuthUnavailable = goerrors.New("authentication temporarily unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeAuthUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrImmutableClaimMutation is returned when a ClaimsDecorator touches protected claims.
var ErrImmutableClaimMutation = goerrors.New("immutable claim mutated", goerrors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaimMutated).
	WithCode(goerrors.CodeInternal)

// ErrEmptySecret is returned when hashing an empty secret.
var ErrEmptySecret = goerrors.New("secret must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptySecret).
	WithCode(goerrors.CodeBadRequest)

// ErrSecretTooLong is returned when a secret exceeds bcrypt's 72 byte limit.
var ErrSecretTooLong = goerrors.New("secret is too long", goerrors.CategoryBadInput).
	WithTextCode(TextCodeSecretTooLong).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidRoleKind is returned when registering a principal with an unknown role kind.
var ErrInvalidRoleKind = goerrors.New("unknown role kind", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidRoleKind).
	WithCode(goerrors.CodeBadRequest)

// withCause returns a copy of base that still matches base through errors.Is
// and records cause in its metadata for logging.
func withCause(base *goerrors.Error, cause error) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	if cause == nil {
		return clone
	}
	return clone.WithMetadata(map[string]any{"cause": cause.Error()})
}

func chained(base *goerrors.Error) *goerrors.Error {
	clone := base.Clone()
	clone.Source = base
	return clone
}

// IsNotFound reports whether err means the store has no such principal.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPrincipalNotFound) || goerrors.IsNotFound(err)
}

// IsTokenExpiredError reports whether err came from verifying an expired token.
func IsTokenExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired) || errors.Is(err, jwt.ErrTokenExpired)
}

// IsContextError reports whether err was caused by cancellation or a deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
