package auth

import "context"

// ClaimsDecorator can add extension metadata to access token claims before
// they are signed. Registered and identity claims must be left untouched.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, principal PrincipalRef, claims *SessionClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, principal PrincipalRef, claims *SessionClaims) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, principal PrincipalRef, claims *SessionClaims) error {
	if f == nil {
		return nil
	}
	return f(ctx, principal, claims)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(context.Context, PrincipalRef, *SessionClaims) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}
