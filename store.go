package auth

import "context"

// PrincipalStore resolves principals. Implementations return
// ErrPrincipalNotFound when nothing matches; any other error is treated as a
// store failure and fails closed.
type PrincipalStore interface {
	FindByID(ctx context.Context, id string) (*Principal, error)
	FindByCredentialKey(ctx context.Context, key string) (*Principal, error)
}

// PrincipalRegistrar is an optional PrincipalStore extension used by Join.
type PrincipalRegistrar interface {
	Register(ctx context.Context, principal *Principal) (*Principal, error)
}
