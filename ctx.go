package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipalContext sets the AuthenticatedPrincipal in the given context
func WithPrincipalContext(ctx context.Context, principal *AuthenticatedPrincipal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (*AuthenticatedPrincipal, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(principalCtxKey).(*AuthenticatedPrincipal)
	return raw, ok && raw != nil
}

// PrincipalFromFiber extracts the principal stored in fiber locals under key,
// falling back to the request's user context.
func PrincipalFromFiber(c *fiber.Ctx, key string) (*AuthenticatedPrincipal, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if p, ok := c.Locals(key).(*AuthenticatedPrincipal); ok && p != nil {
		return p, true
	}
	return PrincipalFromContext(c.UserContext())
}

// HasRole is a convenience check against the principal in ctx.
func HasRole(ctx context.Context, kinds ...RoleKind) bool {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return p.HasRole(kinds...)
}
