package auth

// TokenVerifier validates tokens of an expected kind and extracts claims
// without tying callers to a specific signing implementation.
type TokenVerifier interface {
	Verify(tokenString string, expected TokenKind) (*SessionClaims, error)
}

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(tokenString string, expected TokenKind) (*SessionClaims, error)

// Verify satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Verify(tokenString string, expected TokenKind) (*SessionClaims, error) {
	if f == nil {
		return nil, ErrTokenInvalid
	}
	return f(tokenString, expected)
}
