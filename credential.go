package auth

import (
	"errors"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier hashes secrets and checks presented secrets against a
// stored hash. A mismatch is a normal false result, never an error.
type CredentialVerifier interface {
	Hash(secret string) (string, error)
	Verify(presented, storedHash string) bool
}

// BcryptVerifier implements CredentialVerifier with bcrypt.
type BcryptVerifier struct {
	cost      int
	dummyOnce sync.Once
	dummy     []byte
}

var _ CredentialVerifier = (*BcryptVerifier)(nil)

// NewBcryptVerifier returns a verifier using cost, or the build default when
// cost is outside bcrypt's accepted range.
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &BcryptVerifier{cost: cost}
}

// Hash will generate a bcrypt hash for secret
func (v *BcryptVerifier) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), v.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", withCause(ErrSecretTooLong, err)
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash secret")
	}
	return string(h), nil
}

// Verify reports whether presented matches storedHash. Malformed hashes are
// compared against a dummy hash first so they take as long as a mismatch.
func (v *BcryptVerifier) Verify(presented, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(presented))
	if err == nil {
		return true
	}

	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		v.burn(presented)
	}
	return false
}

// burn runs one full bcrypt comparison whose result is discarded.
func (v *BcryptVerifier) burn(presented string) {
	v.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("go-auth-session:dummy-secret"), v.cost)
		if err == nil {
			v.dummy = h
		}
	})
	if v.dummy != nil {
		_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(presented))
	}
}
