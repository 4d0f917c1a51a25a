// Package auth issues, verifies, and rotates role-scoped session tokens for
// any number of principal kinds (admin, member, employee, staff, guest...).
//
// Session lifecycle:
//   - Login and Join verify a credential against a PrincipalStore and mint a
//     SessionPair: a short lived access token carrying the role kind and a long
//     lived refresh token carrying only the subject.
//   - Refresh re-resolves the principal, rejects it if it was deactivated, and
//     mints a brand new pair using the role kind currently stored.
//   - Authorize is the gate every protected operation runs through. It verifies
//     the access token, performs a liveness lookup, and checks the required role
//     kinds against the freshly resolved principal.
//
// Tokens are stateless HS256 JWTs. Revocation relies on the liveness lookup and
// on short TTLs, unless a RefreshDenylist is configured, in which case rotated
// refresh tokens are rejected on reuse.
//
// Error reporting:
//   - Security rejections collapse into a few generic sentinels
//     (ErrInvalidCredentials, ErrInvalidRefreshToken, ErrUnauthenticated,
//     ErrForbidden) so callers cannot tell why a token was refused.
//   - Store failures surface as ErrAuthUnavailable and never authorize.
package auth
