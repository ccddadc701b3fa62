// Package authkit provides the authentication core of a user-facing service:
// password hashing, hashed one-time codes for email verification and password
// reset, signed access/refresh token issuance, and the per-request guard that
// decides whether a caller is still a trusted identity.
//
// Composition is explicit. Construct a TokenIssuer, an InvalidationPolicy and
// a UserStore, wire them into a SessionGuard (fail-closed) or a
// CurrentIdentityResolver (fail-open), and drive every credential mutation
// through the Coordinator. There is no global state and no implicit
// environment access; secrets and TTLs arrive through Config, validated at
// startup.
//
// Tokens are stateless. Revocation is derived from the identity record: a
// password change stamps PasswordChangedAt, and the guard rejects any token
// issued before that instant (minus a fixed clock-skew tolerance). Logout is
// a client concern, see ClearAuthCookies.
//
// One-time codes are random 32-byte hex strings. Only their SHA-256 digest is
// persisted; the raw code travels once inside an outbound email link and is
// never stored.
package authkit
