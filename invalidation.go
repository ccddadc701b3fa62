package authkit

import "time"

// DefaultSkewTolerance absorbs clock drift between the machine that issued a
// token and the one that recorded the password change.
const DefaultSkewTolerance = 100 * time.Second

// InvalidationPolicy decides whether a token predates a credential change.
// Tokens are stateless, so this comparison against PasswordChangedAt is the
// only revocation mechanism.
type InvalidationPolicy struct {
	SkewTolerance time.Duration
}

func NewInvalidationPolicy(skew time.Duration) InvalidationPolicy {
	if skew <= 0 {
		skew = DefaultSkewTolerance
	}
	return InvalidationPolicy{SkewTolerance: skew}
}

// IsInvalidated reports true when the identity changed its password after
// the token was issued, tolerating SkewTolerance of drift. Tokens issued at
// or after PasswordChangedAt-SkewTolerance remain valid.
func (p InvalidationPolicy) IsInvalidated(issuedAt time.Time, identity *Identity) bool {
	if identity == nil || identity.PasswordChangedAt == nil {
		return false
	}

	skew := p.SkewTolerance
	if skew <= 0 {
		skew = DefaultSkewTolerance
	}

	return identity.PasswordChangedAt.Add(-skew).After(issuedAt)
}
