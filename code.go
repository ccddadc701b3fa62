package authkit

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultCodeTTL bounds how long a verification or reset link stays usable.
const DefaultCodeTTL = 10 * time.Minute

const codeEntropyBytes = 32

// OneTimeCode is a freshly generated verification or reset code. Raw is the
// only copy that ever leaves the system (inside an outbound link); Hash is
// what gets persisted.
type OneTimeCode struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// CodeGenerator mints one-time codes with a fixed TTL.
type CodeGenerator struct {
	ttl time.Duration
	now func() time.Time
}

func NewCodeGenerator(ttl time.Duration) *CodeGenerator {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &CodeGenerator{
		ttl: ttl,
		now: time.Now,
	}
}

// WithClock overrides the time source, mostly for tests.
func (g *CodeGenerator) WithClock(now func() time.Time) *CodeGenerator {
	if now != nil {
		g.now = now
	}
	return g
}

func (g *CodeGenerator) TTL() time.Duration {
	return g.ttl
}

func (g *CodeGenerator) Generate() (OneTimeCode, error) {
	buf := make([]byte, codeEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return OneTimeCode{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate one-time code")
	}

	raw := hex.EncodeToString(buf)

	return OneTimeCode{
		Raw:       raw,
		Hash:      HashCode(raw),
		ExpiresAt: g.now().Add(g.ttl),
	}, nil
}

// HashCode returns the hex SHA-256 digest of a raw code, the only form that
// is ever persisted.
func HashCode(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyCode checks a raw code against the stored digest and expiry. Expired
// and mismatched codes fail identically; verifying at exactly the expiry
// instant fails.
func VerifyCode(raw, storedHash string, storedExpiry *time.Time, now time.Time) error {
	if raw == "" || storedHash == "" || storedExpiry == nil {
		return ErrCodeExpiredOrInvalid
	}

	if !storedExpiry.After(now) {
		return ErrCodeExpiredOrInvalid
	}

	if subtle.ConstantTimeCompare([]byte(HashCode(raw)), []byte(storedHash)) != 1 {
		return ErrCodeExpiredOrInvalid
	}

	return nil
}
