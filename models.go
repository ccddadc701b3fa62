package authkit

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultPhotoURL is the avatar assigned to identities that never uploaded
// one, federated signups included.
const DefaultPhotoURL = "https://www.shutterstock.com/image-vector/user-profile-icon-vector-avatar-600nw-2247726673.jpg"

// Identity is the persisted account record. The password is stored only as a
// bcrypt hash, and pending one-time codes only as SHA-256 digests; at most
// one verification and one reset code are pending at a time, new generations
// overwrite the previous ones.
type Identity struct {
	bun.BaseModel `bun:"table:identities,alias:idn"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name         string    `bun:"name,notnull" json:"name,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Photo        string    `bun:"photo" json:"photo,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	// PasswordChangedAt drives token invalidation; nil means the password
	// was never changed after signup.
	PasswordChangedAt      *time.Time `bun:"password_changed_at,nullzero" json:"-"`
	Verified               bool       `bun:"is_verified" json:"is_verified"`
	VerificationCodeHash   string     `bun:"verification_code_hash,nullzero" json:"-"`
	VerificationCodeExpiry *time.Time `bun:"verification_code_expiry,nullzero" json:"-"`
	ResetCodeHash          string     `bun:"reset_code_hash,nullzero" json:"-"`
	ResetCodeExpiry        *time.Time `bun:"reset_code_expiry,nullzero" json:"-"`
	CreatedAt              *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt              *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NormalizeEmail canonicalizes an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetVerificationCode stores the code's digest and expiry, replacing any
// pending verification.
func (i *Identity) SetVerificationCode(code OneTimeCode) {
	expiry := code.ExpiresAt
	i.VerificationCodeHash = code.Hash
	i.VerificationCodeExpiry = &expiry
}

// ClearVerificationCode drops the pending verification fields.
func (i *Identity) ClearVerificationCode() {
	i.VerificationCodeHash = ""
	i.VerificationCodeExpiry = nil
}

// SetResetCode stores the code's digest and expiry, replacing any pending
// reset.
func (i *Identity) SetResetCode(code OneTimeCode) {
	expiry := code.ExpiresAt
	i.ResetCodeHash = code.Hash
	i.ResetCodeExpiry = &expiry
}

// ClearResetCode drops the pending reset fields.
func (i *Identity) ClearResetCode() {
	i.ResetCodeHash = ""
	i.ResetCodeExpiry = nil
}
