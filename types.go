package authkit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// UserStore is the external collaborator that owns identity persistence.
// Find* methods report absence as (nil, nil); an error means the lookup
// itself failed.
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	// FindByVerificationCodeHash resolves the identity holding a pending
	// verification code. Codes are stored hashed, so redemption links are
	// resolved by digest, never by raw code.
	FindByVerificationCodeHash(ctx context.Context, hash string) (*Identity, error)
	FindByResetCodeHash(ctx context.Context, hash string) (*Identity, error)
	Save(ctx context.Context, identity *Identity) (*Identity, error)
	Remove(ctx context.Context, identity *Identity) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
