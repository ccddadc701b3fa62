package authkit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maragall/authkit"
)

func TestLinkBuilder(t *testing.T) {
	b := authkit.NewLinkBuilder("https://app.example.com/")

	assert.Equal(t,
		"https://app.example.com/verify-email/abc123",
		b.VerificationLink("abc123"),
	)
	assert.Equal(t,
		"https://app.example.com/reset-password/abc123",
		b.PasswordResetLink("abc123"),
	)
}

func TestLogSender(t *testing.T) {
	sender := authkit.NewLogSender(nil)
	identity := &authkit.Identity{Name: "Ada", Email: "ada@example.com"}

	assert.NoError(t, sender.SendVerification(context.Background(), identity, "https://x/verify-email/a"))
	assert.NoError(t, sender.SendPasswordReset(context.Background(), identity, "https://x/reset-password/a"))
}
