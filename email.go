package authkit

import (
	"context"
	"strings"
)

// EmailSender delivers lifecycle emails. Implementations may fail; callers
// surface the failure without reverting writes that already happened.
type EmailSender interface {
	SendVerification(ctx context.Context, identity *Identity, link string) error
	SendPasswordReset(ctx context.Context, identity *Identity, link string) error
}

// LinkBuilder assembles the outbound links that carry a raw one-time code as
// their last path segment.
type LinkBuilder struct {
	baseURL string
}

func NewLinkBuilder(baseURL string) LinkBuilder {
	return LinkBuilder{baseURL: strings.TrimRight(baseURL, "/")}
}

func (b LinkBuilder) VerificationLink(rawCode string) string {
	return b.baseURL + "/verify-email/" + rawCode
}

func (b LinkBuilder) PasswordResetLink(rawCode string) string {
	return b.baseURL + "/reset-password/" + rawCode
}

// LogSender is a development EmailSender that prints the outbound link
// instead of delivering anything.
type LogSender struct {
	logger Logger
}

func NewLogSender(logger Logger) *LogSender {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerification(_ context.Context, identity *Identity, link string) error {
	s.logger.Info("verification email to=%s link=%s", identity.Email, link)
	return nil
}

func (s *LogSender) SendPasswordReset(_ context.Context, identity *Identity, link string) error {
	s.logger.Info("password reset email to=%s link=%s", identity.Email, link)
	return nil
}
