package authkit

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/mrz1836/postmark"
)

// PostmarkSender delivers lifecycle emails through Postmark's transactional
// API.
type PostmarkSender struct {
	client  *postmark.Client
	from    string
	replyTo string
}

// NewPostmarkSender validates tokens and sender identity up front; a half
// configured mailer should fail at startup, not on the first signup.
func NewPostmarkSender(serverToken, accountToken, from, replyTo string) (*PostmarkSender, error) {
	if serverToken == "" || accountToken == "" {
		return nil, goerrors.New("postmark tokens are required", goerrors.CategoryValidation)
	}
	if from == "" {
		return nil, goerrors.New("postmark sender email is required", goerrors.CategoryValidation)
	}
	if replyTo == "" {
		replyTo = from
	}

	return &PostmarkSender{
		client:  postmark.NewClient(serverToken, accountToken),
		from:    from,
		replyTo: replyTo,
	}, nil
}

func (s *PostmarkSender) SendVerification(ctx context.Context, identity *Identity, link string) error {
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>Confirm your email address by following <a href="%s">this link</a>. The link expires in 10 minutes.</p>`,
		identity.Name, link,
	)
	return s.send(ctx, identity.Email, "Verify your email address", body, "email-verification")
}

func (s *PostmarkSender) SendPasswordReset(ctx context.Context, identity *Identity, link string) error {
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>Reset your password by following <a href="%s">this link</a>. The link expires in 10 minutes. If you did not request this, you can ignore this email.</p>`,
		identity.Name, link,
	)
	return s.send(ctx, identity.Email, "Reset your password", body, "password-reset")
}

func (s *PostmarkSender) send(ctx context.Context, to, subject, htmlBody, tag string) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		ReplyTo:  s.replyTo,
		To:       to,
		Subject:  subject,
		Tag:      tag,
		HTMLBody: htmlBody,
	})
	if err != nil {
		return goerrors.Wrap(err, ErrEmailDeliveryFailure.Category, ErrEmailDeliveryFailure.Message).
			WithTextCode(ErrEmailDeliveryFailure.TextCode)
	}
	if resp.ErrorCode > 0 {
		return ErrEmailDeliveryFailure.Clone().
			WithMetadata(map[string]any{
				"postmark_code":    resp.ErrorCode,
				"postmark_message": resp.Message,
			})
	}
	return nil
}
