package authkit

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Coordinator orchestrates the credential lifecycle: signup, email
// verification, signin, password reset and change, token refresh and
// federated login. It owns no persistence and no transport; the UserStore
// and EmailSender collaborators do.
type Coordinator struct {
	store    UserStore
	sender   EmailSender
	tokens   *TokenIssuer
	codes    *CodeGenerator
	policy   InvalidationPolicy
	links    LinkBuilder
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

func NewCoordinator(store UserStore, sender EmailSender, tokens *TokenIssuer, cfg Config) *Coordinator {
	return &Coordinator{
		store:    store,
		sender:   sender,
		tokens:   tokens,
		codes:    NewCodeGenerator(cfg.CodeTTL),
		policy:   NewInvalidationPolicy(cfg.SkewTolerance),
		links:    NewLinkBuilder(cfg.FrontendURL),
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
}

func (c *Coordinator) WithLogger(logger Logger) *Coordinator {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithActivitySink configures an ActivitySink for emitting lifecycle events.
func (c *Coordinator) WithActivitySink(sink ActivitySink) *Coordinator {
	c.activity = normalizeActivitySink(sink)
	return c
}

// WithClock overrides the time source for the coordinator and its code
// generator, mostly for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	if now != nil {
		c.now = now
		c.codes.WithClock(now)
	}
	return c
}

// Signup creates an unverified identity and emails its verification link.
// When the email cannot be delivered the identity is NOT rolled back: the
// write stands, ErrEmailDeliveryFailure is surfaced, and the user can
// request a fresh code later.
func (c *Coordinator) Signup(ctx context.Context, in SignupInput) (*Identity, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during signup")
	default:
	}

	if err := in.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signup payload")
	}

	email := NormalizeEmail(in.Email)

	existing, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing identity")
	}
	if existing != nil {
		return nil, ErrDuplicateIdentity
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	code, err := c.codes.Generate()
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		Name:         in.Name,
		Email:        email,
		Photo:        DefaultPhotoURL,
		PasswordHash: hash,
		Verified:     false,
	}
	identity.SetVerificationCode(code)

	saved, err := c.store.Save(ctx, identity)
	if err != nil {
		return nil, err
	}

	c.emit(ctx, ActivityEventSignup, saved, nil)

	if err := c.sender.SendVerification(ctx, saved, c.links.VerificationLink(code.Raw)); err != nil {
		c.logger.Error("signup verification email failed: %v", err)
		return saved, goerrors.Wrap(err, ErrEmailDeliveryFailure.Category, ErrEmailDeliveryFailure.Message).
			WithTextCode(ErrEmailDeliveryFailure.TextCode)
	}

	return saved, nil
}

// VerifyEmail consumes a raw verification code, marking the identity
// verified and clearing the pending code fields.
func (c *Coordinator) VerifyEmail(ctx context.Context, rawCode string) (*Identity, error) {
	identity, err := c.store.FindByVerificationCodeHash(ctx, HashCode(rawCode))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification code")
	}
	if identity == nil {
		return nil, ErrCodeExpiredOrInvalid
	}

	if err := VerifyCode(rawCode, identity.VerificationCodeHash, identity.VerificationCodeExpiry, c.now()); err != nil {
		return nil, err
	}

	identity.Verified = true
	identity.ClearVerificationCode()

	saved, err := c.store.Save(ctx, identity)
	if err != nil {
		return nil, err
	}

	c.emit(ctx, ActivityEventEmailVerified, saved, nil)

	return saved, nil
}

// RequestVerification re-issues a verification code for an identity whose
// original link expired. A pending code, if any, is overwritten.
func (c *Coordinator) RequestVerification(ctx context.Context, email string) error {
	identity, err := c.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
	}
	if identity == nil {
		return ErrIdentityNotFound
	}
	if identity.Verified {
		return nil
	}

	code, err := c.codes.Generate()
	if err != nil {
		return err
	}

	identity.SetVerificationCode(code)
	if _, err := c.store.Save(ctx, identity); err != nil {
		return err
	}

	if err := c.sender.SendVerification(ctx, identity, c.links.VerificationLink(code.Raw)); err != nil {
		c.logger.Error("verification email failed: %v", err)
		return goerrors.Wrap(err, ErrEmailDeliveryFailure.Category, ErrEmailDeliveryFailure.Message).
			WithTextCode(ErrEmailDeliveryFailure.TextCode)
	}

	return nil
}

// Signin verifies credentials and issues an access+refresh token pair.
// Unknown email and wrong password produce the same error; a valid but
// unverified account is reported distinctly.
func (c *Coordinator) Signin(ctx context.Context, in SigninInput) (*Identity, TokenPair, error) {
	if err := in.Validate(); err != nil {
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signin payload")
	}

	email := NormalizeEmail(in.Email)

	identity, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
	}
	if identity == nil {
		c.emitFailure(ctx, email, ErrInvalidCredentials)
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(in.Password, identity.PasswordHash); err != nil {
		if goerrors.Is(err, ErrInvalidCredentials) {
			c.emitFailure(ctx, email, err)
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		// Malformed stored hash: fatal for this record, log and deny.
		c.logger.Error("stored hash malformed for identity %s: %v", identity.ID, err)
		return nil, TokenPair{}, err
	}

	if !identity.Verified {
		c.emitFailure(ctx, email, ErrEmailNotVerified)
		return nil, TokenPair{}, ErrEmailNotVerified
	}

	pair, err := c.issuePair(identity.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	c.emit(ctx, ActivityEventLoginSuccess, identity, nil)

	return identity, pair, nil
}

// ForgotPassword stores a hashed reset code on the identity and emails the
// raw code. The write is persisted before the send and survives a send
// failure.
func (c *Coordinator) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	if err := in.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid forgot-password payload")
	}

	identity, err := c.store.FindByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
	}
	if identity == nil {
		return ErrIdentityNotFound
	}

	code, err := c.codes.Generate()
	if err != nil {
		return err
	}

	identity.SetResetCode(code)
	if _, err := c.store.Save(ctx, identity); err != nil {
		return err
	}

	c.emit(ctx, ActivityEventPasswordResetRequest, identity, nil)

	if err := c.sender.SendPasswordReset(ctx, identity, c.links.PasswordResetLink(code.Raw)); err != nil {
		c.logger.Error("password reset email failed: %v", err)
		return goerrors.Wrap(err, ErrEmailDeliveryFailure.Category, ErrEmailDeliveryFailure.Message).
			WithTextCode(ErrEmailDeliveryFailure.TextCode)
	}

	return nil
}

// ResetPassword consumes a raw reset code and installs a new password.
// PasswordChangedAt is stamped, which invalidates every token issued before
// this instant.
func (c *Coordinator) ResetPassword(ctx context.Context, rawCode, newPassword string) (*Identity, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset")
	default:
	}

	if err := (ResetPasswordInput{Password: newPassword}).Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	identity, err := c.store.FindByResetCodeHash(ctx, HashCode(rawCode))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset code")
	}
	if identity == nil {
		return nil, ErrCodeExpiredOrInvalid
	}

	if err := VerifyCode(rawCode, identity.ResetCodeHash, identity.ResetCodeExpiry, c.now()); err != nil {
		return nil, err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	changedAt := c.now()
	identity.PasswordHash = hash
	identity.PasswordChangedAt = &changedAt
	identity.ClearResetCode()

	saved, err := c.store.Save(ctx, identity)
	if err != nil {
		return nil, err
	}

	c.emit(ctx, ActivityEventPasswordResetSuccess, saved, nil)

	return saved, nil
}

// ChangePassword verifies the caller's current password, installs the new
// one and hands back a fresh access token so the caller's own session
// survives the invalidation that hits every other token.
func (c *Coordinator) ChangePassword(ctx context.Context, identity *Identity, in ChangePasswordInput) (string, time.Time, error) {
	if err := in.Validate(); err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid change-password payload")
	}

	if err := ComparePasswordAndHash(in.OldPassword, identity.PasswordHash); err != nil {
		if goerrors.Is(err, ErrInvalidCredentials) {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, err
	}

	hash, err := HashPassword(in.NewPassword)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	changedAt := c.now()
	identity.PasswordHash = hash
	identity.PasswordChangedAt = &changedAt

	saved, err := c.store.Save(ctx, identity)
	if err != nil {
		return "", time.Time{}, err
	}

	token, expiresAt, err := c.tokens.Issue(saved.ID, TokenKindAccess)
	if err != nil {
		return "", time.Time{}, err
	}

	c.emit(ctx, ActivityEventPasswordChanged, saved, nil)

	return token, expiresAt, nil
}

// Refresh mints a new access token from a refresh token. The refresh
// token's own issue time is checked against PasswordChangedAt too, so a
// stolen refresh token stops working once the password changes.
func (c *Coordinator) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := c.tokens.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return "", time.Time{}, err
	}

	subject, err := claims.SubjectID()
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	identity, err := c.store.FindByID(ctx, subject)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
	}
	if identity == nil {
		return "", time.Time{}, ErrIdentityNotFound
	}

	if c.policy.IsInvalidated(claims.IssuedAtTime(), identity) {
		return "", time.Time{}, ErrTokenExpired.Clone().
			WithMetadata(map[string]any{"reason": "password_changed"})
	}

	token, expiresAt, err := c.tokens.Issue(identity.ID, TokenKindAccess)
	if err != nil {
		return "", time.Time{}, err
	}

	c.emit(ctx, ActivityEventTokenRefreshed, identity, nil)

	return token, expiresAt, nil
}

// FederatedLogin accepts an identity vouched for by an external OAuth
// provider. Unknown emails get a verified identity with an unguessable
// placeholder credential; known emails sign straight in.
func (c *Coordinator) FederatedLogin(ctx context.Context, ext ExternalIdentity) (*Identity, TokenPair, error) {
	if err := ext.Validate(); err != nil {
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid external identity payload")
	}

	email := NormalizeEmail(ext.Email)

	identity, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
	}

	if identity == nil {
		photo := ext.Photo
		if photo == "" {
			photo = DefaultPhotoURL
		}

		identity = &Identity{
			Name:         ext.Name,
			Email:        email,
			Photo:        photo,
			PasswordHash: RandomPasswordHash(),
			// The provider vouched for the email, no code round-trip needed.
			Verified: true,
		}

		identity, err = c.store.Save(ctx, identity)
		if err != nil {
			return nil, TokenPair{}, err
		}
	}

	pair, err := c.issuePair(identity.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	c.emit(ctx, ActivityEventFederatedLogin, identity, map[string]any{"provider_email": ext.Email})

	return identity, pair, nil
}

func (c *Coordinator) issuePair(id uuid.UUID) (TokenPair, error) {
	access, accessExp, err := c.tokens.Issue(id, TokenKindAccess)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, refreshExp, err := c.tokens.Issue(id, TokenKindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (c *Coordinator) emit(ctx context.Context, eventType ActivityEventType, identity *Identity, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: identity.ID.String(), Type: "user"},
		UserID:     identity.ID.String(),
		Metadata:   metadata,
		OccurredAt: c.now(),
	}

	if err := normalizeActivitySink(c.activity).Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}

func (c *Coordinator) emitFailure(ctx context.Context, email string, cause error) {
	event := ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		Metadata: map[string]any{
			"identifier": email,
			"error":      cause.Error(),
		},
		OccurredAt: c.now(),
	}

	if err := normalizeActivitySink(c.activity).Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
