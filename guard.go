package authkit

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// SessionGuard is the fail-closed per-request authorization decision:
// verify token → find identity → check invalidation. Every failure is a
// terminal deny for that request; the guard holds no mutable state and never
// retries.
type SessionGuard struct {
	tokens *TokenIssuer
	store  UserStore
	policy InvalidationPolicy
	logger Logger
}

func NewSessionGuard(tokens *TokenIssuer, store UserStore, policy InvalidationPolicy) *SessionGuard {
	return &SessionGuard{
		tokens: tokens,
		store:  store,
		policy: policy,
		logger: defLogger{},
	}
}

func (g *SessionGuard) WithLogger(logger Logger) *SessionGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Authorize runs the decision chain over a raw access token and returns the
// authorized identity or a CategoryAuth denial.
func (g *SessionGuard) Authorize(ctx context.Context, raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrUnableToFindSession
	}

	claims, err := g.tokens.Verify(raw, TokenKindAccess)
	if err != nil {
		return nil, err
	}

	subject, err := claims.SubjectID()
	if err != nil {
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	identity, err := g.store.FindByID(ctx, subject)
	if err != nil {
		g.logger.Error("guard identity lookup failed: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
	}

	if identity == nil {
		return nil, ErrIdentityNotFound
	}

	if g.policy.IsInvalidated(claims.IssuedAtTime(), identity) {
		return nil, ErrTokenExpired.Clone().
			WithMetadata(map[string]any{"reason": "password_changed"})
	}

	return identity, nil
}

// CurrentIdentityResolver is the best-effort variant of the guard for routes
// that personalize output without requiring authentication. It never denies:
// any failure yields an anonymous request instead of an error.
type CurrentIdentityResolver struct {
	guard  *SessionGuard
	logger Logger
}

func NewCurrentIdentityResolver(guard *SessionGuard) *CurrentIdentityResolver {
	return &CurrentIdentityResolver{
		guard:  guard,
		logger: defLogger{},
	}
}

func (r *CurrentIdentityResolver) WithLogger(logger Logger) *CurrentIdentityResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resolve returns the identity for a valid token, nil otherwise.
func (r *CurrentIdentityResolver) Resolve(ctx context.Context, raw string) *Identity {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	identity, err := r.guard.Authorize(ctx, raw)
	if err != nil {
		r.logger.Debug("anonymous request, token rejected: %v", err)
		return nil
	}

	return identity
}

const bearerScheme = "Bearer"

// TokenFromRequest extracts the access token from the Authorization header,
// falling back to the accessToken cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerScheme) {
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerScheme))
		if token == "" || token == "null" {
			return "", ErrUnableToFindSession
		}
		return token, nil
	}

	if cookie, err := r.Cookie(CookieAccessToken); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	return "", ErrUnableToFindSession
}

// RefreshTokenFromRequest extracts the refresh token cookie.
func RefreshTokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CookieRefreshToken); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", ErrUnableToFindSession
}
