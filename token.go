package authkit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenKind selects the signing secret and TTL a token is issued and
// verified with. Each kind uses a distinct secret so a refresh token can
// never be replayed as an access token.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the claim set carried by both token kinds.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// SubjectID parses the sub claim back into an identity id.
func (c *TokenClaims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// IssuedAtTime returns the iat claim, zero when absent.
func (c *TokenClaims) IssuedAtTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ExpiresAtTime returns the exp claim, zero when absent.
func (c *TokenClaims) ExpiresAtTime() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// TokenPair is what a successful signin or federated login hands back.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenIssuer signs and verifies stateless HS256 tokens. It keeps no
// revocation state; see InvalidationPolicy for the only revocation path.
type TokenIssuer struct {
	secrets  map[TokenKind][]byte
	ttls     map[TokenKind]time.Duration
	issuer   string
	audience jwt.ClaimStrings
	logger   Logger
	now      func() time.Time
}

// NewTokenIssuer builds an issuer from validated configuration. Config
// validation guarantees distinct, non-empty secrets per kind.
func NewTokenIssuer(cfg Config) *TokenIssuer {
	var aud jwt.ClaimStrings
	if len(cfg.Audience) > 0 {
		aud = make(jwt.ClaimStrings, len(cfg.Audience))
		copy(aud, cfg.Audience)
	}

	return &TokenIssuer{
		secrets: map[TokenKind][]byte{
			TokenKindAccess:  []byte(cfg.AccessSecret),
			TokenKindRefresh: []byte(cfg.RefreshSecret),
		},
		ttls: map[TokenKind]time.Duration{
			TokenKindAccess:  cfg.AccessTTL,
			TokenKindRefresh: cfg.RefreshTTL,
		},
		issuer:   cfg.Issuer,
		audience: aud,
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (ts *TokenIssuer) WithLogger(logger Logger) *TokenIssuer {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock overrides the time source, mostly for tests.
func (ts *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		ts.now = now
	}
	return ts
}

// TTL reports the configured lifetime for a kind.
func (ts *TokenIssuer) TTL(kind TokenKind) time.Duration {
	return ts.ttls[kind]
}

// Issue signs a token of the given kind carrying {sub, iat, exp, jti} plus
// the configured issuer and audience.
func (ts *TokenIssuer) Issue(subjectID uuid.UUID, kind TokenKind) (string, time.Time, error) {
	secret, ok := ts.secrets[kind]
	if !ok || len(secret) == 0 {
		return "", time.Time{}, goerrors.New("no signing secret for token kind", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"kind": string(kind)})
	}

	now := ts.now()
	expiresAt := now.Add(ts.ttls[kind])

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    ts.issuer,
			Subject:   subjectID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, expiresAt, nil
}

// Verify parses and validates a token against the given kind's secret.
// Expiry maps to ErrTokenExpired; every other failure, bad signature and
// cross-kind replay included, maps to ErrTokenMalformed.
func (ts *TokenIssuer) Verify(raw string, kind TokenKind) (*TokenClaims, error) {
	secret, ok := ts.secrets[kind]
	if !ok || len(secret) == 0 {
		return nil, goerrors.New("no signing secret for token kind", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"kind": string(kind)})
	}

	parserOptions := []jwt.ParserOption{jwt.WithTimeFunc(ts.now)}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
