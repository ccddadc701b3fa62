package authkit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maragall/authkit"
)

type guardFixture struct {
	clock  *fixedClock
	issuer *authkit.TokenIssuer
	store  *memoryStore
	guard  *authkit.SessionGuard
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()

	clock := newFixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := testConfig()
	issuer := authkit.NewTokenIssuer(cfg).WithClock(clock.Now)
	store := newMemoryStore()
	guard := authkit.NewSessionGuard(issuer, store, authkit.NewInvalidationPolicy(cfg.SkewTolerance))

	return &guardFixture{clock: clock, issuer: issuer, store: store, guard: guard}
}

func (f *guardFixture) seedIdentity(t *testing.T) *authkit.Identity {
	t.Helper()

	hash, err := authkit.HashPassword("seed-password")
	require.NoError(t, err)

	identity, err := f.store.Save(context.Background(), &authkit.Identity{
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: hash,
		Verified:     true,
	})
	require.NoError(t, err)
	return identity
}

func TestSessionGuardAuthorize(t *testing.T) {
	f := newGuardFixture(t)
	identity := f.seedIdentity(t)

	token, _, err := f.issuer.Issue(identity.ID, authkit.TokenKindAccess)
	require.NoError(t, err)

	got, err := f.guard.Authorize(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, identity.Email, got.Email)
}

func TestSessionGuardDenies(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		f := newGuardFixture(t)
		_, err := f.guard.Authorize(context.Background(), "")
		assert.ErrorIs(t, err, authkit.ErrUnableToFindSession)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newGuardFixture(t)
		identity := f.seedIdentity(t)

		token, _, err := f.issuer.Issue(identity.ID, authkit.TokenKindAccess)
		require.NoError(t, err)

		f.clock.Advance(16 * time.Minute)
		_, err = f.guard.Authorize(context.Background(), token)
		assert.True(t, authkit.IsTokenExpiredError(err))
	})

	t.Run("malformed token", func(t *testing.T) {
		f := newGuardFixture(t)
		_, err := f.guard.Authorize(context.Background(), "garbage.token.value")
		assert.True(t, authkit.IsMalformedError(err))
	})

	t.Run("refresh token on an access route", func(t *testing.T) {
		f := newGuardFixture(t)
		identity := f.seedIdentity(t)

		refresh, _, err := f.issuer.Issue(identity.ID, authkit.TokenKindRefresh)
		require.NoError(t, err)

		_, err = f.guard.Authorize(context.Background(), refresh)
		assert.True(t, authkit.IsMalformedError(err))
	})

	t.Run("identity deleted after issuance", func(t *testing.T) {
		f := newGuardFixture(t)
		identity := f.seedIdentity(t)

		token, _, err := f.issuer.Issue(identity.ID, authkit.TokenKindAccess)
		require.NoError(t, err)

		require.NoError(t, f.store.Remove(context.Background(), identity))

		_, err = f.guard.Authorize(context.Background(), token)
		assert.ErrorIs(t, err, authkit.ErrIdentityNotFound)
	})

	t.Run("token issued before password change", func(t *testing.T) {
		f := newGuardFixture(t)
		identity := f.seedIdentity(t)

		token, _, err := f.issuer.Issue(identity.ID, authkit.TokenKindAccess)
		require.NoError(t, err)

		f.clock.Advance(5 * time.Minute)
		changedAt := f.clock.Now()
		identity.PasswordChangedAt = &changedAt
		_, err = f.store.Save(context.Background(), identity)
		require.NoError(t, err)

		_, err = f.guard.Authorize(context.Background(), token)
		assert.True(t, authkit.IsTokenExpiredError(err))
	})

	t.Run("store failure denies", func(t *testing.T) {
		f := newGuardFixture(t)
		identity := f.seedIdentity(t)

		token, _, err := f.issuer.Issue(identity.ID, authkit.TokenKindAccess)
		require.NoError(t, err)

		f.store.failAll = true
		_, err = f.guard.Authorize(context.Background(), token)
		assert.Error(t, err)
	})
}

func TestCurrentIdentityResolverNeverDenies(t *testing.T) {
	f := newGuardFixture(t)
	identity := f.seedIdentity(t)

	resolver := authkit.NewCurrentIdentityResolver(f.guard)

	token, _, err := f.issuer.Issue(identity.ID, authkit.TokenKindAccess)
	require.NoError(t, err)

	got := resolver.Resolve(context.Background(), token)
	require.NotNil(t, got)
	assert.Equal(t, identity.ID, got.ID)

	// Every failure mode resolves to anonymous instead of an error.
	assert.Nil(t, resolver.Resolve(context.Background(), ""))
	assert.Nil(t, resolver.Resolve(context.Background(), "garbage"))

	f.clock.Advance(16 * time.Minute)
	assert.Nil(t, resolver.Resolve(context.Background(), token))
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		build   func(r *http.Request)
		want    string
		wantErr bool
	}{
		{
			name: "bearer header",
			build: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer header-token")
			},
			want: "header-token",
		},
		{
			name: "cookie fallback",
			build: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: authkit.CookieAccessToken, Value: "cookie-token"})
			},
			want: "cookie-token",
		},
		{
			name: "header wins over cookie",
			build: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer header-token")
				r.AddCookie(&http.Cookie{Name: authkit.CookieAccessToken, Value: "cookie-token"})
			},
			want: "header-token",
		},
		{
			name: "literal null bearer rejected",
			build: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer null")
			},
			wantErr: true,
		},
		{
			name: "empty bearer rejected",
			build: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer ")
			},
			wantErr: true,
		},
		{
			name:    "nothing present",
			build:   func(*http.Request) {},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.build(r)

			got, err := authkit.TokenFromRequest(r)
			if tt.wantErr {
				assert.ErrorIs(t, err, authkit.ErrUnableToFindSession)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRefreshTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	_, err := authkit.RefreshTokenFromRequest(r)
	assert.ErrorIs(t, err, authkit.ErrUnableToFindSession)

	r.AddCookie(&http.Cookie{Name: authkit.CookieRefreshToken, Value: "refresh-cookie"})
	got, err := authkit.RefreshTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "refresh-cookie", got)
}

func TestIdentityContextRoundTrip(t *testing.T) {
	identity := &authkit.Identity{ID: uuid.New(), Email: "ctx@example.com"}

	ctx := authkit.WithIdentity(context.Background(), identity)
	got, ok := authkit.IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, identity, got)

	_, ok = authkit.IdentityFromContext(context.Background())
	assert.False(t, ok)
}
