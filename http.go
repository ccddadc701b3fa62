package authkit

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Cookie names mirror what browser clients expect.
const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"
)

// SetAuthCookies writes the token pair as httpOnly cookies. The secure
// attribute follows the environment so local development over plain HTTP
// still works.
func SetAuthCookies(w http.ResponseWriter, cfg Config, pair TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieAccessToken,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(cfg.AccessCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CookieRefreshToken,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(cfg.RefreshCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// SetAccessCookie refreshes only the access token cookie, used after a
// refresh or password change.
func SetAccessCookie(w http.ResponseWriter, cfg Config, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieAccessToken,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.AccessCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookies expires both cookies immediately.
func ClearAuthCookies(w http.ResponseWriter, cfg Config) {
	for _, name := range []string{CookieAccessToken, CookieRefreshToken} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   cfg.IsProduction(),
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// RequireAuth denies requests that do not carry a valid, non-invalidated
// access token. The authorized identity lands in the request context.
func RequireAuth(guard *SessionGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := TokenFromRequest(r)
			if err != nil {
				writeError(w, err)
				return
			}

			identity, err := guard.Authorize(r.Context(), raw)
			if err != nil {
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// CurrentIdentity attaches the identity when a valid token is present and
// lets the request through either way.
func CurrentIdentity(resolver *CurrentIdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := TokenFromRequest(r)
			if err == nil {
				if identity := resolver.Resolve(r.Context(), raw); identity != nil {
					r = r.WithContext(WithIdentity(r.Context(), identity))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthController exposes the credential lifecycle as JSON endpoints. It is
// a thin shell over the Coordinator: decode, delegate, set cookies, encode.
type AuthController struct {
	coordinator *Coordinator
	guard       *SessionGuard
	config      Config
	logger      Logger
}

func NewAuthController(coordinator *Coordinator, guard *SessionGuard, cfg Config) *AuthController {
	return &AuthController{
		coordinator: coordinator,
		guard:       guard,
		config:      cfg,
		logger:      defLogger{},
	}
}

func (c *AuthController) WithLogger(logger Logger) *AuthController {
	if logger != nil {
		c.logger = logger
	}
	return c
}

func (c *AuthController) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", c.Signup)
		r.Post("/signin", c.Signin)
		r.Get("/verify-email/{code}", c.VerifyEmail)
		r.Post("/forgot-password", c.ForgotPassword)
		r.Post("/reset-password/{code}", c.ResetPassword)
		r.Post("/refresh-token", c.Refresh)
		r.Post("/signout", c.Signout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(c.guard))
			r.Patch("/change-password", c.ChangePassword)
			r.Get("/me", c.Me)
		})
	})
}

func (c *AuthController) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	identity, err := c.coordinator.Signup(r.Context(), in)
	if err != nil && identity == nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	payload := map[string]any{"user": identity}
	if err != nil {
		// Identity was created but the verification email did not go out.
		payload["warning"] = "verification email could not be delivered"
		c.logger.Warn("signup completed with delivery failure: %v", err)
	}

	writeJSON(w, status, payload)
}

func (c *AuthController) Signin(w http.ResponseWriter, r *http.Request) {
	var in SigninInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	identity, pair, err := c.coordinator.Signin(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	SetAuthCookies(w, c.config, pair)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   identity,
		"tokens": pair,
	})
}

func (c *AuthController) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	identity, err := c.coordinator.VerifyEmail(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": identity})
}

func (c *AuthController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in ForgotPasswordInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := c.coordinator.ForgotPassword(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password reset email sent",
	})
}

func (c *AuthController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in ResetPasswordInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	if _, err := c.coordinator.ResetPassword(r.Context(), chi.URLParam(r, "code"), in.Password); err != nil {
		writeError(w, err)
		return
	}

	// Every previously issued token is now stale, the browser should not
	// keep presenting them.
	ClearAuthCookies(w, c.config)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password updated, please sign in again",
	})
}

func (c *AuthController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, ErrUnableToFindSession)
		return
	}

	var in ChangePasswordInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	token, expiresAt, err := c.coordinator.ChangePassword(r.Context(), identity, in)
	if err != nil {
		writeError(w, err)
		return
	}

	SetAccessCookie(w, c.config, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_at":   expiresAt,
	})
}

func (c *AuthController) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := RefreshTokenFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	token, expiresAt, err := c.coordinator.Refresh(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}

	SetAccessCookie(w, c.config, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_at":   expiresAt,
	})
}

func (c *AuthController) Signout(w http.ResponseWriter, _ *http.Request) {
	ClearAuthCookies(w, c.config)
	writeJSON(w, http.StatusOK, map[string]any{"message": "signed out"})
}

func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, ErrUnableToFindSession)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": identity})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid JSON payload")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)

	body := map[string]any{
		"error": err.Error(),
	}

	var gerr *goerrors.Error
	if goerrors.As(err, &gerr) && gerr.TextCode != "" {
		body["code"] = gerr.TextCode
	}

	writeJSON(w, status, body)
}

func statusFromError(err error) int {
	var gerr *goerrors.Error
	if !goerrors.As(err, &gerr) {
		return http.StatusInternalServerError
	}

	if gerr.Code >= 400 && gerr.Code < 600 {
		return int(gerr.Code)
	}

	switch gerr.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
