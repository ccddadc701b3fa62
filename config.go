package authkit

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Config carries every secret and knob the library needs, passed explicitly
// at construction time. Load it once at startup and abort on error; a
// missing signing key is the one condition that must never reach request
// handling.
type Config struct {
	Environment string `env:"AUTH_ENVIRONMENT" envDefault:"development"`

	AccessSecret  string `env:"JWT_ACCESS_SECRET,required"`
	RefreshSecret string `env:"JWT_REFRESH_SECRET,required"`

	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`

	// Cookie lifetimes are independent from token lifetimes.
	AccessCookieTTL  time.Duration `env:"JWT_ACCESS_COOKIE_TTL" envDefault:"15m"`
	RefreshCookieTTL time.Duration `env:"JWT_REFRESH_COOKIE_TTL" envDefault:"168h"`

	SkewTolerance time.Duration `env:"AUTH_SKEW_TOLERANCE" envDefault:"100s"`
	CodeTTL       time.Duration `env:"AUTH_CODE_TTL" envDefault:"10m"`

	Issuer   string   `env:"AUTH_ISSUER" envDefault:"authkit"`
	Audience []string `env:"AUTH_AUDIENCE" envSeparator:","`

	// FrontendURL prefixes outbound verification and reset links.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

// LoadConfig reads configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse auth configuration")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate fails fast on configurations that must prevent startup.
func (c Config) Validate() error {
	if c.AccessSecret == "" {
		return goerrors.New("access token signing secret is required", goerrors.CategoryValidation)
	}

	if c.RefreshSecret == "" {
		return goerrors.New("refresh token signing secret is required", goerrors.CategoryValidation)
	}

	if c.AccessSecret == c.RefreshSecret {
		return goerrors.New("access and refresh signing secrets must be distinct", goerrors.CategoryValidation)
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return goerrors.New("token TTLs must be positive", goerrors.CategoryValidation)
	}

	return nil
}

// IsProduction controls the cookie secure attribute.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
