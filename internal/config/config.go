// Package config loads server configuration from the environment.
//
// An optional .env file in the working directory is loaded first, then the
// process environment is parsed into a single Config struct. Values already
// present in the environment win over the .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// minSecretLength matches the floor enforced by auth.NewTokenService.
const minSecretLength = 16

// Config is built once in main and passed down by pointer.
type Config struct {
	Port        int    `env:"PORT"         envDefault:"8000"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI    string `env:"MONGODB_URI"  envDefault:"mongodb://localhost:27017"`
	DBName      string `env:"DB_NAME"      envDefault:"devpulse"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"data/devpulse.db"`

	JWTSecret    string        `env:"JWT_SECRET,required"`
	JWTIssuer    string        `env:"JWT_ISSUER"    envDefault:"devpulse"`
	SessionTTL   time.Duration `env:"SESSION_TTL"   envDefault:"24h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	BcryptCost   int           `env:"BCRYPT_COST"   envDefault:"12"`

	OAuthStateTTL time.Duration `env:"OAUTH_STATE_TTL" envDefault:"5m"`

	GitHubClientID     string        `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI  string        `env:"GITHUB_REDIRECT_URI" envDefault:"http://localhost:8000/api/v1/github/callback"`
	GitHubAPIURL       string        `env:"GITHUB_API_URL"      envDefault:"https://api.github.com"`
	GitHubTimeout      time.Duration `env:"GITHUB_TIMEOUT"      envDefault:"20s"`

	DashboardRepoLimit int           `env:"DASHBOARD_REPO_LIMIT" envDefault:"5"`
	DashboardWindow    time.Duration `env:"DASHBOARD_WINDOW"     envDefault:"168h"`
}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only. Tests call it directly with
// t.Setenv so a stray .env file cannot leak in.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if len(c.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.OAuthStateTTL <= 0 {
		errs = append(errs, errors.New("OAUTH_STATE_TTL must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}

	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when STORE_DRIVER=mongo"))
		}
		if c.DBName == "" {
			errs = append(errs, errors.New("DB_NAME is required when STORE_DRIVER=mongo"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreSQLite, c.StoreDriver))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := checkAbsoluteURL("FRONTEND_URL", c.FrontendURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkAbsoluteURL("GITHUB_API_URL", c.GitHubAPIURL); err != nil {
		errs = append(errs, err)
	}
	if c.GitHubTimeout <= 0 {
		errs = append(errs, errors.New("GITHUB_TIMEOUT must be positive"))
	}
	if c.DashboardRepoLimit < 1 {
		errs = append(errs, fmt.Errorf("DASHBOARD_REPO_LIMIT must be at least 1, got %d", c.DashboardRepoLimit))
	}
	if c.DashboardWindow <= 0 {
		errs = append(errs, errors.New("DASHBOARD_WINDOW must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// GitHubConfigured reports whether the OAuth app credentials are present.
// Without them the /github routes answer 503.
func (c *Config) GitHubConfigured() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// IsProduction reports whether ENVIRONMENT is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// SlogLevel converts LOG_LEVEL to a slog.Level. Validate has already
// rejected unknown names, so the fallback is never hit after Load.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s)
	}
	return level, nil
}

func checkAbsoluteURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
