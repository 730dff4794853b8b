package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the immutable configuration object built once at startup and
// injected everywhere. Business logic never reads the environment directly.
type Config struct {
	Listen      string `toml:"listen"`
	Environment string `toml:"environment"`

	IdP    IdPConfig    `toml:"idp"`
	Risk   RiskConfig   `toml:"risk"`
	Tokens TokensConfig `toml:"tokens"`
	Cookie CookieConfig `toml:"cookie"`
	Redis  RedisConfig  `toml:"redis"`
	Audit  AuditConfig  `toml:"audit"`

	// AccountHashSecret keys the hash that derives the account identifier
	// sent to the risk provider from the claimed email.
	AccountHashSecret string `toml:"account_hash_secret"`
}

// IdPConfig locates the identity provider.
type IdPConfig struct {
	BaseURL      string   `toml:"base_url"`
	Realm        string   `toml:"realm"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURL  string   `toml:"redirect_url"`
	Scopes       []string `toml:"scopes"`
	Timeout      Duration `toml:"timeout"`
}

// RiskConfig tunes the risk decision rule.
type RiskConfig struct {
	URL            string   `toml:"url"`
	SiteKey        string   `toml:"site_key"`
	APIKey         string   `toml:"api_key"`
	ExpectedAction string   `toml:"expected_action"`
	ScoreThreshold float64  `toml:"score_threshold"`
	BlockLabels    []string `toml:"block_labels"`
	Timeout        Duration `toml:"timeout"`
}

// TokensConfig sets the per-tier credential lifetimes.
type TokensConfig struct {
	AccessTTL  Duration `toml:"access_ttl"`
	RefreshTTL Duration `toml:"refresh_ttl"`
	OfflineTTL Duration `toml:"offline_ttl"`
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name       string `toml:"name"`
	Domain     string `toml:"domain"`
	SigningKey string `toml:"signing_key"`
	SealKey    string `toml:"seal_key"`
}

type RedisConfig struct {
	URL string `toml:"url"`
}

type AuditConfig struct {
	DSN string `toml:"dsn"`
}

// Duration lets TOML carry values like "5s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration with design defaults applied.
func Default() *Config {
	return &Config{
		Listen:      ":9000",
		Environment: "development",
		IdP: IdPConfig{
			Scopes:  []string{"openid", "profile", "email", "offline_access"},
			Timeout: Duration(10 * time.Second),
		},
		Risk: RiskConfig{
			ExpectedAction: "LOGIN",
			ScoreThreshold: 0.3,
			BlockLabels: []string{
				"suspicious-login-activity",
				"suspicious-account-creation",
				"many-related-accounts",
			},
			Timeout: Duration(5 * time.Second),
		},
		Tokens: TokensConfig{
			AccessTTL:  Duration(5 * time.Minute),
			RefreshTTL: Duration(30 * time.Minute),
			OfflineTTL: Duration(30 * 24 * time.Hour),
		},
		Cookie: CookieConfig{
			Name: "trustcore_session",
		},
		Redis: RedisConfig{URL: "redis://localhost:6379/0"},
		Audit: AuditConfig{DSN: "file:trustcore.db"},
	}
}

// Load reads the TOML file at path over the defaults and then applies
// environment overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	// Secrets may come from the environment instead of the file; this is
	// the only place that reads it.
	overrideEnv(&cfg.IdP.ClientSecret, "TRUSTCORE_IDP_CLIENT_SECRET")
	overrideEnv(&cfg.Risk.APIKey, "TRUSTCORE_RISK_API_KEY")
	overrideEnv(&cfg.Cookie.SigningKey, "TRUSTCORE_COOKIE_SIGNING_KEY")
	overrideEnv(&cfg.Cookie.SealKey, "TRUSTCORE_COOKIE_SEAL_KEY")
	overrideEnv(&cfg.AccountHashSecret, "TRUSTCORE_ACCOUNT_HASH_SECRET")
	overrideEnv(&cfg.Redis.URL, "REDIS_URL")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideEnv(field *string, name string) {
	if v := os.Getenv(name); v != "" {
		*field = v
	}
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Risk.ScoreThreshold < 0 || c.Risk.ScoreThreshold > 1 {
		return fmt.Errorf("risk score threshold %v must be within [0,1]", c.Risk.ScoreThreshold)
	}
	if c.Risk.Timeout.Std() <= 0 {
		return fmt.Errorf("risk call timeout must be positive")
	}
	if c.IdP.Timeout.Std() <= 0 {
		return fmt.Errorf("idp call timeout must be positive")
	}
	if c.Tokens.AccessTTL.Std() >= c.Tokens.RefreshTTL.Std() {
		return fmt.Errorf("access ttl must be shorter than refresh ttl")
	}
	if c.Tokens.RefreshTTL.Std() >= c.Tokens.OfflineTTL.Std() {
		return fmt.Errorf("refresh ttl must be shorter than offline ttl")
	}
	return nil
}

// Production reports whether relaxed cookie attributes are disallowed.
func (c *Config) Production() bool {
	return c.Environment == "production"
}
