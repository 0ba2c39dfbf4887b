package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file
// and optionally overridden by environment variables.
type Config struct {
	OAuth    OAuthConfig    `toml:"oauth"`
	Upstream UpstreamConfig `toml:"upstream"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// OAuthConfig contains the credentials registered with the upstream provider.
type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"` // empty for a public client
	RedirectURL  string `toml:"redirect_url"`
}

// UpstreamConfig contains settings for the upstream identity/file service.
type UpstreamConfig struct {
	BaseURL   string `toml:"base_url"`
	ChannelID string `toml:"channel_id"` // channel whose files are exposed as songs
	PageSize  int    `toml:"page_size"`
}

// ServerConfig contains HTTP gateway settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	ClientAppURL  string `toml:"client_app_url"` // browser is redirected here after login
	AllowedOrigin string `toml:"allowed_origin"`
	SecureCookies bool   `toml:"secure_cookies"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// A .env file in the working directory is loaded first so that environment
// overrides behave the same in development and deployment.
func LoadConfig(path string) (*Config, error) {
	godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded
// example config, with environment overrides applied.
func DefaultConfig() *Config {
	godotenv.Load()

	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}

	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv overrides config values from TRAQTUNE_* environment variables.
func (c *Config) applyEnv() {
	setString(&c.OAuth.ClientID, "TRAQTUNE_CLIENT_ID")
	setString(&c.OAuth.ClientSecret, "TRAQTUNE_CLIENT_SECRET")
	setString(&c.OAuth.RedirectURL, "TRAQTUNE_REDIRECT_URL")
	setString(&c.Upstream.BaseURL, "TRAQTUNE_UPSTREAM_URL")
	setString(&c.Upstream.ChannelID, "TRAQTUNE_CHANNEL_ID")
	setInt(&c.Upstream.PageSize, "TRAQTUNE_PAGE_SIZE")
	setString(&c.Server.Host, "TRAQTUNE_HOST")
	setInt(&c.Server.Port, "TRAQTUNE_PORT")
	setString(&c.Server.ClientAppURL, "TRAQTUNE_CLIENT_APP_URL")
	setString(&c.Server.AllowedOrigin, "TRAQTUNE_ALLOWED_ORIGIN")
	setBool(&c.Server.SecureCookies, "TRAQTUNE_SECURE_COOKIES")
	setString(&c.Log.Level, "TRAQTUNE_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks that every value the gateway cannot run without is present.
//
// Called once at startup so a missing value fails the process instead of the
// first request that needs it.
func (c *Config) Validate() error {
	if c.OAuth.ClientID == "" {
		return fmt.Errorf("%w: oauth.client_id is required", ErrMisconfigured)
	}
	if c.OAuth.RedirectURL == "" {
		return fmt.Errorf("%w: oauth.redirect_url is required", ErrMisconfigured)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("%w: upstream.base_url is required", ErrMisconfigured)
	}
	if c.Upstream.ChannelID == "" {
		return fmt.Errorf("%w: upstream.channel_id is required", ErrMisconfigured)
	}
	if c.Server.ClientAppURL == "" {
		return fmt.Errorf("%w: server.client_app_url is required", ErrMisconfigured)
	}
	if c.Upstream.PageSize <= 0 || c.Upstream.PageSize > 200 {
		c.Upstream.PageSize = 200
	}
	return nil
}

// Addr returns the listen address for the gateway server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
