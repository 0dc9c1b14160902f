package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Auth        AuthConfig                `json:"auth"`
	Mail        MailConfig                `json:"mail"`
	Instagram   InstagramConfig           `json:"instagram"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" env:"INSTADM_SERVER_ADDRESS"`
	// PublicURL is the externally reachable origin used to build links in mail and redirects.
	PublicURL string `json:"public_url" env:"INSTADM_PUBLIC_URL"`
	// APIBaseURL is where the callback screen finds the token and messages endpoints.
	// Empty means this same server.
	APIBaseURL     string `json:"api_base_url" env:"INSTADM_API_BASE_URL"`
	HTTPTimeoutSec int    `json:"http_timeout_sec" env:"INSTADM_HTTP_TIMEOUT_SEC"`
	ViewStateTTL   int    `json:"view_state_ttl_min" env:"INSTADM_VIEW_STATE_TTL_MIN"`
	SessionTTL     int    `json:"session_ttl_hours" env:"INSTADM_SESSION_TTL_HOURS"`
	// AllowedOrigins limits CORS on /api. Empty allows every origin.
	AllowedOrigins []string `json:"allowed_origins" env:"INSTADM_ALLOWED_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" env:"INSTADM_REDIS_ENABLED"`
	Host     string `json:"host" env:"INSTADM_REDIS_HOST"`
	Port     int    `json:"port" env:"INSTADM_REDIS_PORT"`
	Username string `json:"username" env:"INSTADM_REDIS_USERNAME"`
	Password string `json:"password" env:"INSTADM_REDIS_PASSWORD"`
	DB       int    `json:"db" env:"INSTADM_REDIS_DB"`
}

// AuthConfig selects the auth provider behind the sign-in screen.
// Mode "hosted" talks to a GoTrue-compatible service, "local" uses the built-in identity service.
type AuthConfig struct {
	Mode            string `json:"mode" env:"INSTADM_AUTH_MODE"`
	HostedURL       string `json:"hosted_url" env:"INSTADM_AUTH_HOSTED_URL"`
	HostedAnonKey   string `json:"hosted_anon_key" env:"INSTADM_AUTH_HOSTED_ANON_KEY"`
	LinkSecret      string `json:"link_secret" env:"INSTADM_AUTH_LINK_SECRET"`
	MagicLinkTTLMin int    `json:"magic_link_ttl_min" env:"INSTADM_AUTH_MAGIC_LINK_TTL_MIN"`

	GoogleClientID     string `json:"google_client_id" env:"INSTADM_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `json:"google_client_secret" env:"INSTADM_GOOGLE_CLIENT_SECRET"`
}

type MailConfig struct {
	Host     string `json:"host" env:"INSTADM_SMTP_HOST"`
	Port     int    `json:"port" env:"INSTADM_SMTP_PORT"`
	Username string `json:"username" env:"INSTADM_SMTP_USERNAME"`
	Password string `json:"password" env:"INSTADM_SMTP_PASSWORD"`
	From     string `json:"from" env:"INSTADM_SMTP_FROM"`
}

// InstagramConfig holds the app credentials. The secret is only read by the proxy handlers.
type InstagramConfig struct {
	AppID        string `json:"app_id" env:"INSTADM_INSTAGRAM_APP_ID"`
	AppSecret    string `json:"app_secret" env:"INSTADM_INSTAGRAM_APP_SECRET"`
	RedirectURI  string `json:"redirect_uri" env:"INSTADM_INSTAGRAM_REDIRECT_URI"`
	TokenURL     string `json:"token_url" env:"INSTADM_INSTAGRAM_TOKEN_URL"`
	GraphBaseURL string `json:"graph_base_url" env:"INSTADM_INSTAGRAM_GRAPH_URL"`
}

const (
	AuthModeLocal  = "local"
	AuthModeHosted = "hosted"
)

// Load reads configuration from the provided path (defaults to config.json), then
// applies INSTADM_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	for name, db := range cfg.Databases {
		if db.DSN == "" || db.DSN == ":memory:" || filepath.IsAbs(db.DSN) {
			continue
		}
		if name == "sqlite" || name == "sqlite3" {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.PublicURL == "" {
		c.BasicConfig.PublicURL = "http://localhost:8090"
	}
	if c.BasicConfig.APIBaseURL == "" {
		c.BasicConfig.APIBaseURL = c.BasicConfig.PublicURL
	}
	if c.BasicConfig.HTTPTimeoutSec <= 0 {
		c.BasicConfig.HTTPTimeoutSec = 15
	}
	if c.BasicConfig.ViewStateTTL <= 0 {
		c.BasicConfig.ViewStateTTL = 30
	}
	if c.BasicConfig.SessionTTL <= 0 {
		c.BasicConfig.SessionTTL = 24
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeLocal
	}
	if c.Auth.MagicLinkTTLMin <= 0 {
		c.Auth.MagicLinkTTLMin = 15
	}
	if c.Databases == nil {
		c.Databases = map[string]DatabaseConfig{}
	}
	if _, ok := c.Databases["sqlite3"]; !ok {
		c.Databases["sqlite3"] = DatabaseConfig{DSN: "./data/instadm.db"}
	}
	if c.Instagram.TokenURL == "" {
		c.Instagram.TokenURL = "https://api.instagram.com/oauth/access_token"
	}
	if c.Instagram.GraphBaseURL == "" {
		c.Instagram.GraphBaseURL = "https://graph.instagram.com/v21.0"
	}
}

func (c *Config) validate() error {
	switch c.Auth.Mode {
	case AuthModeLocal:
		if c.Auth.LinkSecret == "" {
			return errors.New("auth.link_secret must be configured for local auth")
		}
	case AuthModeHosted:
		if c.Auth.HostedURL == "" {
			return errors.New("auth.hosted_url must be configured for hosted auth")
		}
	default:
		return fmt.Errorf("unsupported auth mode: %s", c.Auth.Mode)
	}
	return nil
}

// HTTPTimeout reports the timeout applied to outbound HTTP calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.BasicConfig.HTTPTimeoutSec) * time.Second
}
