package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9000", "api_base_url": "http://from-file"},
		"databases": {"sqlite3": {"dsn": "data/app.db"}},
		"auth": {"mode": "local", "link_secret": "s3cret"}
	}`)
	t.Setenv("INSTADM_API_BASE_URL", "http://from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.BasicConfig.APIBaseURL != "http://from-env" {
		t.Fatalf("expected env override, got %q", cfg.BasicConfig.APIBaseURL)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("file value lost: %q", cfg.BasicConfig.ServerAddress)
	}
	want := filepath.Join(filepath.Dir(path), "data/app.db")
	if cfg.Databases["sqlite3"].DSN != want {
		t.Fatalf("sqlite dsn not resolved, want %s got %s", want, cfg.Databases["sqlite3"].DSN)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("INSTADM_AUTH_LINK_SECRET", "from-env")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Auth.Mode != AuthModeLocal {
		t.Fatalf("expected local auth by default, got %s", cfg.Auth.Mode)
	}
	if cfg.BasicConfig.ServerAddress != ":8090" {
		t.Fatalf("unexpected default address %s", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Instagram.TokenURL == "" || cfg.Instagram.GraphBaseURL == "" {
		t.Fatalf("instagram endpoints not defaulted")
	}
	if cfg.HTTPTimeout() <= 0 {
		t.Fatalf("expected positive http timeout")
	}
}

func TestLoadRejectsHostedWithoutURL(t *testing.T) {
	path := writeConfig(t, `{"auth": {"mode": "hosted"}}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for hosted mode without url")
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `{"auth": {"mode": "ldap"}}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown auth mode")
	}
}
