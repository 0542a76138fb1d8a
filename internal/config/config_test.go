package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	c := Defaults()
	c.App.JWTSecret = "secret"
	c.Oracle.SignerKeys = []string{"aa"}
	c.Oracle.BackendSecret = "backend"
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults with secrets", func(c *Config) {}, false},
		{"missing jwt secret", func(c *Config) { c.App.JWTSecret = "" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"min above max", func(c *Config) { c.Settlement.MinDuration = Duration{48 * time.Hour}; c.Settlement.MaxDuration = Duration{time.Hour} }, true},
		{"zero timeout", func(c *Config) { c.Settlement.RevealTimeout = Duration{} }, true},
		{"negative fee", func(c *Config) { c.Settlement.CreationFee = -1 }, true},
		{"threshold above keys", func(c *Config) { c.Oracle.Threshold = 2 }, true},
		{"http without addresses", func(c *Config) {
			c.Oracle.Mode = "http"
			c.Oracle.GatewayURL = "http://gw"
			c.Oracle.CallbackURL = "http://cb"
		}, true},
		{"http complete", func(c *Config) {
			c.Oracle.Mode = "http"
			c.Oracle.GatewayURL = "http://gw"
			c.Oracle.CallbackURL = "http://cb"
			c.Oracle.SignerAddresses = []string{"0x01"}
		}, false},
		{"missing backend secret", func(c *Config) { c.Oracle.BackendSecret = "" }, true},
		{"pool cap off in production", func(c *Config) { c.Settlement.EnforcePoolCap = false }, true},
		{"pool cap off in development", func(c *Config) {
			c.Settlement.EnforcePoolCap = false
			c.App.Development = true
		}, false},
		{"zero challenge ttl", func(c *Config) { c.App.LoginChallengeTTL = Duration{} }, true},
		{"unknown oracle mode", func(c *Config) { c.Oracle.Mode = "carrier-pigeon" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[app]
jwt_secret = "from-file"
development = true
login_challenge_ttl = "90s"

[settlement]
reveal_timeout = "2h"
enforce_pool_cap = false

[oracle]
signer_keys = ["aa", "bb"]
threshold = 2
backend_secret = "s"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REVEAL_TIMEOUT", "3h")
	t.Setenv("ADMIN_WALLETS", "w1, w2,")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.JWTSecret != "from-file" {
		t.Errorf("expected jwt secret from file, got %q", cfg.App.JWTSecret)
	}
	if cfg.Settlement.RevealTimeout.Duration != 3*time.Hour {
		t.Errorf("expected env override 3h, got %s", cfg.Settlement.RevealTimeout)
	}
	if cfg.Settlement.EnforcePoolCap {
		t.Error("expected pool cap disabled from file")
	}
	if cfg.App.LoginChallengeTTL.Duration != 90*time.Second {
		t.Errorf("expected 90s challenge ttl, got %s", cfg.App.LoginChallengeTTL)
	}
	if len(cfg.Admin.Wallets) != 2 || cfg.Admin.Wallets[1] != "w2" {
		t.Errorf("expected two admin wallets, got %v", cfg.Admin.Wallets)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port, got %s", cfg.Server.Port)
	}
}
