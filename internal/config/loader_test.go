package config

import "testing"

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.TrustGateway {
		t.Error("gateway trust must be off by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Limits.MaxQueryTimeSeconds != 30 {
		t.Errorf("default max query time = %d, want 30", cfg.Limits.MaxQueryTimeSeconds)
	}
	if cfg.Limits.DefaultPageSize != 100 {
		t.Errorf("default page size = %d, want 100", cfg.Limits.DefaultPageSize)
	}
	if cfg.Password.ExpiryDays != 90 {
		t.Errorf("default password expiry = %d, want 90", cfg.Password.ExpiryDays)
	}
	if cfg.Password.HistorySize != 5 {
		t.Errorf("default history size = %d, want 5", cfg.Password.HistorySize)
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.Catalog.URL = "postgres://vibedb:pw@localhost:5432/master_db"
	cfg.Security.EncryptionKey = "test-encryption-key-material"
	cfg.Security.APIKeySalt = "test-salt"
	return cfg
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing catalog url", func(c *Config) { c.Catalog.URL = "" }},
		{"missing encryption key", func(c *Config) { c.Security.EncryptionKey = "" }},
		{"missing api key salt", func(c *Config) { c.Security.APIKeySalt = "" }},
		{"zero query time", func(c *Config) { c.Limits.MaxQueryTimeSeconds = 0 }},
		{"query time over cap", func(c *Config) { c.Limits.MaxQueryTimeSeconds = 120 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("VIBEDB_CATALOG_URL", "postgres://vibedb:pw@localhost:5432/master_db")
	t.Setenv("VIBEDB_SECURITY_ENCRYPTION_KEY", "test-encryption-key-material")
	t.Setenv("VIBEDB_SECURITY_API_KEY_SALT", "test-salt")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Catalog.URL != "postgres://vibedb:pw@localhost:5432/master_db" {
		t.Errorf("catalog url not taken from environment: %q", cfg.Catalog.URL)
	}
}
