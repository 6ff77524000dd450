// Package config loads and watches the vibedb configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AppName is the name used for config discovery and env-var prefixing.
const AppName = "vibedb"

// configSearchPaths returns the paths to search for config files in order
// of precedence (later paths have higher priority in viper).
func configSearchPaths() []string {
	paths := []string{filepath.Join("/etc", AppName)}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, cwd)
	}

	return paths
}

// UserConfigDir returns the user-specific config directory.
func UserConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// newViper creates and configures a viper instance.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range configSearchPaths() {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the daemon configuration from cfgFile, or from the search
// paths when cfgFile is empty. Missing file means defaults + env vars.
func Load(cfgFile string) (*Config, error) {
	v := newViper()
	setViperDefaults(v, Default())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog.url is required")
	}
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("security.encryption_key is required")
	}
	if c.Security.APIKeySalt == "" {
		return fmt.Errorf("security.api_key_salt is required")
	}
	if c.Limits.MaxQueryTimeSeconds <= 0 || c.Limits.MaxQueryTimeSeconds > 60 {
		return fmt.Errorf("limits.max_query_time_seconds must be in (0, 60]")
	}
	return nil
}

// setViperDefaults sets default values in viper from a config struct.
// Every key needs a default registered, even an empty one, or AutomaticEnv
// cannot bind it during Unmarshal.
func setViperDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("server.host", c.Server.Host)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.trust_gateway", c.Server.TrustGateway)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("log.output", c.Log.Output)
	v.SetDefault("catalog.url", c.Catalog.URL)
	v.SetDefault("catalog.min_pool_size", c.Catalog.MinPoolSize)
	v.SetDefault("catalog.max_pool_size", c.Catalog.MaxPoolSize)
	v.SetDefault("security.encryption_key", c.Security.EncryptionKey)
	v.SetDefault("security.api_key_salt", c.Security.APIKeySalt)
	v.SetDefault("target.host", c.Target.Host)
	v.SetDefault("target.port", c.Target.Port)
	v.SetDefault("target.admin_username", c.Target.AdminUsername)
	v.SetDefault("target.admin_password", c.Target.AdminPassword)
	v.SetDefault("target.ssl_mode", c.Target.SSLMode)
	v.SetDefault("limits.max_query_time_seconds", c.Limits.MaxQueryTimeSeconds)
	v.SetDefault("limits.max_rows_per_query", c.Limits.MaxRowsPerQuery)
	v.SetDefault("limits.default_page_size", c.Limits.DefaultPageSize)
	v.SetDefault("password.expiry_days", c.Password.ExpiryDays)
	v.SetDefault("password.reset_token_expiry_hours", c.Password.ResetTokenExpiryHours)
	v.SetDefault("password.history_size", c.Password.HistorySize)
	v.SetDefault("notifier.smtp_addr", c.Notifier.SMTPAddr)
	v.SetDefault("notifier.from", c.Notifier.From)
	v.SetDefault("notifier.reset_url_base", c.Notifier.ResetURLBase)
}

// ConfigFileUsed returns the config file path that was loaded, if any.
func ConfigFileUsed() string {
	v := newViper()
	_ = v.ReadInConfig()
	return v.ConfigFileUsed()
}
