package config

// LogConfig holds logging configuration shared by the daemon and CLI.
type LogConfig struct {
	Level        string   `mapstructure:"level"`         // debug, info, warn, error
	Format       string   `mapstructure:"format"`        // text, json, pretty
	Output       string   `mapstructure:"output"`        // stdout, stderr, or file path
	FilePath     string   `mapstructure:"file_path"`     // path to log file (in addition to output)
	MaxSizeMB    int      `mapstructure:"max_size_mb"`   // max size in MB before rotation
	MaxBackups   int      `mapstructure:"max_backups"`   // max number of old log files to keep
	MaxAgeDays   int      `mapstructure:"max_age_days"`  // max days to retain old log files
	EnableCaller bool     `mapstructure:"enable_caller"` // include source file/line in logs
	NoColor      bool     `mapstructure:"no_color"`      // disable colored output (pretty format only)
	RedactFields []string `mapstructure:"redact_fields"` // field names to redact from logs
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// TrustGateway enables X-User-Id delegation. Only set this when the
	// control plane is reachable exclusively through the trusted gateway.
	TrustGateway bool `mapstructure:"trust_gateway"`
}

// CatalogConfig holds the master-database connection settings.
type CatalogConfig struct {
	// URL is the connection string of the catalog database.
	URL string `mapstructure:"url"`

	MinPoolSize int `mapstructure:"min_pool_size"`
	MaxPoolSize int `mapstructure:"max_pool_size"`
}

// SecurityConfig holds the vault key and API-key salt.
type SecurityConfig struct {
	// EncryptionKey is the process-wide symmetric key material. Stored
	// ciphertexts become unreadable if it changes.
	EncryptionKey string `mapstructure:"encryption_key"`

	// APIKeySalt is appended to API-key plaintexts before hashing.
	APIKeySalt string `mapstructure:"api_key_salt"`
}

// TargetConfig holds defaults for registered database servers.
type TargetConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	SSLMode       string `mapstructure:"ssl_mode"`
}

// LimitsConfig bounds query execution and result sizes.
type LimitsConfig struct {
	MaxQueryTimeSeconds int `mapstructure:"max_query_time_seconds"`
	MaxRowsPerQuery     int `mapstructure:"max_rows_per_query"`
	DefaultPageSize     int `mapstructure:"default_page_size"`
}

// PasswordConfig governs password lifetime and reset tokens.
type PasswordConfig struct {
	ExpiryDays            int `mapstructure:"expiry_days"`
	ResetTokenExpiryHours int `mapstructure:"reset_token_expiry_hours"`
	HistorySize           int `mapstructure:"history_size"`
}

// NotifierConfig configures outbound email.
type NotifierConfig struct {
	// SMTPAddr is host:port of the SMTP relay. Empty disables delivery;
	// messages are logged instead.
	SMTPAddr string `mapstructure:"smtp_addr"`
	From     string `mapstructure:"from"`

	// ResetURLBase is prepended to reset tokens in outbound mail.
	ResetURLBase string `mapstructure:"reset_url_base"`
}

// Config is the full daemon configuration, read once at startup.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Security SecurityConfig `mapstructure:"security"`
	Target   TargetConfig   `mapstructure:"target"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Password PasswordConfig `mapstructure:"password"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

// Default returns the built-in defaults applied under any config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Catalog: CatalogConfig{
			MinPoolSize: 1,
			MaxPoolSize: 5,
		},
		Target: TargetConfig{
			Port:    5432,
			SSLMode: "require",
		},
		Limits: LimitsConfig{
			MaxQueryTimeSeconds: 30,
			MaxRowsPerQuery:     10000,
			DefaultPageSize:     100,
		},
		Password: PasswordConfig{
			ExpiryDays:            90,
			ResetTokenExpiryHours: 24,
			HistorySize:           5,
		},
	}
}
