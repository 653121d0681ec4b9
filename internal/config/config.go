// Package config assembles the process configuration from the keygate.yaml
// file and INVITE_* environment variables via viper. The loaded Config is an
// explicit value handed to constructors; nothing in the repository reads the
// environment after startup.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Geo    GeoConfig    `yaml:"geo"`

	// Keys is the raw JSON object mapping user names to invite keys
	// (INVITE_KEYS). Malformed content degrades to an empty registry.
	Keys string `yaml:"keys"`

	// AdminKey guards the log query/stats/export endpoints. Empty disables
	// them entirely.
	AdminKey string `yaml:"admin_key"`

	// SigningSecret switches the session codec from reversible base64 to
	// HMAC-signed tokens when non-empty.
	SigningSecret string `yaml:"signing_secret"`

	// StrictMode additionally binds sessions to the tool they were issued
	// for (INVITE_STRICT_MODE). Expiry is enforced regardless.
	StrictMode bool `yaml:"strict_mode"`

	// ConsoleLog mirrors audit entries to the process logger
	// (INVITE_CONSOLE_LOG); FileLog persists them (INVITE_FILE_LOG).
	ConsoleLog bool `yaml:"console_log"`
	FileLog    bool `yaml:"file_log"`

	// SessionTTL is the session lifetime. Defaults to 24h.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// ToolsFile points at the YAML tool-policy registry.
	ToolsFile string `yaml:"tools_file"`

	// DataDir holds the PID file, telemetry instance ID, and the SQLite
	// audit database when the sqlite store is selected.
	DataDir string `yaml:"data_dir"`

	Telemetry bool `yaml:"telemetry"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	CORSOrigins   []string `yaml:"cors_origins"`
	RatePerMinute int      `yaml:"rate_per_minute"` // session issuance per IP
}

// LogConfig controls the audit logger (INVITE_LOG_* variables).
type LogConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Dir              string  `yaml:"dir"`
	MaxSize          int64   `yaml:"max_size"` // rotation threshold, bytes
	RetentionDays    int     `yaml:"retention_days"`
	SweepProbability float64 `yaml:"sweep_probability"`
	Store            string  `yaml:"store"` // "file" or "sqlite"
}

// GeoConfig controls geolocation lookups on session issuance.
type GeoConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// SetDefaults registers every configuration default on the viper instance.
// Called once from CLI initialization, before flags and env are merged.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_per_minute", 30)

	v.SetDefault("log.enabled", true)
	v.SetDefault("log.dir", "./logs/invite-access")
	v.SetDefault("log.max_size", 10*1024*1024)
	v.SetDefault("log.retention_days", 90)
	v.SetDefault("log.sweep_probability", 0.01)
	v.SetDefault("log.store", "file")

	v.SetDefault("geo.enabled", true)
	v.SetDefault("geo.timeout", 2*time.Second)

	v.SetDefault("keys", "")
	v.SetDefault("admin_key", "")
	v.SetDefault("signing_secret", "")
	v.SetDefault("strict_mode", false)
	v.SetDefault("console_log", false)
	v.SetDefault("file_log", true)
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("tools_file", "")
	v.SetDefault("data_dir", "")
	v.SetDefault("telemetry", true)
}

// Load materializes a Config from the viper instance.
func Load(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:          v.GetString("server.host"),
			Port:          v.GetInt("server.port"),
			CORSOrigins:   v.GetStringSlice("server.cors_origins"),
			RatePerMinute: v.GetInt("server.rate_per_minute"),
		},
		Log: LogConfig{
			Enabled:          v.GetBool("log.enabled"),
			Dir:              v.GetString("log.dir"),
			MaxSize:          v.GetInt64("log.max_size"),
			RetentionDays:    v.GetInt("log.retention_days"),
			SweepProbability: v.GetFloat64("log.sweep_probability"),
			Store:            v.GetString("log.store"),
		},
		Geo: GeoConfig{
			Enabled: v.GetBool("geo.enabled"),
			Timeout: v.GetDuration("geo.timeout"),
		},
		Keys:          v.GetString("keys"),
		AdminKey:      v.GetString("admin_key"),
		SigningSecret: v.GetString("signing_secret"),
		StrictMode:    v.GetBool("strict_mode"),
		ConsoleLog:    v.GetBool("console_log"),
		FileLog:       v.GetBool("file_log"),
		SessionTTL:    v.GetDuration("session_ttl"),
		ToolsFile:     v.GetString("tools_file"),
		DataDir:       v.GetString("data_dir"),
		Telemetry:     v.GetBool("telemetry"),
	}
}
