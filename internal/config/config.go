package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for aoi.
type Config struct {
	ClientID   string           `toml:"client_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Backend    BackendConfig    `toml:"backend"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Log        LogConfig        `toml:"log"`
	Database   DatabaseConfig   `toml:"database"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// BackendConfig points the client at the change-detection service.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BackendConfig struct {
	Type           string `toml:"type"`                      // "http" (default) or "memory"
	URL            string `toml:"url,omitempty"`             // only used for type=http
	Token          string `toml:"token,omitempty"`           // bearer token, sent when set
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"` // per request; defaults to 30
}

// AlertsConfig tunes alert retrieval.
type AlertsConfig struct {
	MergePolicy       string `toml:"merge_policy"`        // "all-or-nothing" (default) or "per-alert"
	MaxConcurrency    int    `toml:"max_concurrency"`     // in-flight thumbnail requests; defaults to 8
	RecentWindowHours int    `toml:"recent_window_hours"` // dashboard recent-alert window; defaults to 168
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info" (default), "warn" or "error"
}

// DatabaseConfig represents configuration for the local operation log and archive index.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ArchiveConfig represents configuration for the thumbnail archive.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "", "memory", "filesystem" or "s3"; empty disables archiving

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // custom endpoint for S3-compatible stores
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	MaxImageBytes int64 `toml:"max_image_bytes,omitempty"` // per-thumbnail download cap; 0 means 20 MiB
}

// EncryptionConfig holds paths to the age key pair used for archived imagery.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// MetricsConfig enables pushing client metrics at exit.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url,omitempty"` // empty disables pushing
	Job            string `toml:"job,omitempty"`             // defaults to "aoi"
}

// NewConfig creates a new Config with the provided values and defaults.
func NewConfig(clientID, baseDir string) *Config {
	return &Config{
		ClientID: clientID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Backend: BackendConfig{
			Type:           "http",
			URL:            "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Alerts: AlertsConfig{
			MergePolicy:       "all-or-nothing",
			MaxConcurrency:    8,
			RecentWindowHours: 168,
		},
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Archive:  ArchiveConfig{Type: "filesystem", FSRoot: filepath.Join(baseDir, "archive")},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "aoi.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "aoi.key"),
		},
	}
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case "", "http":
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required for http backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown backend type: %q", c.Backend.Type)
	}

	switch c.Alerts.MergePolicy {
	case "", "all-or-nothing", "per-alert":
	default:
		return fmt.Errorf("unknown alerts.merge_policy: %q", c.Alerts.MergePolicy)
	}
	if c.Alerts.MaxConcurrency < 0 {
		return fmt.Errorf("alerts.max_concurrency must not be negative")
	}
	if c.Alerts.RecentWindowHours < 0 {
		return fmt.Errorf("alerts.recent_window_hours must not be negative")
	}
	if c.Archive.MaxImageBytes < 0 {
		return fmt.Errorf("archive.max_image_bytes must not be negative")
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level: %q", c.Log.Level)
	}

	switch c.Encryption.Type {
	case "", "none", "age", "test":
	default:
		return fmt.Errorf("unknown encryption type: %q", c.Encryption.Type)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified path. The file holds the
// backend token, so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
