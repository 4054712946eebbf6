package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		ClientID: "client-abc",
		BaseDir:  "/home/user/.local/share/aoi",
		LogDir:   "/home/user/.local/share/aoi/log",
		Backend: BackendConfig{
			Type:           "http",
			URL:            "https://changes.example.org",
			Token:          "secret",
			TimeoutSeconds: 10,
		},
		Alerts: AlertsConfig{MergePolicy: "per-alert", MaxConcurrency: 4, RecentWindowHours: 24},
		Log:    LogConfig{Level: "debug"},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: "/home/user/.local/share/aoi/db",
		},
		Archive: ArchiveConfig{Type: "s3", S3Bucket: "thumbs", S3Prefix: "aoi/", S3Region: "eu-west-1"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/aoi/keys/aoi.pub",
			PrivateKeyPath: "/home/user/.local/share/aoi/keys/aoi.key",
		},
		Metrics: MetricsConfig{PushgatewayURL: "http://pushgateway:9091", Job: "aoi-cli"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	require.NoError(t, m.Write(&buf, original))

	got, err := m.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestManager_Read_Example(t *testing.T) {
	input := `
client_id = "c1"
base_dir = "/data/aoi"

[backend]
type = "http"
url = "http://localhost:8000"

[alerts]
merge_policy = "all-or-nothing"
max_concurrency = 2

[archive]
type = "filesystem"
fs_root = "/data/aoi/archive"
`
	cfg, err := (&Manager{}).Read(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "c1", cfg.ClientID)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, 2, cfg.Alerts.MaxConcurrency)
	assert.Equal(t, "/data/aoi/archive", cfg.Archive.FSRoot)
	assert.NoError(t, cfg.Validate())
}

func TestManager_Read_Invalid(t *testing.T) {
	_, err := (&Manager{}).Read(strings.NewReader("client_id = ["))
	assert.Error(t, err)
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("client-1", "/data/aoi")

	assert.Equal(t, "client-1", cfg.ClientID)
	assert.Equal(t, "/data/aoi", cfg.BaseDir)
	assert.Equal(t, "/data/aoi/log", cfg.LogDir)
	assert.Equal(t, "/data/aoi/db", cfg.Database.DataDir)
	assert.Equal(t, "/data/aoi/archive", cfg.Archive.FSRoot)
	assert.Equal(t, "/data/aoi/keys/aoi.pub", cfg.Encryption.PublicKeyPath)
	assert.Equal(t, "/data/aoi/keys/aoi.key", cfg.Encryption.PrivateKeyPath)
	assert.Equal(t, "none", cfg.Encryption.Type)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "memory backend needs no url", mutate: func(c *Config) { c.Backend = BackendConfig{Type: "memory"} }},
		{name: "http backend needs url", mutate: func(c *Config) { c.Backend.URL = "" }, wantErr: "backend.url"},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend.Type = "grpc" }, wantErr: "backend type"},
		{name: "unknown merge policy", mutate: func(c *Config) { c.Alerts.MergePolicy = "some" }, wantErr: "merge_policy"},
		{name: "negative concurrency", mutate: func(c *Config) { c.Alerts.MaxConcurrency = -1 }, wantErr: "max_concurrency"},
		{name: "negative window", mutate: func(c *Config) { c.Alerts.RecentWindowHours = -1 }, wantErr: "recent_window_hours"},
		{name: "negative image cap", mutate: func(c *Config) { c.Archive.MaxImageBytes = -1 }, wantErr: "max_image_bytes"},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
		{name: "unknown encryption", mutate: func(c *Config) { c.Encryption.Type = "gpg" }, wantErr: "encryption type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("c", "/data")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "aoi.toml")

		require.NoError(t, Init(path, NewConfig("c1", dir)))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "aoi.toml")
		cfg := NewConfig("c1", dir)

		require.NoError(t, Init(path, cfg))
		assert.Error(t, Init(path, cfg))
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "aoi.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		require.NoError(t, Init(path, cfg))

		got, err := ReadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "read-test", got.ClientID)
		assert.Equal(t, "memory", got.Database.Type)
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/aoi.toml")
		assert.Error(t, err)
	})
}
