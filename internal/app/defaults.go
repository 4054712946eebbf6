package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults holds the paths the CLI falls back to before a config file exists.
type Defaults struct {
	ConfigPath string // AOI_CONFIG_PATH, else ~/.config/aoi.toml
	BaseDir    string // AOI_HOME, else ~/.local/share/aoi; holds db/, archive/, keys/ and log/
	LogDir     string
}

// GetDefaults resolves the default paths, preferring the environment.
func GetDefaults() (*Defaults, error) {
	configPath, err := envOrHome("AOI_CONFIG_PATH", ".config", "aoi.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("AOI_HOME", ".local", "share", "aoi")
	if err != nil {
		return nil, err
	}
	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env if set, otherwise rel joined onto the
// user's home directory.
func envOrHome(env string, rel ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for %s: %w", env, err)
	}
	return filepath.Join(append([]string{homeDir}, rel...)...), nil
}
