package app

import (
	"fmt"
	"os"
	"path/filepath"

	"sl-go/internal/config"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SL_CONFIG_PATH: config file location (default: ~/.config/sl.toml)
//   - SL_HOME: base directory for sl data (default: ~/.local/share/sl)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("SL_CONFIG_PATH", ".config", "sl.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("SL_HOME", ".local", "share", "sl")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the env var when set, else the path below the home directory.
func envOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}

// NotionToken returns the token from SL_NOTION_TOKEN, falling back to the config file.
func NotionToken(cfg *config.Config) string {
	if token := os.Getenv("SL_NOTION_TOKEN"); token != "" {
		return token
	}
	return cfg.Store.NotionToken
}
