package infra

import (
	"os"
	"path/filepath"
)

const (
	AppName = "coinfeed"
)

// ResolveConfigPath attempts to find the config.yaml.
// Priority: 1. COINFEED_CONFIG, 2. Current Dir, 3. OS Config Dir
func ResolveConfigPath() string {
	if p := os.Getenv("COINFEED_CONFIG"); p != "" {
		return p
	}

	defaultPath := filepath.Join("configs", "config.yaml")

	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}

	configRoot, err := os.UserConfigDir()
	if err == nil {
		osPath := filepath.Join(configRoot, AppName, "config.yaml")
		if _, err := os.Stat(osPath); err == nil {
			return osPath
		}
	}

	// Let LoadConfig report the missing file.
	return defaultPath
}
