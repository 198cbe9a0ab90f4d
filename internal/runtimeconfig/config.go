package runtimeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"mvdan.cc/sh/v3/shell"
)

const DefaultEnvFile = ".env"

// FileConfig holds values read from a dotenv file. They act as defaults that
// the process environment overrides.
type FileConfig struct {
	Path   string
	Values map[string]string
}

// Load reads a dotenv file. A missing file yields an empty config.
func Load(path string) (FileConfig, error) {
	configPath := strings.TrimSpace(path)
	if configPath == "" {
		configPath = DefaultEnvFile
	}
	values, err := godotenv.Read(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{Path: configPath, Values: map[string]string{}}, nil
		}
		return FileConfig{}, fmt.Errorf("read env file failed: %w", err)
	}
	return FileConfig{Path: configPath, Values: values}, nil
}

// ResolveString returns the environment value of key, then the dotenv value,
// then fallback.
func ResolveString(key string, defaults map[string]string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if value := strings.TrimSpace(defaults[key]); value != "" {
		return value
	}
	return fallback
}

// ResolveBool resolves key like ResolveString and parses it with ParseBool.
func ResolveBool(key string, defaults map[string]string, fallback bool) bool {
	raw := ResolveString(key, defaults, "")
	if raw == "" {
		return fallback
	}
	return ParseBool(raw)
}

// ParseBool accepts "1", "true", "t", "yes" and "y" in any case as true.
// Everything else is false.
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "y":
		return true
	default:
		return false
	}
}

// ExpandPath applies shell-style variable expansion and a leading ~ to a
// path setting, then cleans it.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	expanded, err := shell.Expand(trimmed, nil)
	if err != nil {
		return "", fmt.Errorf("expand path %q: %w", path, err)
	}
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory failed: %w", err)
		}
		expanded = filepath.Join(homeDir, strings.TrimPrefix(expanded, "~"))
	}
	return filepath.Clean(expanded), nil
}
