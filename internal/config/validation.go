package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/swimport/internal/errors"
)

var (
	dangerousChars     = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	dangerousPathChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
)

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := config.WorkerOptions().Validate(); err != nil {
		return fmt.Errorf("worker config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return invalid("port %d is not in valid range 0-65535", config.Port)
	}

	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return invalid("host contains dangerous character: %s", char)
		}
	}

	if config.Root == "" {
		return invalid("root must not be empty")
	}
	if err := validateRelativePath(config.PublicDir); err != nil {
		return fmt.Errorf("public_dir: %w", err)
	}

	return nil
}

// validateBuildConfig validates build configuration values
func validateBuildConfig(config *BuildConfig) error {
	for _, entry := range config.EntryPoints {
		if err := validatePath(entry); err != nil {
			return fmt.Errorf("invalid entry point '%s': %w", entry, err)
		}
	}

	if filepath.IsAbs(filepath.Clean(config.OutDir)) {
		if err := validatePath(config.OutDir); err != nil {
			return fmt.Errorf("out_dir: %w", err)
		}
	} else if err := validateRelativePath(config.OutDir); err != nil {
		return fmt.Errorf("out_dir: %w", err)
	}

	if err := validateRelativePath(config.AssetsDir); err != nil {
		return fmt.Errorf("assets_dir: %w", err)
	}

	if !strings.HasPrefix(config.Base, "/") &&
		!strings.HasPrefix(config.Base, "http://") &&
		!strings.HasPrefix(config.Base, "https://") {
		return invalid("base must be an absolute path or URL: %s", config.Base)
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return invalid("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return invalid("path contains traversal: %s", path)
	}

	for _, char := range dangerousPathChars {
		if strings.Contains(cleanPath, char) {
			return invalid("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// validateRelativePath additionally rejects absolute paths.
func validateRelativePath(path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if filepath.IsAbs(filepath.Clean(path)) {
		return invalid("should be relative path: %s", path)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...))
}
