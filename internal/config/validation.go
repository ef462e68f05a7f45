package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}

// Validate validates configuration values for correctness.
func Validate(config *Config) error {
	if err := validatePaths(&config.Paths); err != nil {
		return fmt.Errorf("paths config: %w", err)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if len(config.Style.Entries) == 0 {
		return fmt.Errorf("style config: no entries")
	}
	if config.Style.OutputDir == "" {
		return fmt.Errorf("style config: empty output_dir")
	}
	if config.Markup.Pages == "" || config.Markup.OutputDir == "" {
		return fmt.Errorf("markup config: pages and output_dir are required")
	}
	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: negative debounce %s", config.Watch.Debounce)
	}
	if err := validateReplacements(config.Dist.Replace); err != nil {
		return fmt.Errorf("dist config: %w", err)
	}
	if err := validateReplacements(config.Deploy.Replace); err != nil {
		return fmt.Errorf("deploy config: %w", err)
	}
	if config.Upload.Parallel < 1 {
		return fmt.Errorf("upload config: parallel must be at least 1, got %d", config.Upload.Parallel)
	}
	if config.Upload.Port < 0 || config.Upload.Port > 65535 {
		return fmt.Errorf("upload config: port %d is not in valid range 0-65535", config.Upload.Port)
	}
	return nil
}

func validatePaths(paths *PathsConfig) error {
	for name, p := range map[string]string{"app": paths.App, "dist": paths.Dist, "deploy": paths.Deploy} {
		if err := validatePath(p); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if filepath.Clean(paths.Dist) == filepath.Clean(paths.App) ||
		filepath.Clean(paths.Deploy) == filepath.Clean(paths.App) {
		return fmt.Errorf("output directories must differ from the app directory")
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// 0 asks the system for a free port
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}
	return nil
}

func validateReplacements(replacements []Replacement) error {
	for i, r := range replacements {
		if r.Old == "" {
			return fmt.Errorf("replace[%d]: empty search string", i)
		}
		if r.Files == "" {
			return fmt.Errorf("replace[%d]: empty files pattern", i)
		}
	}
	return nil
}

// validatePath rejects empty paths and paths escaping the project root. The
// clean task deletes these directories, so anything outside the project is
// refused outright.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path should be relative: %s", path)
	}
	if cleanPath == "." || strings.HasPrefix(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	return nil
}
