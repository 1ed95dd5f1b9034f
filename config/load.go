package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding an explicit config path.
const EnvConfig = "QUILL_CONFIG"

// FileName is the config file searched for in the working directory.
const FileName = "quill.yaml"

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations; when none exists
// the defaults are returned.
func Load(fs afero.Fs, configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(fs, configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the
// resolved path, which is empty when the defaults were used.
func LoadWithPath(fs afero.Fs, configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(fs, configPath, getenv)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Defaults(), "", nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to resolve config path")
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read config")
	}

	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", errors.Wrap(err, "failed to parse config")
	}
	cfg.BaseDir = filepath.Dir(absPath)

	if cfg.Transcript.Output != "" && !filepath.IsAbs(cfg.Transcript.Output) {
		cfg.Transcript.Output = filepath.Join(cfg.BaseDir, cfg.Transcript.Output)
	}

	if err := validateBasic(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > QUILL_CONFIG env > ./quill.yaml > ~/.config/quill/quill.yaml
func resolveConfigPath(fs afero.Fs, explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := fs.Stat(explicit); err != nil {
			return "", errors.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv(EnvConfig); envPath != "" {
		if _, err := fs.Stat(envPath); err != nil {
			return "", errors.Errorf("%s file not found: %s", EnvConfig, envPath)
		}
		return envPath, nil
	}

	if _, err := fs.Stat(FileName); err == nil {
		return FileName, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "quill", FileName)
		if _, err := fs.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// validateBasic checks every section and reports all problems at once.
func validateBasic(cfg *Config) error {
	var errs []string

	if cfg.Lexer.IndentSize < 1 || cfg.Lexer.IndentSize > 16 {
		errs = append(errs, fmt.Sprintf("invalid lexer.indent_size: %d (must be 1-16)", cfg.Lexer.IndentSize))
	}
	for i, name := range cfg.Lexer.Callables {
		if name == "" || strings.ContainsAny(name, " \t\"$") {
			errs = append(errs, fmt.Sprintf("lexer.callables[%d]: invalid name %q", i, name))
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be console or json)", cfg.Logging.Format))
	}

	validTranscript := map[string]bool{"markdown": true, "html": true}
	if !validTranscript[cfg.Transcript.Format] {
		errs = append(errs, fmt.Sprintf("invalid transcript.format: %s (must be markdown or html)", cfg.Transcript.Format))
	}

	if _, err := language.Parse(strings.ReplaceAll(cfg.Transcript.Locale, "_", "-")); err != nil {
		errs = append(errs, fmt.Sprintf("invalid transcript.locale: %s", cfg.Transcript.Locale))
	}

	if dsn := cfg.Transcript.Record; dsn != "" && !strings.Contains(dsn, ":") {
		errs = append(errs, fmt.Sprintf("invalid transcript.record: %s (expected sqlite://, postgres:// or mysql:// DSN)", dsn))
	}

	if len(errs) > 0 {
		return errors.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
