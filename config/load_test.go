package config

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func noEnv(string) string { return "" }

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Lexer.IndentSize != 4 {
		t.Errorf("expected default indent size 4, got %d", cfg.Lexer.IndentSize)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected default log level 'warn', got %q", cfg.Logging.Level)
	}
	if !cfg.Player.TitleCaseSpeakers {
		t.Error("expected title_case_speakers to default to true")
	}
	if cfg.Transcript.Format != "markdown" {
		t.Errorf("expected default transcript format 'markdown', got %q", cfg.Transcript.Format)
	}
	if err := validateBasic(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "QUILL_LEVEL":
			return "debug"
		case "QUILL_DB":
			return "sqlite://runs.db"
		default:
			return ""
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple substitution",
			input:    "level: ${QUILL_LEVEL}",
			expected: "level: debug",
		},
		{
			name:     "with default (env set)",
			input:    "level: ${QUILL_LEVEL:-info}",
			expected: "level: debug",
		},
		{
			name:     "with default (env not set)",
			input:    "locale: ${UNSET_VAR:-de_DE}",
			expected: "locale: de_DE",
		},
		{
			name:     "multiple substitutions",
			input:    "x: ${QUILL_LEVEL}/${QUILL_DB}",
			expected: "x: debug/sqlite://runs.db",
		},
		{
			name:     "unset without default",
			input:    "record: ${UNSET_VAR}",
			expected: "record: ",
		},
		{
			name:     "no substitution needed",
			input:    "prompt: \"> \"",
			expected: "prompt: \"> \"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(interpolateEnv([]byte(tt.input), getenv))
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	configContent := `
lexer:
  indent_size: 2
  callables: [shout]

logging:
  level: ${LEVEL:-info}
  format: json

player:
  prompt: "... "
  narrator_label: Narrator
  show_events: true

transcript:
  format: html
  output: out/run.html.gz
  locale: fr_FR
  record: sqlite://runs.db
`
	if err := afero.WriteFile(fs, "/project/quill.yaml", []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, path, err := LoadWithPath(fs, "/project/quill.yaml", noEnv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if path != "/project/quill.yaml" {
		t.Errorf("expected resolved path, got %q", path)
	}
	if cfg.BaseDir != "/project" {
		t.Errorf("expected base dir /project, got %q", cfg.BaseDir)
	}
	if cfg.Lexer.IndentSize != 2 {
		t.Errorf("expected indent size 2, got %d", cfg.Lexer.IndentSize)
	}
	if len(cfg.Lexer.Callables) != 1 || cfg.Lexer.Callables[0] != "shout" {
		t.Errorf("unexpected callables %v", cfg.Lexer.Callables)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected interpolated log level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Player.Prompt != "... " {
		t.Errorf("expected prompt '... ', got %q", cfg.Player.Prompt)
	}
	if !cfg.Player.TitleCaseSpeakers {
		t.Error("unset fields should keep their defaults")
	}
	if cfg.Transcript.Output != "/project/out/run.html.gz" {
		t.Errorf("expected output resolved against base dir, got %q", cfg.Transcript.Output)
	}
	if cfg.Transcript.Record != "sqlite://runs.db" {
		t.Errorf("unexpected record DSN %q", cfg.Transcript.Record)
	}
}

func TestLoadNoConfigUsesDefaults(t *testing.T) {
	cfg, path, err := LoadWithPath(afero.NewMemMapFs(), "", noEnv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != "" {
		t.Errorf("expected no path, got %q", path)
	}
	if cfg.Lexer.IndentSize != 4 {
		t.Errorf("expected defaults, got indent size %d", cfg.Lexer.IndentSize)
	}
}

func TestResolveConfigPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "quill.yaml", []byte("{}"), 0o644)
	_ = afero.WriteFile(fs, "/etc/quill/env.yaml", []byte("{}"), 0o644)

	envSet := func(key string) string {
		if key == EnvConfig {
			return "/etc/quill/env.yaml"
		}
		return ""
	}

	tests := []struct {
		name     string
		explicit string
		getenv   func(string) string
		expected string
		wantErr  string
	}{
		{"explicit wins", "/etc/quill/env.yaml", noEnv, "/etc/quill/env.yaml", ""},
		{"explicit missing", "/nope.yaml", noEnv, "", "config file not found: /nope.yaml"},
		{"env var", "", envSet, "/etc/quill/env.yaml", ""},
		{"env var missing", "", func(string) string { return "/missing.yaml" }, "", "QUILL_CONFIG file not found"},
		{"working directory", "", noEnv, "quill.yaml", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := resolveConfigPath(fs, tt.explicit, tt.getenv)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if path != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, path)
			}
		})
	}
}

func TestValidateBasicCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Lexer.IndentSize = 0
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"
	cfg.Transcript.Format = "pdf"

	err := validateBasic(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	expected := "configuration errors:\n" +
		"  - invalid lexer.indent_size: 0 (must be 1-16)\n" +
		"  - invalid log level: loud (must be debug, info, warn, or error)\n" +
		"  - invalid log format: xml (must be console or json)\n" +
		"  - invalid transcript.format: pdf (must be markdown or html)"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\n%s", err)
	}
}

func TestValidateBasicFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad callable", func(c *Config) { c.Lexer.Callables = []string{"two words"} }, `lexer.callables[0]: invalid name "two words"`},
		{"bad locale", func(c *Config) { c.Transcript.Locale = "not a locale!" }, "invalid transcript.locale"},
		{"bad dsn", func(c *Config) { c.Transcript.Record = "runs.db" }, "invalid transcript.record"},
		{"good locale", func(c *Config) { c.Transcript.Locale = "de_DE" }, ""},
		{"good dsn", func(c *Config) { c.Transcript.Record = "postgres://localhost/quill" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := validateBasic(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "bad.yaml", []byte("lexer: [unclosed"), 0o644)

	_, err := Load(fs, "bad.yaml", noEnv)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}
