package config

// Config represents the complete Quill configuration
type Config struct {
	BaseDir    string           `yaml:"-"` // Directory containing config file, for resolving relative paths
	Lexer      LexerConfig      `yaml:"lexer"`
	Logging    LoggingConfig    `yaml:"logging"`
	Player     PlayerConfig     `yaml:"player"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// LexerConfig holds source layout settings
type LexerConfig struct {
	IndentSize int      `yaml:"indent_size"` // Columns per block level; a tab counts as one level (default: 4)
	Callables  []string `yaml:"callables"`   // Extra names the direct `name "text"` form treats as calls
}

// LoggingConfig holds diagnostic logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// PlayerConfig holds interactive player settings
type PlayerConfig struct {
	Prompt            string `yaml:"prompt"`              // Shown while waiting for Enter (default: "> ")
	TitleCaseSpeakers bool   `yaml:"title_case_speakers"` // Display "kacey" as "Kacey" (default: true)
	NarratorLabel     string `yaml:"narrator_label"`      // Prefix for narrator lines; empty prints the text alone
	ShowEvents        bool   `yaml:"show_events"`         // Trace every event, not just dialogue and print
}

// TranscriptConfig holds transcript rendering and recording settings
type TranscriptConfig struct {
	Format string `yaml:"format"` // markdown or html
	Output string `yaml:"output"` // File path; empty writes to stdout, a .gz suffix compresses
	Locale string `yaml:"locale"` // Locale for the date header (default: "en_US")
	Title  string `yaml:"title"`  // Heading; defaults to the script name
	Record string `yaml:"record"` // Database DSN for the event recorder; empty disables it
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Lexer: LexerConfig{
			IndentSize: 4,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Player: PlayerConfig{
			Prompt:            "> ",
			TitleCaseSpeakers: true,
		},
		Transcript: TranscriptConfig{
			Format: "markdown",
			Locale: "en_US",
		},
	}
}
