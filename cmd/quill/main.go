// Command quill runs, checks and formats Quill dialogue scripts.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sambeau/quill/config"
	"github.com/sambeau/quill/pkg/quill/player"
	"github.com/sambeau/quill/pkg/quill/quill"
)

// Version is set at compile time via -ldflags
var Version = "0.1.0"

// app carries what every subcommand needs. Tests swap the filesystem,
// writers and clock.
type app struct {
	fs     afero.Fs
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	now    func() time.Time

	// Global flags
	configFlag   string
	logLevelFlag string

	cfg     *config.Config
	cfgPath string
	logger  *zap.Logger
}

// exitError carries an exit status for problems that were already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	a := &app{
		fs:     afero.NewOsFs(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		now:    time.Now,
	}
	os.Exit(a.run(os.Args[1:]))
}

// run executes the command line and returns the process exit code.
func (a *app) run(args []string) int {
	root := a.newRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err == nil {
		return 0
	}
	if e, ok := err.(*exitError); ok {
		return e.code
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return 2
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quill",
		Short:         "Run and tend Quill dialogue scripts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configFlag, "config", "", "Path to quill.yaml (default: $"+config.EnvConfig+" or ./"+config.FileName+")")
	root.PersistentFlags().StringVar(&a.logLevelFlag, "log-level", "", "Diagnostic log level: debug, info, warn, error")

	root.AddCommand(
		a.newRunCmd(),
		a.newPlayCmd(),
		a.newCheckCmd(),
		a.newTokensCmd(),
		a.newASTCmd(),
		a.newFmtCmd(),
		a.newTranscriptCmd(),
	)
	return root
}

// setup loads the configuration and builds the diagnostic logger.
func (a *app) setup() error {
	cfg, path, err := config.LoadWithPath(a.fs, a.configFlag, a.getenv)
	if err != nil {
		return err
	}
	if a.logLevelFlag != "" {
		cfg.Logging.Level = a.logLevelFlag
	}

	logger, err := newLogger(cfg.Logging, a.stderr)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.cfgPath = path
	a.logger = logger
	if path != "" {
		logger.Debug("loaded config", zap.String("path", path))
	}
	return nil
}

// compileOptions applies the lexer settings from the config.
func (a *app) compileOptions() []quill.CompileOption {
	return []quill.CompileOption{
		quill.WithIndentSize(a.cfg.Lexer.IndentSize),
		quill.WithCallables(a.cfg.Lexer.Callables...),
	}
}

func (a *app) loader() *quill.Loader {
	return &quill.Loader{Fs: a.fs, Options: a.compileOptions()}
}

func (a *app) playerOptions() player.Options {
	return player.Options{
		Prompt:            a.cfg.Player.Prompt,
		TitleCaseSpeakers: a.cfg.Player.TitleCaseSpeakers,
		NarratorLabel:     a.cfg.Player.NarratorLabel,
		ShowEvents:        a.cfg.Player.ShowEvents,
		Locale:            a.cfg.Transcript.Locale,
		ErrorOutput:       a.stderr,
	}
}
