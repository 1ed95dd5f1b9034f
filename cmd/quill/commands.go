package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	qerrors "github.com/sambeau/quill/pkg/quill/errors"
	"github.com/sambeau/quill/pkg/quill/lexer"
	"github.com/sambeau/quill/pkg/quill/player"
	"github.com/sambeau/quill/pkg/quill/quill"
	"github.com/sambeau/quill/pkg/quill/transcript"
	"github.com/sambeau/quill/pkg/quill/watch"
)

// load compiles path, reporting compile errors with source context.
func (a *app) load(path string) (*quill.Script, error) {
	script, err := a.loader().Load(path)
	if err != nil {
		source, _ := afero.ReadFile(a.fs, path)
		reportError(a.stderr, err, string(source))
		return nil, &exitError{code: 1}
	}
	return script, nil
}

// runtimeFailure adds source context to a runtime error the printer has
// already written.
func (a *app) runtimeFailure(script *quill.Script, err error) error {
	if qerr, ok := err.(*qerrors.QuillError); ok && qerr.Line > 0 {
		printSourceContext(a.stderr, strings.Split(script.Source, "\n"), qerr.Line, qerr.Column)
	}
	return &exitError{code: 1}
}

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Play a script to the end without stopping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := a.load(args[0])
			if err != nil {
				return err
			}

			in := quill.NewInterpreter(script.Program, a.logger)
			player.NewPrinter(a.stdout, a.playerOptions()).Attach(in)
			if err := player.Autoplay(in); err != nil {
				return a.runtimeFailure(script, err)
			}
			return nil
		},
	}
}

func (a *app) newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <file>",
		Short: "Play a script interactively, one line per Enter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := a.load(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Playing %s. Press Enter to continue, :help for commands.\n", filepath.Base(script.Path))
			in := quill.NewInterpreter(script.Program, a.logger)
			if err := player.Play(in, a.stdout, a.playerOptions()); err != nil {
				return a.runtimeFailure(script, err)
			}
			return nil
		},
	}
}

func (a *app) newCheckCmd() *cobra.Command {
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Check scripts for syntax errors",
		Long:  "Check compiles every script named, or every .quill file under a named directory.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := a.expandPaths(args)
			if err != nil {
				return err
			}

			if !watchFlag {
				failed, err := a.checkPaths(cmd.Context(), paths)
				if err != nil {
					return err
				}
				if failed > 0 {
					return &exitError{code: 1}
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.watchPaths(ctx, args, paths)
		},
	}
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Re-check scripts whenever they change")
	return cmd
}

// expandPaths replaces directories with the scripts they contain.
func (a *app) expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		isDir, err := afero.IsDir(a.fs, arg)
		if err != nil || !isDir {
			paths = append(paths, arg)
			continue
		}
		found, err := quill.FindScripts(a.fs, arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// checkPaths reports every failing script and returns how many failed.
func (a *app) checkPaths(ctx context.Context, paths []string) (int, error) {
	failures, err := quill.CheckFiles(ctx, a.fs, paths, a.compileOptions()...)
	if err != nil {
		return 0, err
	}

	for _, failure := range failures {
		source, _ := afero.ReadFile(a.fs, failure.File)
		reportError(a.stderr, failure, string(source))
	}

	a.logger.Info("checked scripts", zap.Int("files", len(paths)), zap.Int("failed", len(failures)))
	if len(failures) == 0 {
		fmt.Fprintf(a.stdout, "ok: %d %s\n", len(paths), plural(len(paths), "file", "files"))
	}
	return len(failures), nil
}

// watchPaths checks once, then re-checks changed scripts until ctx is done.
func (a *app) watchPaths(ctx context.Context, roots, paths []string) error {
	if _, err := a.checkPaths(ctx, paths); err != nil {
		return err
	}

	onChange := func(ctx context.Context, changed []string) {
		if _, err := a.checkPaths(ctx, changed); err != nil && ctx.Err() == nil {
			reportError(a.stderr, err, "")
		}
	}
	w, err := watch.New(roots, a.cfgPath, onChange, quill.WriterLogger(a.stderr))
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Watching for changes. Press Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}

func (a *app) newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <file>",
		Short: "Print the token stream of a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := afero.ReadFile(a.fs, args[0])
			if err != nil {
				return err
			}

			tokens, err := lexer.Tokenize(string(data),
				lexer.WithIndentSize(a.cfg.Lexer.IndentSize),
				lexer.WithFilename(args[0]),
			)
			if err != nil {
				reportError(a.stderr, err, string(data))
				return &exitError{code: 1}
			}

			for _, tok := range tokens {
				fmt.Fprintf(a.stdout, "%d:%d\t%s\t%s\n", tok.Line, tok.Column, tok.Type, strconv.Quote(tok.Literal))
			}
			return nil
		},
	}
}

func (a *app) newASTCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ast <file>",
		Short: "Print the syntax tree of a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := a.load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, script.Program.String())
			return nil
		},
	}
}

func (a *app) newFmtCmd() *cobra.Command {
	var writeFlag, listFlag bool

	cmd := &cobra.Command{
		Use:   "fmt <file>...",
		Short: "Format scripts",
		Example: `  quill fmt scene.quill        Print formatted output to stdout
  quill fmt -w scene.quill     Format file in place
  quill fmt -l scenes/         List files that need formatting`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := a.expandPaths(args)
			if err != nil {
				return err
			}

			failed := false
			for _, path := range paths {
				if err := a.formatFile(path, writeFlag, listFlag); err != nil {
					failed = true
				}
			}
			if failed {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&writeFlag, "write", "w", false, "Write result to source file instead of stdout")
	cmd.Flags().BoolVarP(&listFlag, "list", "l", false, "List files whose formatting differs")
	return cmd
}

func (a *app) formatFile(path string, write, list bool) error {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		reportError(a.stderr, err, "")
		return err
	}

	opts := append(a.compileOptions(), quill.WithFilename(path))
	formatted, err := quill.Format(string(data), opts...)
	if err != nil {
		reportError(a.stderr, err, string(data))
		return err
	}

	changed := formatted != string(data)
	if list {
		if changed {
			fmt.Fprintln(a.stdout, path)
		}
		return nil
	}
	if write {
		if !changed {
			return nil
		}
		info, err := a.fs.Stat(path)
		if err == nil {
			err = afero.WriteFile(a.fs, path, []byte(formatted), info.Mode())
		}
		if err != nil {
			reportError(a.stderr, err, "")
		}
		return err
	}

	fmt.Fprint(a.stdout, formatted)
	return nil
}

func (a *app) newTranscriptCmd() *cobra.Command {
	var (
		htmlFlag   bool
		outputFlag string
		recordFlag string
		titleFlag  string
	)

	cmd := &cobra.Command{
		Use:   "transcript <file>",
		Short: "Play a script and write a Markdown or HTML transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := a.load(args[0])
			if err != nil {
				return err
			}

			tc := a.cfg.Transcript
			title := firstNonEmpty(titleFlag, tc.Title, strings.TrimSuffix(filepath.Base(script.Path), quill.Extension))
			format := tc.Format
			if htmlFlag {
				format = transcript.FormatHTML
			}
			output := firstNonEmpty(outputFlag, tc.Output)
			dsn := firstNonEmpty(recordFlag, tc.Record)

			in := quill.NewInterpreter(script.Program, a.logger)
			t := transcript.New(transcript.Options{
				Title:             title,
				Locale:            tc.Locale,
				TitleCaseSpeakers: a.cfg.Player.TitleCaseSpeakers,
				NarratorLabel:     a.cfg.Player.NarratorLabel,
				Date:              a.now(),
			})
			t.Attach(in)

			var rec *transcript.Recorder
			if dsn != "" {
				rec, err = transcript.OpenRecorder(cmd.Context(), dsn, transcript.WithRecorderLogger(a.logger))
				if err != nil {
					return err
				}
				rec.Attach(in)
				a.logger.Info("recording events", zap.String("run_id", rec.RunID()))
			}

			runErr := player.Autoplay(in)
			if runErr != nil {
				reportError(a.stderr, runErr, script.Source)
			}

			var recErr error
			if rec != nil {
				recErr = rec.Err()
				if err := rec.Close(); err != nil && recErr == nil {
					recErr = errors.Wrap(err, "closing event recorder")
				}
				if recErr != nil {
					reportError(a.stderr, recErr, "")
				}
			}

			data, err := t.Render(format)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = a.stdout.Write(data)
			} else {
				err = transcript.WriteOutput(a.fs, output, data)
			}
			if err != nil {
				return err
			}

			if runErr != nil || recErr != nil {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&htmlFlag, "html", false, "Render HTML instead of Markdown")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write to a file; a .gz suffix compresses")
	cmd.Flags().StringVar(&recordFlag, "record", "", "Record every event to a database (sqlite://, postgres://, mysql://)")
	cmd.Flags().StringVar(&titleFlag, "title", "", "Transcript heading (default: script name)")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
