// Package player hosts a running script on a terminal: dialogue lines are
// printed as they arrive and the run waits for Enter at every pause.
package player

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	qerrors "github.com/sambeau/quill/pkg/quill/errors"
	"github.com/sambeau/quill/pkg/quill/interpreter"
	"github.com/sambeau/quill/pkg/quill/transcript"
)

const DefaultPrompt = "> "

// Options control how dialogue is displayed.
type Options struct {
	Prompt            string
	TitleCaseSpeakers bool
	NarratorLabel     string
	ShowEvents        bool
	Locale            string
	HistoryFile       string    // defaults to a file in the temp dir
	ErrorOutput       io.Writer // runtime errors; defaults to the dialogue writer
}

// Printer writes dialogue, print output and errors to a writer.
type Printer struct {
	out  io.Writer
	opts Options
}

func NewPrinter(out io.Writer, opts Options) *Printer {
	return &Printer{out: out, opts: opts}
}

// Attach subscribes the printer to in.
func (p *Printer) Attach(in *interpreter.Interpreter) {
	in.OnDialogue(func(ev interpreter.DialogueEvent) {
		io.WriteString(p.out, p.FormatDialogue(ev)+"\n")
	})
	in.OnPrint(func(ev interpreter.PrintEvent) {
		parts := make([]string, len(ev.Args))
		for i, arg := range ev.Args {
			parts[i] = interpreter.Stringify(arg)
		}
		io.WriteString(p.out, strings.Join(parts, " ")+"\n")
	})
	in.OnError(func(err *qerrors.QuillError) {
		w := p.opts.ErrorOutput
		if w == nil {
			w = p.out
		}
		io.WriteString(w, err.PrettyString()+"\n")
	})
	if p.opts.ShowEvents {
		in.OnAny(p.trace)
	}
}

// FormatDialogue renders "Speaker: text". Continuation lines of preserved
// text are indented by 2 spaces.
func (p *Printer) FormatDialogue(ev interpreter.DialogueEvent) string {
	text := ev.Text
	if strings.Contains(text, "\n") {
		lines := strings.Split(text, "\n")
		for i := 1; i < len(lines); i++ {
			lines[i] = "  " + lines[i]
		}
		text = strings.Join(lines, "\n")
	}

	switch {
	case ev.Speaker != nil:
		return transcript.DisplayName(ev.SpeakerName(), p.opts.Locale, p.opts.TitleCaseSpeakers) + ": " + text
	case p.opts.NarratorLabel != "":
		return p.opts.NarratorLabel + ": " + text
	}
	return text
}

func (p *Printer) trace(ev interpreter.Event) {
	var detail string
	switch e := ev.(type) {
	case interpreter.VariableAssignmentEvent:
		detail = e.Name + " = " + e.Value.Inspect()
	case interpreter.FunctionDefinitionEvent:
		detail = e.Name
	case interpreter.FunctionCallStartEvent:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = a.String()
		}
		detail = strings.TrimSpace(e.Name + " " + strings.Join(args, " "))
	case interpreter.FunctionCallEndEvent:
		detail = e.Name
	case interpreter.PauseEvent:
		detail = e.Reason
	case interpreter.DialogueEvent, interpreter.PrintEvent, interpreter.ErrorEvent:
		return
	}
	if detail == "" {
		fmt.Fprintf(p.out, "[%s]\n", ev.Kind())
		return
	}
	fmt.Fprintf(p.out, "[%s] %s\n", ev.Kind(), detail)
}

// Autoplay runs in to completion, resuming at every pause, and returns the
// runtime error, if any.
func Autoplay(in *interpreter.Interpreter) error {
	in.On(interpreter.EventPause, func(interpreter.Event) {
		_ = in.Resume()
	})
	return in.Execute()
}

// Prompter reads one line of input.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// Play runs in interactively on the terminal with line editing and history.
func Play(in *interpreter.Interpreter, out io.Writer, opts Options) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string {
		return filterCompletions(input, completionWords(in))
	})

	historyFile := opts.HistoryFile
	if historyFile == "" {
		historyFile = filepath.Join(os.TempDir(), ".quill_history")
	}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	return Run(in, &historyPrompter{line: line}, out, opts)
}

type historyPrompter struct {
	line *liner.State
}

func (h *historyPrompter) Prompt(prompt string) (string, error) {
	input, err := h.line.Prompt(prompt)
	if err == nil && strings.HasPrefix(strings.TrimSpace(input), ":") {
		h.line.AppendHistory(input)
	}
	return input, err
}

// Run drives in from prompter: Enter resumes, ":"-commands inspect the run.
// It returns when the run ends, fails, or the user quits.
func Run(in *interpreter.Interpreter, prompter Prompter, out io.Writer, opts Options) error {
	prompt := opts.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	NewPrinter(out, opts).Attach(in)
	if err := in.Execute(); err != nil {
		return err
	}

	for in.State() == interpreter.StatePaused {
		input, err := prompter.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			return err
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			if err := in.Resume(); err != nil {
				return err
			}
			continue
		}
		if quit := handleCommand(trimmed, in, out); quit {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
	}
	return in.Err()
}

// handleCommand handles player meta-commands. It reports whether the user
// asked to quit.
func handleCommand(cmd string, in *interpreter.Interpreter, out io.Writer) bool {
	switch cmd {
	case ":q", ":quit", "exit", "quit":
		return true

	case ":help", ":h", ":?":
		fmt.Fprintln(out, "Player Commands:")
		fmt.Fprintln(out, "  Enter           Continue to the next line")
		fmt.Fprintln(out, "  :vars           Show variables in the current scope")
		fmt.Fprintln(out, "  :state          Show interpreter state and call depth")
		fmt.Fprintln(out, "  :q, :quit       Stop playing")

	case ":vars":
		printScope(in.CurrentScope(), out)

	case ":state":
		fmt.Fprintf(out, "state: %s, depth: %d\n", in.State(), in.Depth())

	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}

// printScope displays every variable visible from scope.
func printScope(scope *interpreter.Scope, out io.Writer) {
	names := scope.AllIdentifiers()
	if len(names) == 0 {
		fmt.Fprintln(out, "(no variables)")
		return
	}

	for _, name := range names {
		obj, _ := scope.Lookup(name)
		value := obj.Inspect()
		if runes := []rune(value); len(runes) > 60 {
			value = string(runes[:57]) + "..."
		}
		fmt.Fprintf(out, "  %s: %s = %s\n", name, obj.Type(), value)
	}
}

var commandWords = []string{":help", ":vars", ":state", ":quit"}

func completionWords(in *interpreter.Interpreter) []string {
	words := append([]string{}, commandWords...)
	words = append(words, in.BuiltinNames()...)
	return append(words, in.CurrentScope().AllIdentifiers()...)
}

// filterCompletions returns the words starting with the last word of line.
func filterCompletions(line string, words []string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if last := line[len(line)-1]; last == ' ' || last == '\t' {
		return nil
	}

	fields := strings.Fields(line)
	lastWord := fields[len(fields)-1]
	prefix := line[:len(line)-len(lastWord)]

	var matches []string
	for _, word := range words {
		if strings.HasPrefix(word, lastWord) {
			matches = append(matches, prefix+word)
		}
	}
	return matches
}
