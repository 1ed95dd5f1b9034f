package interpreter

import (
	"github.com/sambeau/quill/pkg/quill/ast"
	qerrors "github.com/sambeau/quill/pkg/quill/errors"
)

// EventKind names an interpreter event.
type EventKind string

const (
	EventDialogue           EventKind = "dialogue"
	EventPrint              EventKind = "print"
	EventVariableAssignment EventKind = "variableAssignment"
	EventFunctionDefinition EventKind = "functionDefinition"
	EventFunctionCallStart  EventKind = "functionCallStart"
	EventFunctionCallEnd    EventKind = "functionCallEnd"
	EventPause              EventKind = "pause"
	EventResume             EventKind = "resume"
	EventError              EventKind = "error"
	EventEnd                EventKind = "end"
)

// Event is a snapshot of something the interpreter did. Events are values;
// listeners may keep them after the interpreter has moved on.
type Event interface {
	Kind() EventKind
}

// DialogueEvent is emitted for every dialogue line, just before the pause.
type DialogueEvent struct {
	Speaker            *ast.Identifier // nil for the narrator
	Text               string
	PreserveLinebreaks bool
	Location           ast.Location
}

func (DialogueEvent) Kind() EventKind { return EventDialogue }

// SpeakerName returns the speaker's name, or "" for the narrator.
func (e DialogueEvent) SpeakerName() string {
	if e.Speaker == nil {
		return ""
	}
	return e.Speaker.Value
}

type PrintEvent struct {
	Args []Object
}

func (PrintEvent) Kind() EventKind { return EventPrint }

type VariableAssignmentEvent struct {
	Name  string
	Value Object
}

func (VariableAssignmentEvent) Kind() EventKind { return EventVariableAssignment }

type FunctionDefinitionEvent struct {
	Name string
}

func (FunctionDefinitionEvent) Kind() EventKind { return EventFunctionDefinition }

// FunctionCallStartEvent carries the unevaluated argument nodes.
type FunctionCallStartEvent struct {
	Name string
	Args []ast.Expression
}

func (FunctionCallStartEvent) Kind() EventKind { return EventFunctionCallStart }

// FunctionCallEndEvent fires when a builtin returns, or when the run loop
// finishes a user function body, which may be after several pauses.
type FunctionCallEndEvent struct {
	Name string
}

func (FunctionCallEndEvent) Kind() EventKind { return EventFunctionCallEnd }

type PauseEvent struct {
	Reason string
}

func (PauseEvent) Kind() EventKind { return EventPause }

type ResumeEvent struct{}

func (ResumeEvent) Kind() EventKind { return EventResume }

type ErrorEvent struct {
	Err *qerrors.QuillError
}

func (ErrorEvent) Kind() EventKind { return EventError }

type EndEvent struct{}

func (EndEvent) Kind() EventKind { return EventEnd }
