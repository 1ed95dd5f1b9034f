package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sambeau/quill/pkg/quill/interpreter"
	"github.com/sambeau/quill/pkg/quill/quill"
)

const scene = `_ "It was late."
kacey "Hi *there*"
print "score" 3
mr_smith p"""Line one
Line two"""
`

// autoplay runs src to completion with the given listeners attached.
func autoplay(t *testing.T, src string, attach ...func(*interpreter.Interpreter)) *interpreter.Interpreter {
	t.Helper()
	program, err := quill.Compile(src)
	require.NoError(t, err)

	in := interpreter.New(program)
	for _, a := range attach {
		a(in)
	}
	in.On(interpreter.EventPause, func(interpreter.Event) { _ = in.Resume() })
	_ = in.Execute()
	return in
}

func TestMarkdown(t *testing.T) {
	tr := New(Options{Title: "Scene One", Locale: "en_US", TitleCaseSpeakers: true})
	autoplay(t, scene, tr.Attach)

	want := "# Scene One\n\n" +
		"> It was late.\n\n" +
		"**Kacey:** Hi \\*there\\*\n\n" +
		"`score 3`\n\n" +
		"**Mr Smith:** Line one\\\nLine two\n"
	if diff := cmp.Diff(want, tr.Markdown()); diff != "" {
		t.Errorf("markdown (-want +got):\n%s", diff)
	}
	assert.True(t, tr.Ended())
	assert.Len(t, tr.Entries(), 4)
}

func TestMarkdownNarratorLabelAndRawNames(t *testing.T) {
	tr := New(Options{NarratorLabel: "Narrator"})
	autoplay(t, "_ \"Dusk.\"\nkacey \"Hey\"", tr.Attach)

	assert.Equal(t, "*Narrator:* Dusk.\n\n**kacey:** Hey\n", tr.Markdown())
}

func TestMarkdownDateHeader(t *testing.T) {
	date := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)
	tr := New(Options{Title: "Run", Locale: "en_US", Date: date})

	assert.Equal(t, "# Run\n\n*Saturday, October 17, 2026*\n", tr.Markdown())
}

func TestFormatDate(t *testing.T) {
	date := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		locale string
		want   string
	}{
		{"en_US", "Saturday, October 17, 2026"},
		{"en-GB", "Saturday 17 October 2026"},
		{"de_DE", "Samstag 17 Oktober 2026"},
		{"de_AT", "Samstag 17 Oktober 2026"},
		{"xx", "Saturday, October 17, 2026"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDate(date, tt.locale), tt.locale)
	}
}

func TestErrorEntry(t *testing.T) {
	tr := New(Options{})
	autoplay(t, "kacey \"one\"\nprint missing", tr.Attach)

	entries := tr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, EntryError, entries[1].Kind)
	assert.Equal(t, 2, entries[1].Line)
	assert.Contains(t, tr.Markdown(), "**Error:**")
	assert.False(t, tr.Ended())
}

func TestHTML(t *testing.T) {
	tr := New(Options{Title: "Scene One", Locale: "en_US", TitleCaseSpeakers: true})
	autoplay(t, scene, tr.Attach)

	body, err := tr.HTML()
	require.NoError(t, err)
	assert.Contains(t, body, "<h1>Scene One</h1>")
	assert.Contains(t, body, "<blockquote>\n<p>It was late.</p>\n</blockquote>")
	assert.Contains(t, body, "<strong>Kacey:</strong> Hi *there*")
	assert.Contains(t, body, "<code>score 3</code>")
	assert.Contains(t, body, "Line one<br />\nLine two")

	doc, err := tr.Render(FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `<html lang="en-US">`)
	assert.Contains(t, string(doc), "<title>Scene One</title>")

	_, err = tr.Render("pdf")
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Mr Smith", DisplayName("mr_smith", "en_US", true))
	assert.Equal(t, "mr smith", DisplayName("mr_smith", "en_US", false))
	assert.Equal(t, "Kacey", DisplayName("kacey", "not a locale", true))
}

func TestWriteOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := []byte("# Transcript\n")

	require.NoError(t, WriteOutput(fs, "/out/plain.md", data))
	raw, err := afero.ReadFile(fs, "/out/plain.md")
	require.NoError(t, err)
	assert.Equal(t, data, raw)

	require.NoError(t, WriteOutput(fs, "/out/run.md.gz", data))
	raw, err = afero.ReadFile(fs, "/out/run.md.gz")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte{0x1f, 0x8b}), "expected gzip magic")

	back, err := ReadOutput(fs, "/out/run.md.gz")
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		driver  string
		source  string
		wantErr bool
	}{
		{"sqlite://runs.db", "sqlite", "runs.db", false},
		{"sqlite://:memory:", "sqlite", ":memory:", false},
		{"file:runs.db?cache=shared", "sqlite", "file:runs.db?cache=shared", false},
		{"postgres://u:p@localhost/quill?sslmode=disable", "postgres", "postgres://u:p@localhost/quill?sslmode=disable", false},
		{"mysql://u:p@tcp(localhost:3306)/quill", "mysql", "u:p@tcp(localhost:3306)/quill", false},
		{"mysql://nodatabase", "", "", true},
		{"redis://localhost", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			driver, source, err := ParseDSN(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholders("postgres", 3))
	assert.Equal(t, "?, ?", placeholders("mysql", 2))
}

func TestRecorderWritesEveryEventInOrder(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)
	rec, err := OpenRecorder(ctx, "sqlite://:memory:",
		WithRunID("run-1"),
		WithClock(func() time.Time { return clock }),
	)
	require.NoError(t, err)
	defer rec.Close()

	var emitted []string
	autoplay(t, "==> greet\n    $who\n    kacey \"Hi ${who}\"\ngreet \"ana\"",
		func(in *interpreter.Interpreter) {
			in.OnAny(func(ev interpreter.Event) { emitted = append(emitted, string(ev.Kind())) })
		},
		rec.Attach,
	)
	require.NoError(t, rec.Err())

	rows, err := rec.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, len(emitted))
	assert.Equal(t, len(emitted), rec.Count())

	var kinds []string
	for i, row := range rows {
		assert.Equal(t, "run-1", row.RunID)
		assert.Equal(t, i+1, row.Seq)
		assert.True(t, clock.Equal(row.RecordedAt))
		kinds = append(kinds, row.Kind)
	}
	want := []string{
		"function_definition",
		"function_call_start",
		"dialogue",
		"pause",
		"resume",
		"function_call_end",
		"end",
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}

	var dialogue map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[2].Payload), &dialogue))
	assert.Equal(t, "kacey", dialogue["speaker"])
	assert.Equal(t, "Hi ana", dialogue["text"])
	assert.Equal(t, float64(3), dialogue["line"])

	var start map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[1].Payload), &start))
	assert.Equal(t, []any{`"ana"`}, start["args"])
}

func TestEventPayload(t *testing.T) {
	d := interpreter.NewDictionary()
	d.Pairs.Set("b", interpreter.FromNative(1))
	d.Pairs.Set("a", interpreter.FromNative([]any{"x", nil}))

	data, err := json.Marshal(EventPayload(interpreter.VariableAssignmentEvent{Name: "p", Value: d}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"p","value":{"b":1,"a":["x",null]}}`, string(data))

	data, err = json.Marshal(EventPayload(interpreter.PrintEvent{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"args":[]}`, string(data))

	data, err = json.Marshal(EventPayload(interpreter.DialogueEvent{Text: "narrated"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"speaker":null,"text":"narrated","preserveLinebreaks":false,"line":0,"column":0}`, string(data))
}
