// Package transcript records what a run said and renders it as Markdown or
// HTML, and optionally stores every event in a SQL database.
package transcript

import (
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sambeau/quill/pkg/quill/interpreter"
)

// EntryKind classifies a transcript line.
type EntryKind string

const (
	EntryDialogue EntryKind = "dialogue"
	EntryPrint    EntryKind = "print"
	EntryError    EntryKind = "error"
)

// Entry is one rendered line of a run.
type Entry struct {
	Kind     EntryKind
	Speaker  string // empty for the narrator and for non-dialogue entries
	Text     string
	Preserve bool
	Line     int
}

// Options control how a transcript is rendered.
type Options struct {
	Title             string
	Locale            string // e.g. "en_US", "fr_FR"; selects the date format and casing rules
	TitleCaseSpeakers bool
	NarratorLabel     string
	Date              time.Time // zero omits the date line
}

// Transcript accumulates entries from an interpreter's event stream.
type Transcript struct {
	opts    Options
	entries []Entry
	ended   bool
}

func New(opts Options) *Transcript {
	return &Transcript{opts: opts}
}

// Attach subscribes the transcript to every event of in.
func (t *Transcript) Attach(in *interpreter.Interpreter) {
	in.OnAny(t.Record)
}

// Record adds the entry for ev, if it produces one.
func (t *Transcript) Record(ev interpreter.Event) {
	switch e := ev.(type) {
	case interpreter.DialogueEvent:
		t.entries = append(t.entries, Entry{
			Kind:     EntryDialogue,
			Speaker:  e.SpeakerName(),
			Text:     e.Text,
			Preserve: e.PreserveLinebreaks,
			Line:     e.Location.Line,
		})
	case interpreter.PrintEvent:
		parts := make([]string, len(e.Args))
		for i, arg := range e.Args {
			parts[i] = interpreter.Stringify(arg)
		}
		t.entries = append(t.entries, Entry{Kind: EntryPrint, Text: strings.Join(parts, " ")})
	case interpreter.ErrorEvent:
		t.entries = append(t.entries, Entry{Kind: EntryError, Text: e.Err.Error(), Line: e.Err.Line})
	case interpreter.EndEvent:
		t.ended = true
	}
}

// Entries returns the recorded entries in order.
func (t *Transcript) Entries() []Entry {
	return t.entries
}

// Ended reports whether the run reached its end.
func (t *Transcript) Ended() bool {
	return t.ended
}

// DisplayName renders a speaker name for the transcript's locale.
func (t *Transcript) DisplayName(speaker string) string {
	return DisplayName(speaker, t.opts.Locale, t.opts.TitleCaseSpeakers)
}

// DisplayName renders speaker for display, title-casing it under the rules
// of locale when titleCase is set. Underscores become spaces.
func DisplayName(speaker, locale string, titleCase bool) string {
	name := strings.ReplaceAll(speaker, "_", " ")
	if !titleCase {
		return name
	}
	return cases.Title(languageTag(locale)).String(name)
}

func languageTag(locale string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.English
	}
	return tag
}

// mondayLocale maps a locale string to a monday.Locale for date formatting.
func mondayLocale(locale string) monday.Locale {
	locale = strings.ToLower(strings.ReplaceAll(locale, "-", "_"))

	localeMap := map[string]monday.Locale{
		"en":    monday.LocaleEnUS,
		"en_us": monday.LocaleEnUS,
		"en_gb": monday.LocaleEnGB,
		"de":    monday.LocaleDeDE,
		"de_de": monday.LocaleDeDE,
		"fr":    monday.LocaleFrFR,
		"fr_fr": monday.LocaleFrFR,
		"fr_ca": monday.LocaleFrCA,
		"es":    monday.LocaleEsES,
		"es_es": monday.LocaleEsES,
		"it":    monday.LocaleItIT,
		"it_it": monday.LocaleItIT,
		"pt":    monday.LocalePtPT,
		"pt_pt": monday.LocalePtPT,
		"pt_br": monday.LocalePtBR,
		"nl":    monday.LocaleNlNL,
		"nl_nl": monday.LocaleNlNL,
		"sv":    monday.LocaleSvSE,
		"sv_se": monday.LocaleSvSE,
		"ja":    monday.LocaleJaJP,
		"ja_jp": monday.LocaleJaJP,
	}

	if loc, ok := localeMap[locale]; ok {
		return loc
	}
	if lang, _, found := strings.Cut(locale, "_"); found {
		if loc, ok := localeMap[lang]; ok {
			return loc
		}
	}
	return monday.LocaleEnUS
}

// dateLayout is the long date format; monday translates the day and month
// names.
func dateLayout(loc monday.Locale) string {
	switch loc {
	case monday.LocaleEnUS:
		return "Monday, January 2, 2006"
	case monday.LocaleJaJP:
		return "2006年1月2日 Monday"
	default:
		return "Monday 2 January 2006"
	}
}

// FormatDate renders d as a long date in locale.
func FormatDate(d time.Time, locale string) string {
	loc := mondayLocale(locale)
	return monday.Format(d, dateLayout(loc), loc)
}
