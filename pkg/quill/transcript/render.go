package transcript

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"|", `\|`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// hardBreaks escapes each line and joins them with Markdown hard breaks.
func hardBreaks(text string, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + escapeMarkdown(line)
	}
	return strings.Join(lines, "\\\n")
}

// Markdown renders the transcript. Speakers become bold labels, narrator
// lines block quotes (or labelled paragraphs when a narrator label is set),
// and print output inline code.
func (t *Transcript) Markdown() string {
	var b strings.Builder

	if t.opts.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(t.opts.Title))
	}
	if !t.opts.Date.IsZero() {
		fmt.Fprintf(&b, "*%s*\n\n", FormatDate(t.opts.Date, t.opts.Locale))
	}

	for _, e := range t.entries {
		switch e.Kind {
		case EntryDialogue:
			switch {
			case e.Speaker != "":
				fmt.Fprintf(&b, "**%s:** %s\n\n", escapeMarkdown(t.DisplayName(e.Speaker)), hardBreaks(e.Text, ""))
			case t.opts.NarratorLabel != "":
				fmt.Fprintf(&b, "*%s:* %s\n\n", escapeMarkdown(t.opts.NarratorLabel), hardBreaks(e.Text, ""))
			default:
				fmt.Fprintf(&b, "%s\n\n", hardBreaks(e.Text, "> "))
			}
		case EntryPrint:
			if e.Text == "" {
				continue
			}
			lq, rq := "`", "`"
			if strings.Contains(e.Text, "`") {
				lq, rq = "`` ", " ``"
			}
			fmt.Fprintf(&b, "%s%s%s\n\n", lq, e.Text, rq)
		case EntryError:
			fmt.Fprintf(&b, "**Error:** %s\n\n", escapeMarkdown(e.Text))
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// HTML renders the Markdown transcript to an HTML fragment.
func (t *Transcript) HTML() (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(t.Markdown()), &buf); err != nil {
		return "", errors.Wrap(err, "rendering transcript")
	}
	return buf.String(), nil
}

// Document wraps the HTML fragment in a standalone page.
func (t *Transcript) Document() (string, error) {
	body, err := t.HTML()
	if err != nil {
		return "", err
	}
	lang := languageTag(t.opts.Locale).String()
	return fmt.Sprintf("<!DOCTYPE html>\n<html lang=\"%s\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		stdhtml.EscapeString(lang), stdhtml.EscapeString(t.opts.Title), body), nil
}

// Render produces the transcript in format: "markdown" or "html".
func (t *Transcript) Render(format string) ([]byte, error) {
	switch format {
	case FormatMarkdown, "":
		return []byte(t.Markdown()), nil
	case FormatHTML:
		doc, err := t.Document()
		if err != nil {
			return nil, err
		}
		return []byte(doc), nil
	}
	return nil, errors.Errorf("unknown transcript format %q", format)
}
