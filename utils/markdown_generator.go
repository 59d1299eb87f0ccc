package utils

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/quick"
)

const (
	diffAdded   = "\x1b[92m"
	diffRemoved = "\x1b[91m"
	colorReset  = "\x1b[0m"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// MarkdownStreamer paints streamed answer text line by line. Fragments are
// buffered until a newline arrives, so a line split across fragments is
// highlighted once, with the language of the code block it sits in.
type MarkdownStreamer struct {
	out         io.Writer
	theme       string
	pending     strings.Builder
	inCodeBlock bool
	language    string
}

func NewMarkdownStreamer(out io.Writer, theme string) *MarkdownStreamer {
	return &MarkdownStreamer{out: out, theme: theme}
}

// Write accepts the next fragment of the answer.
func (m *MarkdownStreamer) Write(fragment string) error {
	for {
		i := strings.IndexByte(fragment, '\n')
		if i < 0 {
			m.pending.WriteString(fragment)
			return nil
		}
		m.pending.WriteString(fragment[:i])
		fragment = fragment[i+1:]

		line := m.pending.String()
		m.pending.Reset()
		if err := m.renderLine(line + "\n"); err != nil {
			return err
		}
	}
}

// Flush paints whatever is left of an unterminated last line and resets the
// code block state for the next answer.
func (m *MarkdownStreamer) Flush() error {
	defer func() {
		m.inCodeBlock = false
		m.language = ""
	}()
	if m.pending.Len() == 0 {
		return nil
	}
	line := m.pending.String()
	m.pending.Reset()
	return m.renderLine(line + "\n")
}

func (m *MarkdownStreamer) renderLine(line string) error {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, "```") {
		if m.inCodeBlock {
			m.inCodeBlock = false
			m.language = ""
		} else {
			m.inCodeBlock = true
			m.language = DetectLanguageFromCodeBlock(trimmed)
		}
		return m.highlight(line, "markdown")
	}

	if m.inCodeBlock {
		// Suggested changes come back as diffs.
		if strings.HasPrefix(line, "+") {
			_, err := fmt.Fprint(m.out, diffAdded+line[:len(line)-1]+colorReset+"\n")
			return err
		}
		if strings.HasPrefix(line, "-") {
			_, err := fmt.Fprint(m.out, diffRemoved+line[:len(line)-1]+colorReset+"\n")
			return err
		}
		return m.highlight(line, m.language)
	}
	return m.highlight(line, "markdown")
}

func (m *MarkdownStreamer) highlight(text, language string) error {
	return highlightTo(m.out, text, language, m.theme)
}

// DetectLanguageFromCodeBlock returns the language named on a ``` fence line.
func DetectLanguageFromCodeBlock(fence string) string {
	language := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(fence), "```"))
	if i := strings.IndexAny(language, " {"); i >= 0 {
		language = language[:i]
	}
	if language == "" {
		return "plaintext"
	}
	return strings.ToLower(language)
}

// RenderFile paints a whole source file with line numbers.
func RenderFile(out io.Writer, content, language, path, theme string) error {
	if language == "" || lexers.Get(language) == nil {
		if lexer := lexers.Match(path); lexer != nil {
			language = lexer.Config().Name
		}
	}

	var buf bytes.Buffer
	if err := highlightTo(&buf, content, language, theme); err != nil {
		return err
	}

	lines := strings.Split(buf.String(), "\n")
	// The formatter may leave a trailing reset after the final newline.
	if last := len(lines) - 1; last > 0 && strings.TrimSpace(ansiEscape.ReplaceAllString(lines[last], "")) == "" {
		lines[last-1] += lines[last]
		lines = lines[:last]
	}
	width := len(fmt.Sprint(len(lines)))
	for i, line := range lines {
		if _, err := fmt.Fprintf(out, "%s%*d%s  %s\n", "\x1b[90m", width, i+1, colorReset, line); err != nil {
			return err
		}
	}
	return nil
}

// highlightTo falls back to plain text when chroma cannot paint the input.
func highlightTo(out io.Writer, text, language, theme string) error {
	if language == "" || lexers.Get(language) == nil {
		language = "plaintext"
	}
	if err := quick.Highlight(out, text, language, "terminal256", theme); err != nil {
		_, werr := io.WriteString(out, text)
		return werr
	}
	return nil
}
