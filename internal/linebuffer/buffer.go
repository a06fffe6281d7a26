// internal/linebuffer/buffer.go

// Package linebuffer folds a chunked text stream into a bounded sequence of
// display lines.
package linebuffer

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultSeparator splits incoming text into lines
	DefaultSeparator = "\n"
	// DefaultMaxChars is the default character budget of a buffer
	DefaultMaxChars = 1_000_000
)

// Line is one output row. LengthAtLastWrite always equals the rune length of
// Message so truncation never has to recount.
type Line struct {
	Message           string    `json:"message"`
	Timestamp         time.Time `json:"timestamp"`
	LengthAtLastWrite int       `json:"length_at_last_write"`
}

// NewLine builds a line with its length filled in
func NewLine(message string) Line {
	return Line{
		Message:           message,
		Timestamp:         time.Now(),
		LengthAtLastWrite: utf8.RuneCountInString(message),
	}
}

// Buffer is an ordered set of lines plus the write cursor.
// CharCount == sum(LengthAtLastWrite) holds after every Assemble and Truncate.
type Buffer struct {
	Lines     []Line `json:"lines"`
	CharCount int    `json:"char_count"`
	LineIndex int    `json:"line_index"`
	CursorPos int    `json:"cursor_pos"`

	// Evicted counts lines removed by Truncate, Resets counts escape resets.
	// Together they let a reader map Lines to absolute positions.
	Evicted int `json:"evicted"`
	Resets  int `json:"resets"`

	// PendingReturns counts the carriage returns that ended the last batch.
	// The next batch decides whether they close a CRLF or rewind the line.
	PendingReturns int `json:"pending_returns"`
}

// NewBuffer returns an empty buffer
func NewBuffer() *Buffer {
	return &Buffer{}
}

// FromLines builds a buffer whose cursor sits at the end of the last line
func FromLines(lines ...Line) *Buffer {
	b := &Buffer{Lines: lines}
	for _, l := range lines {
		b.CharCount += l.LengthAtLastWrite
	}
	if n := len(lines); n > 0 {
		b.LineIndex = n - 1
		b.CursorPos = utf8.RuneCountInString(lines[n-1].Message)
	}
	return b
}

// Clone deep copies the buffer
func (b *Buffer) Clone() *Buffer {
	out := *b
	out.Lines = append([]Line(nil), b.Lines...)
	return &out
}

// Messages returns the text of every line
func (b *Buffer) Messages() []string {
	out := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		out[i] = l.Message
	}
	return out
}

func (b *Buffer) reset(withLine bool, now time.Time) {
	b.Lines = b.Lines[:0:0]
	if withLine {
		b.Lines = append(b.Lines, Line{Timestamp: now})
	}
	b.CharCount = 0
	b.LineIndex = 0
	b.CursorPos = 0
	b.Resets++
}

func (b *Buffer) ensureLine(now time.Time) {
	if len(b.Lines) == 0 {
		b.Lines = append(b.Lines, Line{Timestamp: now})
		b.LineIndex = 0
		b.CursorPos = 0
	}
}

// atLineBreak reports whether the text right before the cursor ends with sep
func (b *Buffer) atLineBreak(sep string) bool {
	if len(b.Lines) == 0 || b.CursorPos == 0 {
		return false
	}
	runes := []rune(b.Lines[b.LineIndex].Message)
	pos := min(b.CursorPos, len(runes))
	return strings.HasSuffix(string(runes[:pos]), sep)
}

func (b *Buffer) advance(now time.Time) {
	b.LineIndex++
	b.CursorPos = 0
	if b.LineIndex >= len(b.Lines) {
		b.Lines = append(b.Lines, Line{Timestamp: now})
	}
}

// overwrite writes text at the cursor, replacing what is already there
func (b *Buffer) overwrite(text string, sep string, now time.Time) {
	if text == "" {
		return
	}
	b.ensureLine(now)
	if b.atLineBreak(sep) {
		b.advance(now)
	}

	line := &b.Lines[b.LineIndex]
	old := []rune(line.Message)
	ins := []rune(text)
	pos := min(b.CursorPos, len(old))

	out := make([]rune, 0, max(len(old), pos+len(ins)))
	out = append(out, old[:pos]...)
	out = append(out, ins...)
	if end := pos + len(ins); end < len(old) {
		out = append(out, old[end:]...)
	}

	line.Message = string(out)
	b.CharCount += len(out) - line.LengthAtLastWrite
	line.LengthAtLastWrite = len(out)
	b.CursorPos = pos + len(ins)
}
