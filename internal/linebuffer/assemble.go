// internal/linebuffer/assemble.go
package linebuffer

import (
	"strings"
	"time"
)

// Result reports what one Assemble call did
type Result struct {
	// AddedCharCount is the net change of the buffer's CharCount
	AddedCharCount int
	// Overflow is an incomplete escape sequence to prepend to the next batch
	Overflow string
}

// Assemble folds a batch of fragments into buf. Fragment boundaries carry no
// meaning; the batch is handled as one string. The cursor fields of buf are
// updated in place.
func Assemble(messages []string, buf *Buffer, separator string) Result {
	if separator == "" {
		separator = DefaultSeparator
	}
	before := buf.CharCount
	text := strings.Join(messages, "")
	if buf.PendingReturns > 0 {
		text = strings.Repeat("\r", buf.PendingReturns) + text
		buf.PendingReturns = 0
	}
	a := assembler{buf: buf, sep: separator, now: time.Now()}
	overflow := a.process(text, true)
	return Result{
		AddedCharCount: buf.CharCount - before,
		Overflow:       overflow,
	}
}

type assembler struct {
	buf *Buffer
	sep string
	now time.Time
}

// process handles one string. Only the tail of a batch may hold back an
// unterminated escape sequence or a final carriage return.
func (a *assembler) process(s string, tail bool) string {
	if s == "" {
		return ""
	}
	for _, action := range escapeActions {
		i := strings.Index(s, action.sequence)
		if i < 0 {
			continue
		}
		if action.keepPrefix {
			a.process(s[:i], false)
		}
		action.apply(a.buf, a.now)
		return a.process(s[i+len(action.sequence):], tail)
	}

	if !tail {
		a.writeText(s)
		return ""
	}

	rest := ""
	if i := pendingEscape(s); i >= 0 {
		s, rest = s[:i], s[i:]
	}
	if a.sep != "\r" {
		trimmed := strings.TrimRight(s, "\r")
		a.buf.PendingReturns = len(s) - len(trimmed)
		s = trimmed
	}
	a.writeText(s)
	return rest
}

// writeText splits text on the separator and writes each chunk, putting the
// separator back between chunks with the same overwrite primitive.
func (a *assembler) writeText(text string) {
	if text == "" {
		return
	}
	chunks := strings.Split(text, a.sep)
	for i, chunk := range chunks {
		a.writeChunk(chunk)
		if i < len(chunks)-1 {
			a.buf.overwrite(a.sep, a.sep, a.now)
			a.buf.advance(a.now)
		}
	}
}

// writeChunk writes text that holds no separator. A carriage return followed
// by more text rewinds the cursor to the start of the line; one right before
// the separator is kept as part of the line ending.
func (a *assembler) writeChunk(chunk string) {
	parts := strings.Split(chunk, "\r")
	for i, part := range parts {
		if i > 0 {
			if part == "" && i == len(parts)-1 {
				a.buf.overwrite("\r", a.sep, a.now)
				return
			}
			a.buf.ensureLine(a.now)
			if a.buf.atLineBreak(a.sep) {
				a.buf.advance(a.now)
			}
			a.buf.CursorPos = 0
		}
		a.buf.overwrite(part, a.sep, a.now)
	}
}
