// internal/linebuffer/escape.go
package linebuffer

import (
	"strings"
	"time"
)

const (
	escape      = "\x1b"
	cursorHome  = "\x1b[H"
	clearScreen = "\x1b[2J"

	// maxOverflow bounds how much text may be held back waiting for the rest
	// of an escape sequence.
	maxOverflow = 32
)

// escapeAction is a recognised control sequence. Actions are checked in
// order against the whole batch.
type escapeAction struct {
	sequence string
	// keepPrefix processes the text before the sequence instead of dropping it
	keepPrefix bool
	apply      func(b *Buffer, now time.Time)
}

var escapeActions = []escapeAction{
	{
		sequence:   cursorHome,
		keepPrefix: true,
		apply:      func(b *Buffer, now time.Time) { b.reset(true, now) },
	},
	{
		sequence:   clearScreen,
		keepPrefix: false,
		apply:      func(b *Buffer, now time.Time) { b.reset(false, now) },
	},
}

// pendingEscape returns the index where an unterminated escape sequence
// starts at the end of s, or -1.
func pendingEscape(s string) int {
	i := strings.LastIndex(s, escape)
	if i < 0 || len(s)-i > maxOverflow {
		return -1
	}
	tail := s[i:]
	for _, a := range escapeActions {
		if len(tail) < len(a.sequence) && strings.HasPrefix(a.sequence, tail) {
			return i
		}
	}
	if unterminatedCSI(tail) {
		return i
	}
	return -1
}

// unterminatedCSI reports whether seq is ESC, ESC[ or a control sequence
// still missing its final byte.
func unterminatedCSI(seq string) bool {
	if seq == escape {
		return true
	}
	if !strings.HasPrefix(seq, escape+"[") {
		return false
	}
	for _, c := range []byte(seq[2:]) {
		// parameter and intermediate bytes
		if c < 0x20 || c > 0x3f {
			return false
		}
	}
	return true
}
