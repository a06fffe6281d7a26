// internal/linebuffer/truncate.go
package linebuffer

import "fmt"

// Truncate evicts the oldest text until buf.CharCount fits budget. Whole
// lines are dropped while they fit inside the excess, then the new oldest
// line is trimmed from the front. The cursor keeps addressing the same
// logical line, so in-flight writes to the newest line are not disturbed.
func Truncate(buf *Buffer, budget int) {
	if budget < 0 {
		panic(fmt.Sprintf("linebuffer: negative budget %d", budget))
	}

	excess := buf.CharCount - budget
	drop := 0
	for excess > 0 && drop < len(buf.Lines) {
		length := buf.Lines[drop].LengthAtLastWrite
		if length > excess {
			break
		}
		excess -= length
		buf.CharCount -= length
		drop++
	}

	if drop > 0 {
		clear(buf.Lines[:drop])
		buf.Lines = buf.Lines[drop:]
		buf.Evicted += drop
		buf.LineIndex -= drop
		if buf.LineIndex < 0 {
			buf.LineIndex = 0
			buf.CursorPos = 0
		}
	}

	if excess <= 0 || len(buf.Lines) == 0 {
		return
	}

	first := &buf.Lines[0]
	runes := []rune(first.Message)
	cut := min(excess, len(runes))
	first.Message = string(runes[cut:])
	newLength := len(runes) - cut
	buf.CharCount -= first.LengthAtLastWrite - newLength
	first.LengthAtLastWrite = newLength
	if buf.LineIndex == 0 {
		buf.CursorPos = max(0, buf.CursorPos-cut)
	}
}
