// internal/linebuffer/view.go
package linebuffer

import (
	"sync"

	"github.com/acarl005/stripansi"
)

// View owns the buffer of one open monitor view. Apply is the only writer;
// readers get deep copies so a half-applied batch is never observed.
type View struct {
	mu        sync.RWMutex
	buf       *Buffer
	overflow  string
	separator string
	maxChars  int
}

// NewView creates a view. Zero values select the defaults.
func NewView(separator string, maxChars int) *View {
	if separator == "" {
		separator = DefaultSeparator
	}
	if maxChars == 0 {
		maxChars = DefaultMaxChars
	}
	if maxChars < 0 {
		panic("linebuffer: negative character budget")
	}
	return &View{
		buf:       NewBuffer(),
		separator: separator,
		maxChars:  maxChars,
	}
}

// Apply appends one batch of fragments, carrying any held-back escape
// sequence from the previous batch, and enforces the character budget.
func (v *View) Apply(messages []string) Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.overflow != "" {
		messages = append([]string{v.overflow}, messages...)
	}
	res := Assemble(messages, v.buf, v.separator)
	v.overflow = res.Overflow
	Truncate(v.buf, v.maxChars)
	return res
}

// Snapshot returns a deep copy of the current buffer
func (v *View) Snapshot() *Buffer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.buf.Clone()
}

// PlainLines returns the line texts with any remaining ANSI sequences removed
func (v *View) PlainLines() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, len(v.buf.Lines))
	for i, l := range v.buf.Lines {
		out[i] = stripansi.Strip(l.Message)
	}
	return out
}

// Clear drops all content and any held-back sequence
func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	resets := v.buf.Resets + 1
	v.buf = NewBuffer()
	v.buf.Resets = resets
	v.overflow = ""
}
