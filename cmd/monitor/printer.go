// cmd/monitor/printer.go
package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"monitor-service/internal/linebuffer"
)

// linePrinter writes each completed line of a view once. The line still
// being written is held back because later output may rewrite it.
type linePrinter struct {
	mu         sync.Mutex
	out        io.Writer
	separator  string
	raw        bool
	timestamps bool

	// printed is the absolute index of the next line to print
	printed int
	resets  int
}

func newLinePrinter(out io.Writer, separator string, raw, timestamps bool) *linePrinter {
	if separator == "" {
		separator = linebuffer.DefaultSeparator
	}
	return &linePrinter{out: out, separator: separator, raw: raw, timestamps: timestamps}
}

// Print writes the lines of buf completed since the previous call
func (p *linePrinter) Print(buf *linebuffer.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if buf.Resets != p.resets {
		p.resets = buf.Resets
		p.printed = buf.Evicted
	}
	// lines evicted before they completed are gone
	p.printed = max(p.printed, buf.Evicted)

	for i := p.printed - buf.Evicted; i < len(buf.Lines); i++ {
		line := buf.Lines[i]
		if !strings.HasSuffix(line.Message, p.separator) {
			break
		}

		text := strings.TrimSuffix(line.Message, p.separator)
		text = strings.TrimSuffix(text, "\r")
		if !p.raw {
			text = stripansi.Strip(text)
		}
		if p.timestamps {
			text = line.Timestamp.Format("15:04:05.000") + "  " + text
		}
		if _, err := fmt.Fprintln(p.out, text); err != nil {
			return err
		}
		p.printed++
	}
	return nil
}
