package linebuffer

import (
	"math/rand"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

func assertLines(t *testing.T, buf *Buffer, want ...string) {
	t.Helper()
	got := buf.Messages()
	if !slices.Equal(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func assertConsistent(t *testing.T, buf *Buffer) {
	t.Helper()
	sum := 0
	for i, l := range buf.Lines {
		if n := utf8.RuneCountInString(l.Message); n != l.LengthAtLastWrite {
			t.Fatalf("line %d %q: length %d, recorded %d", i, l.Message, n, l.LengthAtLastWrite)
		}
		sum += l.LengthAtLastWrite
	}
	if sum != buf.CharCount {
		t.Fatalf("char count %d, sum of lines %d", buf.CharCount, sum)
	}
}

func TestAssemble_ConcatenatesWithoutSeparator(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"Hello"}, buf, "\n")
	res := Assemble([]string{"Dog!"}, buf, "\n")

	assertLines(t, buf, "HelloDog!")
	if buf.Lines[0].LengthAtLastWrite != 9 {
		t.Errorf("length = %d, want 9", buf.Lines[0].LengthAtLastWrite)
	}
	if buf.CharCount != 9 {
		t.Errorf("char count = %d, want 9", buf.CharCount)
	}
	if res.AddedCharCount != 4 {
		t.Errorf("added = %d, want 4", res.AddedCharCount)
	}
}

func TestAssemble_SplitsLines(t *testing.T) {
	buf := NewBuffer()
	res := Assemble([]string{"Hello\n", "Dog!"}, buf, "\n")

	assertLines(t, buf, "Hello\n", "Dog!")
	if buf.Lines[0].LengthAtLastWrite != 6 || buf.Lines[1].LengthAtLastWrite != 4 {
		t.Errorf("lengths = %d, %d, want 6, 4", buf.Lines[0].LengthAtLastWrite, buf.Lines[1].LengthAtLastWrite)
	}
	if buf.CharCount != 10 || res.AddedCharCount != 10 {
		t.Errorf("char count = %d, added = %d, want 10", buf.CharCount, res.AddedCharCount)
	}
}

func TestAssemble_ContinuesAfterTerminatedLine(t *testing.T) {
	buf := FromLines(NewLine("Hello\n"))
	if buf.CharCount != 6 {
		t.Fatalf("char count = %d, want 6", buf.CharCount)
	}

	Assemble([]string{"Dog!"}, buf, "\n")

	assertLines(t, buf, "Hello\n", "Dog!")
	if buf.CharCount != 10 {
		t.Errorf("char count = %d, want 10", buf.CharCount)
	}
}

func TestAssemble_BatchEndingOnSeparator(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"Hello\n"}, buf, "\n")

	assertLines(t, buf, "Hello\n", "")
	if buf.LineIndex != 1 || buf.CursorPos != 0 {
		t.Fatalf("cursor = %d:%d, want 1:0", buf.LineIndex, buf.CursorPos)
	}

	Assemble([]string{"Dog!"}, buf, "\n")
	assertLines(t, buf, "Hello\n", "Dog!")
}

func TestAssemble_RepeatedSeparators(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"a\n\n", "\nb"}, buf, "\n")

	assertLines(t, buf, "a\n", "\n", "\n", "b")
	assertConsistent(t, buf)
}

func TestAssemble_EmptyFragments(t *testing.T) {
	buf := NewBuffer()
	res := Assemble([]string{"", "", ""}, buf, "\n")

	if len(buf.Lines) != 0 || res.AddedCharCount != 0 || res.Overflow != "" {
		t.Fatalf("empty batch changed buffer: %+v %+v", buf, res)
	}

	Assemble([]string{"a", "", "b"}, buf, "\n")
	assertLines(t, buf, "ab")
}

func TestAssemble_CustomSeparator(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"one\r", "\ntwo\r\n"}, buf, "\r\n")

	assertLines(t, buf, "one\r\n", "two\r\n", "")
	assertConsistent(t, buf)
}

func TestAssemble_CarriageReturnRewinds(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "Overwrite", input: []string{"abcdef\rxy"}, want: []string{"xycdef"}},
		{name: "TrailingReturnHeld", input: []string{"abc\r"}, want: []string{"abc"}},
		{name: "CRLF", input: []string{"abc\r\n"}, want: []string{"abc\r\n", ""}},
		{name: "ProgressBar", input: []string{"10%", "\r20%", "\r100%\n"}, want: []string{"100%\n", ""}},
		{name: "AfterLineBreak", input: []string{"ab\n", "\rcd"}, want: []string{"ab\n", "cd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer()
			for _, msg := range tt.input {
				Assemble([]string{msg}, buf, "\n")
			}
			assertLines(t, buf, tt.want...)
			assertConsistent(t, buf)
		})
	}
}

func TestAssemble_ReturnAcrossBatches(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		separator string
		want      []string
	}{
		{name: "Rewind", text: "10%\r20%", separator: "\n", want: []string{"20%"}},
		{name: "CRLF", text: "done\r\nnext", separator: "\n", want: []string{"done\r\n", "next"}},
		{name: "CRLFSeparator", text: "one\r\ntwo", separator: "\r\n", want: []string{"one\r\n", "two"}},
		{name: "BeforeEscape", text: "abc\r\x1b[31mx", separator: "\n", want: []string{"\x1b[31mx"}},
		{name: "Repeated", text: "a\r\rb", separator: "\n", want: []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			whole := NewBuffer()
			Assemble([]string{tt.text}, whole, tt.separator)
			assertLines(t, whole, tt.want...)

			for cut := 1; cut < len(tt.text); cut++ {
				if tt.text[cut-1] != '\r' {
					continue
				}
				view := NewView(tt.separator, 1000)
				view.Apply([]string{tt.text[:cut]})
				view.Apply([]string{tt.text[cut:]})
				split := view.Snapshot()
				if !slices.Equal(split.Messages(), tt.want) {
					t.Fatalf("split at %d: lines = %q, want %q", cut, split.Messages(), tt.want)
				}
				assertConsistent(t, split)
			}
		})
	}
}

func TestAssemble_PendingReturnSurvivesEmptyBatch(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"10%\r"}, buf, "\n")
	Assemble(nil, buf, "\n")
	if buf.PendingReturns != 1 {
		t.Fatalf("pending returns = %d, want 1", buf.PendingReturns)
	}
	Assemble([]string{"20%"}, buf, "\n")

	assertLines(t, buf, "20%")
	if buf.PendingReturns != 0 {
		t.Errorf("pending returns = %d, want 0", buf.PendingReturns)
	}
}

func TestAssemble_CursorHome(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"old\n"}, buf, "\n")

	res := Assemble([]string{"abc\n", "de\x1b[Hxy"}, buf, "\n")

	assertLines(t, buf, "xy")
	if buf.CharCount != 2 {
		t.Errorf("char count = %d, want 2", buf.CharCount)
	}
	if res.AddedCharCount != 2-4 {
		t.Errorf("added = %d, want -2", res.AddedCharCount)
	}
	if buf.LineIndex != 0 || buf.CursorPos != 2 {
		t.Errorf("cursor = %d:%d, want 0:2", buf.LineIndex, buf.CursorPos)
	}
}

func TestAssemble_CursorHomeAtEnd(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"abc\x1b[H"}, buf, "\n")

	assertLines(t, buf, "")
	if buf.CharCount != 0 || buf.Resets != 1 {
		t.Fatalf("char count = %d resets = %d", buf.CharCount, buf.Resets)
	}
}

func TestAssemble_ClearScreen(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"first\nsecond\n"}, buf, "\n")

	Assemble([]string{"dropped\x1b[2Jkept\n"}, buf, "\n")

	assertLines(t, buf, "kept\n", "")
	assertConsistent(t, buf)
}

func TestAssemble_HomeTakesPriorityOverClear(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"A\x1b[2JB\x1b[HC"}, buf, "\n")

	assertLines(t, buf, "C")
}

func TestAssemble_DefersIncompleteEscape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantText []string
		overflow string
	}{
		{name: "BareEscape", input: "abc\x1b", wantText: []string{"abc"}, overflow: "\x1b"},
		{name: "PartialHome", input: "abc\x1b[", wantText: []string{"abc"}, overflow: "\x1b["},
		{name: "PartialClear", input: "abc\x1b[2", wantText: []string{"abc"}, overflow: "\x1b[2"},
		{name: "PartialColor", input: "abc\x1b[38;5", wantText: []string{"abc"}, overflow: "\x1b[38;5"},
		{name: "CompleteColorIsText", input: "\x1b[31mred", wantText: []string{"\x1b[31mred"}, overflow: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer()
			res := Assemble([]string{tt.input}, buf, "\n")
			assertLines(t, buf, tt.wantText...)
			if res.Overflow != tt.overflow {
				t.Errorf("overflow = %q, want %q", res.Overflow, tt.overflow)
			}
		})
	}
}

func TestAssemble_LongUnterminatedEscapeIsText(t *testing.T) {
	input := "\x1b[" + strings.Repeat("1", maxOverflow)
	buf := NewBuffer()
	res := Assemble([]string{input}, buf, "\n")

	if res.Overflow != "" {
		t.Fatalf("overflow = %q, want none", res.Overflow)
	}
	assertLines(t, buf, input)
}

func TestAssemble_MultibyteLengths(t *testing.T) {
	buf := NewBuffer()
	Assemble([]string{"héllo wörld\n"}, buf, "\n")

	if buf.Lines[0].LengthAtLastWrite != 12 || buf.CharCount != 12 {
		t.Fatalf("length = %d count = %d, want 12", buf.Lines[0].LengthAtLastWrite, buf.CharCount)
	}
}

func TestAssemble_RandomStreamKeepsInvariant(t *testing.T) {
	pieces := []string{"a", "bc", "\n", "\r", "é", "\x1b", "[", "H", "2", "J", "\x1b[H", "\x1b[2J", "\x1b[32m"}
	rng := rand.New(rand.NewSource(42))

	for _, budget := range []int{0, 5, 40, 1000} {
		view := NewView("\n", max(budget, 1))
		for round := 0; round < 500; round++ {
			batch := make([]string, rng.Intn(4))
			for i := range batch {
				var sb strings.Builder
				for n := rng.Intn(6); n > 0; n-- {
					sb.WriteString(pieces[rng.Intn(len(pieces))])
				}
				batch[i] = sb.String()
			}
			view.Apply(batch)

			snap := view.Snapshot()
			assertConsistent(t, snap)
			if snap.CharCount > max(budget, 1) {
				t.Fatalf("budget %d: char count %d", budget, snap.CharCount)
			}
			if len(snap.Lines) > 0 && snap.LineIndex >= len(snap.Lines) {
				t.Fatalf("line index %d out of %d lines", snap.LineIndex, len(snap.Lines))
			}
		}
	}
}
