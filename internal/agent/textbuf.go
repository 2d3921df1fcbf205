package agent

import "strings"

// textBuffer accumulates streaming model text and finds safe flush points so
// long responses render incrementally without re-rendering the whole block.
// A safe split point is the end of a line that leaves no markdown fence or
// inline formatting open in the flushed prefix.
type textBuffer struct {
	pending string
}

// Append adds streamed text to the pending buffer.
func (b *textBuffer) Append(text string) {
	b.pending += text
}

// Flush returns the finalized prefix up to the last safe split point and
// keeps the remainder pending. Returns "" when no safe point exists yet.
func (b *textBuffer) Flush() string {
	idx := lastSafeSplit(b.pending)
	if idx <= 0 {
		return ""
	}
	out := b.pending[:idx]
	b.pending = b.pending[idx:]
	return out
}

// Drain returns everything pending, flushed or not. Called at end of stream.
func (b *textBuffer) Drain() string {
	out := b.pending
	b.pending = ""
	return out
}

// Pending returns the unflushed remainder for display.
func (b *textBuffer) Pending() string {
	return b.pending
}

// lastSafeSplit returns the index just past the last newline at which the
// prefix has balanced code fences and inline backticks.
func lastSafeSplit(text string) int {
	best := -1
	inFence := false
	tickCount := 0
	lineStart := 0

	for i := 0; i < len(text); i++ {
		if text[i] != '\n' {
			continue
		}
		line := text[lineStart : i+1]
		if isFenceLine(line) {
			inFence = !inFence
		}
		tickCount += strings.Count(stripFence(line), "`")
		lineStart = i + 1

		if !inFence && tickCount%2 == 0 {
			best = i + 1
		}
	}
	return best
}

func isFenceLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// stripFence removes the fence marker so its backticks don't count as inline
// formatting.
func stripFence(line string) string {
	if isFenceLine(line) {
		return strings.ReplaceAll(line, "`", "")
	}
	return line
}
