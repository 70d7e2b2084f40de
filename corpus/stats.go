package corpus

import (
	"fmt"
	"strings"
)

// LineStats summarizes a list of corpus lines.
type LineStats struct {
	Lines, Bytes int

	// EmptyLines counts lines with no content other than a line terminator.
	EmptyLines int

	// MaxLineBytes is the length of the longest line, terminator included.
	MaxLineBytes int
}

// Stats returns the LineStats of lines.
func Stats(lines []string) LineStats {
	var s LineStats
	s.Lines = len(lines)
	for _, line := range lines {
		s.Bytes += len(line)
		s.MaxLineBytes = max(s.MaxLineBytes, len(line))
		if strings.TrimRight(line, "\n") == "" {
			s.EmptyLines++
		}
	}
	return s
}

// String implements fmt.Stringer.
func (s LineStats) String() string {
	return fmt.Sprintf("%d lines (%d empty), %d bytes, longest line %d bytes",
		s.Lines, s.EmptyLines, s.Bytes, s.MaxLineBytes)
}
