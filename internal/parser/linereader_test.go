package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllLines(r *lineReader) []string {
	var lines []string
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	return lines
}

func TestLineReader_ReadsLinesSkippingBlank(t *testing.T) {
	r := newLineReader(strings.NewReader("a\n\nb\nc"), maxLineSize)
	lines := readAllLines(r)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
	assert.NoError(t, r.Err())
}

func TestLineReader_SkipsOversizedLines(t *testing.T) {
	huge := strings.Repeat("x", 100)
	r := newLineReader(strings.NewReader(huge+"\nshort"), 10)
	lines := readAllLines(r)
	require.Len(t, lines, 1)
	assert.Equal(t, "short", lines[0])
}

func TestLineReader_EmptyInput(t *testing.T) {
	r := newLineReader(strings.NewReader(""), maxLineSize)
	lines := readAllLines(r)
	assert.Empty(t, lines)
}
