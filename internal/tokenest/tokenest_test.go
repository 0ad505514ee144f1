package tokenest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_Empty(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
}

func TestEstimate_RoundsUpToNearestFourChars(t *testing.T) {
	assert.Equal(t, 1, Estimate("a"))
	assert.Equal(t, 1, Estimate("abcd"))
	assert.Equal(t, 2, Estimate("abcde"))
	assert.Equal(t, 2, Estimate(strings.Repeat("x", 8)))
	assert.Equal(t, 3, Estimate(strings.Repeat("x", 9)))
}
