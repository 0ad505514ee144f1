package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/braindump/internal/session"
)

func TestParseTimestamp_RFC3339Nano(t *testing.T) {
	got := parseTimestamp("2026-03-05T10:00:00.123456789Z")
	require.False(t, got.IsZero())
	assert.Equal(t, 2026, got.Year())
}

func TestParseTimestamp_SQLiteStyle(t *testing.T) {
	got := parseTimestamp("2026-03-05 10:00:00")
	require.False(t, got.IsZero())
	assert.Equal(t, time.March, got.Month())
}

func TestParseTimestamp_UnixMillis(t *testing.T) {
	got := parseTimestamp("1700000000000")
	assert.False(t, got.IsZero())
}

func TestParseTimestamp_EmptyOrGarbageYieldsZero(t *testing.T) {
	assert.True(t, parseTimestamp("").IsZero())
	assert.True(t, parseTimestamp("not-a-timestamp").IsZero())
	assert.True(t, parseTimestamp("-5").IsZero())
}

func TestTimeFromUnixMillis(t *testing.T) {
	assert.True(t, timeFromUnixMillis(0).IsZero())
	assert.True(t, timeFromUnixMillis(-1).IsZero())
	assert.False(t, timeFromUnixMillis(1700000000000).IsZero())
}

func TestPathsEqual(t *testing.T) {
	assert.True(t, PathsEqual("/repo/a", "/repo/a"))
	assert.True(t, PathsEqual("/repo/a/", "/repo/a"))
	assert.False(t, PathsEqual("/repo/a", "/repo/b"))
	assert.False(t, PathsEqual("", "/repo/a"))
}

func TestSortSessionInfos_OrdersByLastActiveThenStarted(t *testing.T) {
	now := time.Now()
	infos := []session.SessionInfo{
		{ID: "older", LastActiveAt: timePtr(now.Add(-time.Hour))},
		{ID: "newer", LastActiveAt: timePtr(now)},
		{ID: "no-activity", StartedAt: timePtr(now.Add(-2 * time.Hour))},
	}
	SortSessionInfos(infos)

	require.Len(t, infos, 3)
	assert.Equal(t, "newer", infos[0].ID)
	assert.Equal(t, "older", infos[1].ID)
	assert.Equal(t, "no-activity", infos[2].ID)
}
