package parser

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wesm/braindump/internal/session"
)

// timestampLayouts are the formats observed across the seven agent
// session formats: RFC3339 with and without fractional seconds, and
// a couple of space-separated SQLite-style layouts used by cursor
// and opencode's relational stores.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp parses a timestamp string in any of the layouts
// observed in the pack's agent formats, returning the zero time on
// failure (adapters treat a zero time as "timestamp unknown" rather
// than fatal).
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	// Unix millis, as used by some relational stores' integer columns.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// timeFromUnixMillis converts an integer millisecond timestamp
// (as stored by cursor/opencode's SQLite columns) into a time.Time,
// or the zero time for a non-positive input.
func timeFromUnixMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// PathsEqual reports whether two filesystem paths refer to the same
// location for the purposes of ListSessions' project-path filter:
// separators normalized to "/", resolved to absolute form, compared
// case-insensitively.
func PathsEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	na := normalizePathForCompare(a)
	nb := normalizePathForCompare(b)
	return strings.EqualFold(na, nb)
}

func normalizePathForCompare(p string) string {
	p = filepath.ToSlash(p)
	if abs, err := filepath.Abs(filepath.FromSlash(p)); err == nil {
		p = filepath.ToSlash(abs)
	}
	return p
}

// SortSessionInfos sorts in place by LastActiveAt descending, ties
// broken by StartedAt descending, with missing timestamps sorting
// last.
func SortSessionInfos(infos []session.SessionInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		li, lj := infos[i].LastActiveAt, infos[j].LastActiveAt
		switch {
		case li == nil && lj == nil:
			return startedAfter(infos[i], infos[j])
		case li == nil:
			return false
		case lj == nil:
			return true
		case !li.Equal(*lj):
			return li.After(*lj)
		default:
			return startedAfter(infos[i], infos[j])
		}
	})
}

func startedAfter(a, b session.SessionInfo) bool {
	switch {
	case a.StartedAt == nil && b.StartedAt == nil:
		return false
	case a.StartedAt == nil:
		return false
	case b.StartedAt == nil:
		return true
	default:
		return a.StartedAt.After(*b.StartedAt)
	}
}
