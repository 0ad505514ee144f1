// Package dedup provides the build-order-preserving string
// deduplication used for decisions, remaining tasks, and file
// change paths across the adapter and analyzer packages.
package dedup

import "strings"

// Strings returns in, deduplicated by trimmed text with the first
// occurrence of each value kept and blank entries discarded.
func Strings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		t := strings.TrimSpace(s)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Builder accumulates deduplicated strings one at a time, preserving
// first-occurrence order. Useful when entries arrive incrementally
// while scanning a session file rather than all at once.
type Builder struct {
	seen map[string]bool
	out  []string
}

// NewBuilder returns an empty deduplicating builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]bool)}
}

// Add appends s if its trimmed form is non-empty and not already
// present.
func (b *Builder) Add(s string) {
	t := strings.TrimSpace(s)
	if t == "" || b.seen[t] {
		return
	}
	b.seen[t] = true
	b.out = append(b.out, t)
}

// Values returns the accumulated deduplicated strings in insertion
// order.
func (b *Builder) Values() []string {
	return b.out
}
