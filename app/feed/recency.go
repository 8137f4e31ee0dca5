package feed

import (
	"slices"
	"time"
)

// Timestamp returns the publish time, falling back to the update time.
func (e Entry) Timestamp() *time.Time {
	if e.PublishedAt != nil {
		return e.PublishedAt
	}
	return e.UpdatedAt
}

// RecentEntries keeps entries whose timestamp is no older than window before
// now, preserving the input order. Entries without any timestamp are dropped.
func RecentEntries(entries []Entry, now time.Time, window time.Duration) []Entry {
	cutoff := now.Add(-window)

	recent := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		ts := entry.Timestamp()
		if ts == nil || ts.Before(cutoff) {
			continue
		}
		recent = append(recent, entry)
	}
	return recent
}

// Newest returns the index of the entry with the latest timestamp. Ties go to
// the entry that appears first. It returns -1 for an empty slice.
func Newest(entries []Entry) int {
	newest := -1
	for i, entry := range entries {
		ts := entry.Timestamp()
		if ts == nil {
			continue
		}
		if newest == -1 || ts.After(*entries[newest].Timestamp()) {
			newest = i
		}
	}
	return newest
}

// Chronological returns entries oldest first. The native order is reversed
// before a stable sort so equal timestamps keep the feed's oldest-first
// position.
func Chronological(entries []Entry) []Entry {
	ordered := slices.Clone(entries)
	slices.Reverse(ordered)

	slices.SortStableFunc(ordered, func(a, b Entry) int {
		ta, tb := a.Timestamp(), b.Timestamp()
		switch {
		case ta == nil && tb == nil:
			return 0
		case ta == nil:
			return -1
		case tb == nil:
			return 1
		}
		return ta.Compare(*tb)
	})

	return ordered
}
