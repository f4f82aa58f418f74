package ledger

import "time"

// formatTimestamp renders t in UTC using the ledger's fixed-width layout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// nextTimestamp returns the timestamp for a new entry appended after an entry
// stamped prev. The result always sorts strictly after prev: when the clock
// has not advanced (or went backwards) the previous instant is bumped by one
// microsecond, and a prev written in some foreign layout gets a "~1" suffix.
func nextTimestamp(prev string, now time.Time) string {
	ts := formatTimestamp(now)
	if prev == "" || ts > prev {
		return ts
	}

	if last, err := time.Parse(timestampLayout, prev); err == nil {
		return formatTimestamp(last.Add(time.Microsecond))
	}
	if last, err := time.Parse(time.RFC3339Nano, prev); err == nil {
		if bumped := formatTimestamp(last.Add(time.Microsecond)); bumped > prev {
			return bumped
		}
	}
	return prev + "~1"
}
