package ledger

import (
	"context"
	"errors"
)

// Kinds considered by EntriesForRequestLog when none are given.
var requestLogKinds = []string{KindRequest, KindDecision, KindModelOutput}

// Get returns the entry at the given zero-based index.
func Get(ctx context.Context, l Ledger, index int) (*Entry, error) {
	var found *Entry
	err := l.Scan(ctx, func(e *Entry) error {
		if e.Index == index {
			found = e
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// EntriesForTrace returns every entry recorded under traceID, in chain order.
func EntriesForTrace(ctx context.Context, l Ledger, traceID string) ([]*Entry, error) {
	var out []*Entry
	err := l.Scan(ctx, func(e *Entry) error {
		if e.TraceID == traceID {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// EntriesForRequestLog returns the entries whose body.request_log_id equals
// id and whose kind is one of kinds (request, decision and model_output when
// kinds is empty).
func EntriesForRequestLog(ctx context.Context, l Ledger, id int64, kinds ...string) ([]*Entry, error) {
	if len(kinds) == 0 {
		kinds = requestLogKinds
	}
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	var out []*Entry
	err := l.Scan(ctx, func(e *Entry) error {
		if !want[e.Kind] {
			return nil
		}
		if v, ok := bodyInt(e.Body, "request_log_id"); ok && v == id {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// GroupByKind buckets entries by kind, preserving order within each bucket.
func GroupByKind(entries []*Entry) map[string][]*Entry {
	out := make(map[string][]*Entry)
	for _, e := range entries {
		out[e.Kind] = append(out[e.Kind], e)
	}
	return out
}

// bodyInt reads an integral number from body[key]. Decoded JSON numbers are
// float64; values written in-process may still be integers.
func bodyInt(body map[string]any, key string) (int64, bool) {
	switch v := body[key].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
