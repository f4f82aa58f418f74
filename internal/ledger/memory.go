package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
// It is primarily useful for testing and for producers that do not need
// the chain to survive a restart.
type MemoryLedger struct {
	mu          sync.RWMutex
	entries     []*Entry
	fingerprint string
	clock       func() time.Time
}

// NewMemoryLedger creates an empty MemoryLedger signed with secret
// (DevSecret when empty).
func NewMemoryLedger(secret string) *MemoryLedger {
	if secret == "" {
		secret = DevSecret
	}
	return &MemoryLedger{fingerprint: Fingerprint(secret), clock: time.Now}
}

// SetClock replaces the time source used to stamp new entries.
func (l *MemoryLedger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// AppendEntry implements Ledger.
func (l *MemoryLedger) AppendEntry(_ context.Context, kind string, body map[string]any, traceID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prev *Head
	if n := len(l.entries); n > 0 {
		prev = l.entries[n-1].head()
	}

	stored, err := normalizeBody(body)
	if err != nil {
		return "", err
	}
	entry, err := newEntry(prev, kind, stored, traceID, l.fingerprint, l.clock())
	if err != nil {
		return "", err
	}
	l.entries = append(l.entries, entry)
	return entry.Hash, nil
}

// Head implements Ledger.
func (l *MemoryLedger) Head(_ context.Context) (*Head, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return nil, nil
	}
	return l.entries[len(l.entries)-1].head(), nil
}

// VerifyChain implements Ledger.
func (l *MemoryLedger) VerifyChain(_ context.Context) (*Verification, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	v := newVerifier(l.fingerprint)
	for _, e := range l.entries {
		if !v.check(e) {
			break
		}
	}
	return v.result(), nil
}

// Scan implements Ledger.
func (l *MemoryLedger) Scan(ctx context.Context, fn func(*Entry) error) error {
	l.mu.RLock()
	entries := make([]*Entry, len(l.entries))
	copy(entries, l.entries)
	l.mu.RUnlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// normalizeBody deep-copies body through its canonical JSON form, so the
// stored value is exactly what a file reader would decode and later caller
// mutations cannot rewrite recorded history.
func normalizeBody(body map[string]any) (map[string]any, error) {
	if body == nil {
		return map[string]any{}, nil
	}
	b, err := Canonical(body)
	if err != nil {
		return nil, fmt.Errorf("normalize body: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize body: %w", err)
	}
	return out, nil
}
