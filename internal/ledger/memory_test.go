package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/governance-ledger/internal/ledger"
)

func TestMemoryLedger_empty(t *testing.T) {
	l := ledger.NewMemoryLedger(testSecret)

	head, err := l.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head != nil {
		t.Errorf("expected nil head on empty ledger, got %+v", head)
	}

	res, err := l.VerifyChain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() || res.Entries != 0 || res.BadIndex != -1 {
		t.Errorf("unexpected verification of empty ledger: %+v", res)
	}
}

func TestMemoryLedger_appendAndHead(t *testing.T) {
	l := ledger.NewMemoryLedger(testSecret)

	h0, err := l.AppendEntry(ctx, ledger.KindRequest, map[string]any{"request_log_id": 1}, "trace-1")
	if err != nil {
		t.Fatal(err)
	}
	h1, err := l.AppendEntry(ctx, ledger.KindDecision, map[string]any{"allowed": true}, "trace-1")
	if err != nil {
		t.Fatal(err)
	}
	if h0 == h1 {
		t.Error("expected distinct hashes")
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", l.Len())
	}

	head, err := l.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head.Index != 1 || head.Hash != h1 {
		t.Errorf("unexpected head %+v", head)
	}

	e, err := ledger.Get(ctx, l, 1)
	if err != nil {
		t.Fatal(err)
	}
	if e.PrevHash != h0 {
		t.Errorf("expected prev_hash %s, got %s", h0, e.PrevHash)
	}
}

func TestMemoryLedger_emptyKind(t *testing.T) {
	l := ledger.NewMemoryLedger(testSecret)
	if _, err := l.AppendEntry(ctx, "", nil, ""); !errors.Is(err, ledger.ErrEmptyKind) {
		t.Errorf("expected ErrEmptyKind, got %v", err)
	}
	if l.Len() != 0 {
		t.Error("failed append must not add an entry")
	}
}

func TestMemoryLedger_bodyIsCopied(t *testing.T) {
	l := ledger.NewMemoryLedger(testSecret)

	body := map[string]any{"nested": map[string]any{"allowed": true}}
	if _, err := l.AppendEntry(ctx, ledger.KindDecision, body, "t"); err != nil {
		t.Fatal(err)
	}
	body["nested"].(map[string]any)["allowed"] = false

	res, err := l.VerifyChain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() {
		t.Errorf("mutating the caller's body must not affect the chain: %+v", res)
	}
}

func TestMemoryLedger_matchesFileLedgerHashes(t *testing.T) {
	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	clock := func() time.Time { return at }

	mem := ledger.NewMemoryLedger(testSecret)
	mem.SetClock(clock)
	file := newFileLedger(t)
	file.SetClock(clock)

	body := map[string]any{"b": 2, "a": []any{"x", 1}}
	hm, err := mem.AppendEntry(ctx, ledger.KindEvidence, body, "trace-9")
	if err != nil {
		t.Fatal(err)
	}
	hf, err := file.AppendEntry(ctx, ledger.KindEvidence, body, "trace-9")
	if err != nil {
		t.Fatal(err)
	}
	if hm != hf {
		t.Errorf("backends disagree: memory %s, file %s", hm, hf)
	}
}

func TestMemoryLedger_scanStopsOnError(t *testing.T) {
	l := ledger.NewMemoryLedger(testSecret)
	for i := 0; i < 5; i++ {
		if _, err := l.AppendEntry(ctx, ledger.KindRequest, nil, ""); err != nil {
			t.Fatal(err)
		}
	}

	stop := errors.New("stop here")
	seen := 0
	err := l.Scan(ctx, func(e *ledger.Entry) error {
		seen++
		if e.Index == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("expected scan error to propagate, got %v", err)
	}
	if seen != 3 {
		t.Errorf("expected 3 entries visited, got %d", seen)
	}
}

func TestGet_notFound(t *testing.T) {
	l := ledger.NewMemoryLedger(testSecret)
	if _, err := ledger.Get(ctx, l, 0); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
