package ledger_test

import (
	"testing"

	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTraces(t *testing.T, l ledger.Ledger) {
	t.Helper()
	rec := ledger.NewRecorder(l, 0)
	_, err := rec.RecordRequest(ctx, 1, 7, "trace-a")
	require.NoError(t, err)
	_, err = rec.RecordRequest(ctx, 2, 7, "trace-b")
	require.NoError(t, err)
	_, err = rec.RecordDecision(ctx, ledger.DecisionRecord{RequestLogID: 1, Allowed: true}, "trace-a")
	require.NoError(t, err)
	_, err = rec.RecordEvidence(ctx, ledger.EvidenceRecord{BundleID: "e", RequestLogID: 1}, "trace-a")
	require.NoError(t, err)
	_, err = rec.RecordModelOutput(ctx, ledger.ModelOutputRecord{RequestLogID: 1, Text: "out"}, "trace-a")
	require.NoError(t, err)
}

func TestEntriesForTrace(t *testing.T) {
	for name, l := range map[string]ledger.Ledger{
		"memory": ledger.NewMemoryLedger(testSecret),
		"file":   newFileLedger(t),
	} {
		t.Run(name, func(t *testing.T) {
			seedTraces(t, l)

			entries, err := ledger.EntriesForTrace(ctx, l, "trace-a")
			require.NoError(t, err)
			var kinds []string
			for _, e := range entries {
				kinds = append(kinds, e.Kind)
			}
			assert.Equal(t, []string{"request", "decision", "evidence", "model_output"}, kinds)

			none, err := ledger.EntriesForTrace(ctx, l, "missing")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestEntriesForRequestLog(t *testing.T) {
	l := newFileLedger(t)
	seedTraces(t, l)

	entries, err := ledger.EntriesForRequestLog(ctx, l, 1)
	require.NoError(t, err)
	groups := ledger.GroupByKind(entries)
	assert.Len(t, groups[ledger.KindRequest], 1)
	assert.Len(t, groups[ledger.KindDecision], 1)
	assert.Len(t, groups[ledger.KindModelOutput], 1)
	assert.Empty(t, groups[ledger.KindEvidence], "evidence is excluded by default")

	withEvidence, err := ledger.EntriesForRequestLog(ctx, l, 1, ledger.KindEvidence)
	require.NoError(t, err)
	require.Len(t, withEvidence, 1)
	assert.Equal(t, ledger.KindEvidence, withEvidence[0].Kind)

	other, err := ledger.EntriesForRequestLog(ctx, l, 2)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "trace-b", other[0].TraceID)
}
