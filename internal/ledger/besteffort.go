package ledger

import (
	"context"

	"go.uber.org/zap"
)

// BestEffort wraps a Recorder for producers whose main flow must not fail
// because governance recording did. Failures are logged and swallowed; the
// returned hash is "" when recording failed.
type BestEffort struct {
	rec    *Recorder
	logger *zap.Logger
}

// NewBestEffort creates a BestEffort recorder.
func NewBestEffort(rec *Recorder, logger *zap.Logger) *BestEffort {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BestEffort{rec: rec, logger: logger}
}

// Append records an entry of any kind.
func (b *BestEffort) Append(ctx context.Context, kind string, body map[string]any, traceID string) string {
	h, err := b.rec.Ledger().AppendEntry(ctx, kind, body, traceID)
	return b.check(kind, traceID, h, err)
}

// RecordRequest is the best-effort form of Recorder.RecordRequest.
func (b *BestEffort) RecordRequest(ctx context.Context, requestLogID, tenantID int64, traceID string) string {
	h, err := b.rec.RecordRequest(ctx, requestLogID, tenantID, traceID)
	return b.check(KindRequest, traceID, h, err)
}

// RecordDecision is the best-effort form of Recorder.RecordDecision.
func (b *BestEffort) RecordDecision(ctx context.Context, d DecisionRecord, traceID string) string {
	h, err := b.rec.RecordDecision(ctx, d, traceID)
	return b.check(KindDecision, traceID, h, err)
}

// RecordModelOutput is the best-effort form of Recorder.RecordModelOutput.
func (b *BestEffort) RecordModelOutput(ctx context.Context, m ModelOutputRecord, traceID string) string {
	h, err := b.rec.RecordModelOutput(ctx, m, traceID)
	return b.check(KindModelOutput, traceID, h, err)
}

// RecordEvidence is the best-effort form of Recorder.RecordEvidence.
func (b *BestEffort) RecordEvidence(ctx context.Context, e EvidenceRecord, traceID string) string {
	h, err := b.rec.RecordEvidence(ctx, e, traceID)
	return b.check(KindEvidence, traceID, h, err)
}

// RecordSafetyReport is the best-effort form of Recorder.RecordSafetyReport.
func (b *BestEffort) RecordSafetyReport(ctx context.Context, s SafetyReportRecord, traceID string) string {
	h, err := b.rec.RecordSafetyReport(ctx, s, traceID)
	return b.check(KindSafetyReport, traceID, h, err)
}

func (b *BestEffort) check(kind, traceID, hash string, err error) string {
	if err != nil {
		b.logger.Warn("governance ledger write failed",
			zap.String("kind", kind),
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		return ""
	}
	return hash
}
