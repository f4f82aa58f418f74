package ledger

import (
	"context"
)

// DecisionRecord is the outcome of a policy decision.
type DecisionRecord struct {
	DecisionID   int64
	RequestLogID int64
	TenantID     int64
	Allowed      bool
	Reasons      []string
	RiskScore    float64
}

// ModelOutputRecord describes one model generation. Only a hash and a short
// preview of Text are recorded.
type ModelOutputRecord struct {
	RequestLogID int64
	TenantID     int64
	Provider     string
	Model        string
	Text         string

	// PreviewLength overrides the recorder default when positive.
	PreviewLength int
}

// EvidenceChunk is one retrieved passage submitted by the retrieval proxy.
type EvidenceChunk struct {
	Text         string         `json:"text"`
	SourceURI    string         `json:"source_uri"`
	Metadata     map[string]any `json:"metadata"`
	DocumentHash string         `json:"document_hash"`
	ChunkHash    string         `json:"chunk_hash"`
}

// EvidenceRecord is a retrieval evidence bundle.
type EvidenceRecord struct {
	BundleID     string
	TenantID     int64
	RequestLogID int64
	Chunks       []EvidenceChunk
	Metadata     map[string]any
}

// SafetyFinding is a single issue raised by response safety scoring.
type SafetyFinding struct {
	Rule     string  `json:"rule"`
	Severity string  `json:"severity"`
	Score    float64 `json:"score"`
}

// SafetyReportRecord summarises groundedness and safety scoring of an output.
type SafetyReportRecord struct {
	RequestLogID int64
	TenantID     int64
	OverallScore float64
	MinScore     float64
	Passed       bool
	Findings     []SafetyFinding
}

// Recorder standardises the payloads producers append for the common kinds.
// Every method funnels through Ledger.AppendEntry.
type Recorder struct {
	ledger        Ledger
	previewLength int
}

// NewRecorder wraps l. previewLength <= 0 selects DefaultPreviewLength.
func NewRecorder(l Ledger, previewLength int) *Recorder {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}
	return &Recorder{ledger: l, previewLength: previewLength}
}

// Ledger returns the wrapped ledger.
func (r *Recorder) Ledger() Ledger { return r.ledger }

// RecordRequest records an inbound request.
func (r *Recorder) RecordRequest(ctx context.Context, requestLogID, tenantID int64, traceID string) (string, error) {
	return r.ledger.AppendEntry(ctx, KindRequest, map[string]any{
		"request_log_id": optionalID(requestLogID),
		"tenant_id":      optionalID(tenantID),
	}, traceID)
}

// RecordDecision records a policy decision.
func (r *Recorder) RecordDecision(ctx context.Context, d DecisionRecord, traceID string) (string, error) {
	reasons := d.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return r.ledger.AppendEntry(ctx, KindDecision, map[string]any{
		"decision_id":    optionalID(d.DecisionID),
		"request_log_id": optionalID(d.RequestLogID),
		"tenant_id":      optionalID(d.TenantID),
		"allowed":        d.Allowed,
		"reasons":        reasons,
		"risk_score":     d.RiskScore,
	}, traceID)
}

// RecordModelOutput records a model generation by content hash and preview;
// the full text never enters the ledger.
func (r *Recorder) RecordModelOutput(ctx context.Context, m ModelOutputRecord, traceID string) (string, error) {
	n := r.previewLength
	if m.PreviewLength > 0 {
		n = m.PreviewLength
	}
	return r.ledger.AppendEntry(ctx, KindModelOutput, map[string]any{
		"request_log_id": optionalID(m.RequestLogID),
		"tenant_id":      optionalID(m.TenantID),
		"provider":       m.Provider,
		"model":          m.Model,
		"content_hash":   SHA256Text(m.Text),
		"preview":        Preview(m.Text, n),
	}, traceID)
}

// RecordEvidence records a retrieval evidence bundle. Chunk text is replaced
// by its hash.
func (r *Recorder) RecordEvidence(ctx context.Context, e EvidenceRecord, traceID string) (string, error) {
	chunks := make([]map[string]any, 0, len(e.Chunks))
	for _, c := range e.Chunks {
		md := c.Metadata
		if md == nil {
			md = map[string]any{}
		}
		chunks = append(chunks, map[string]any{
			"source_uri":    c.SourceURI,
			"document_hash": c.DocumentHash,
			"chunk_hash":    c.ChunkHash,
			"text_hash":     SHA256Text(c.Text),
			"metadata":      md,
		})
	}
	md := e.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return r.ledger.AppendEntry(ctx, KindEvidence, map[string]any{
		"evidence_bundle_id": e.BundleID,
		"tenant_id":          optionalID(e.TenantID),
		"request_log_id":     optionalID(e.RequestLogID),
		"chunk_count":        len(e.Chunks),
		"chunks":             chunks,
		"metadata":           md,
	}, traceID)
}

// RecordSafetyReport records the groundedness and safety scores of an output.
func (r *Recorder) RecordSafetyReport(ctx context.Context, s SafetyReportRecord, traceID string) (string, error) {
	findings := s.Findings
	if findings == nil {
		findings = []SafetyFinding{}
	}
	return r.ledger.AppendEntry(ctx, KindSafetyReport, map[string]any{
		"request_log_id": optionalID(s.RequestLogID),
		"tenant_id":      optionalID(s.TenantID),
		"overall_score":  s.OverallScore,
		"min_score":      s.MinScore,
		"passed":         s.Passed,
		"findings":       findings,
	}, traceID)
}

// Preview returns the first n characters of s.
func Preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// optionalID maps the zero id to JSON null.
func optionalID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
