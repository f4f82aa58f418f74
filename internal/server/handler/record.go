package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"go.uber.org/zap"
)

// RecordHandler exposes the typed recorders to producers that run out of
// process. Every route requires an ingest token.
type RecordHandler struct {
	rec    *ledger.Recorder
	tokens *IngestTokenIssuer
	logger *zap.Logger
}

// NewRecordHandler creates a RecordHandler.
func NewRecordHandler(rec *ledger.Recorder, tokens *IngestTokenIssuer, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{rec: rec, tokens: tokens, logger: logger}
}

// Register mounts the record routes on the given router group.
func (h *RecordHandler) Register(rg *gin.RouterGroup) {
	r := rg.Group("/ledger/records", RequireIngestToken(h.tokens))
	{
		r.POST("/requests", h.Request)
		r.POST("/decisions", h.Decision)
		r.POST("/model-outputs", h.ModelOutput)
		r.POST("/evidence", h.Evidence)
		r.POST("/safety-reports", h.SafetyReport)
	}
}

type requestRecord struct {
	TraceID      string `json:"trace_id"`
	RequestLogID int64  `json:"request_log_id"`
	TenantID     int64  `json:"tenant_id"`
}

// Request handles POST /ledger/records/requests.
func (h *RecordHandler) Request(c *gin.Context) {
	var req requestRecord
	if !bindRecord(c, &req) {
		return
	}
	traceID := traceOrNew(req.TraceID)
	hash, err := h.rec.RecordRequest(c.Request.Context(), req.RequestLogID, req.TenantID, traceID)
	h.respond(c, ledger.KindRequest, traceID, hash, err)
}

type decisionRecord struct {
	TraceID      string   `json:"trace_id"`
	DecisionID   int64    `json:"decision_id"`
	RequestLogID int64    `json:"request_log_id"`
	TenantID     int64    `json:"tenant_id"`
	Allowed      bool     `json:"allowed"`
	Reasons      []string `json:"reasons"`
	RiskScore    float64  `json:"risk_score"`
}

// Decision handles POST /ledger/records/decisions.
func (h *RecordHandler) Decision(c *gin.Context) {
	var req decisionRecord
	if !bindRecord(c, &req) {
		return
	}
	traceID := traceOrNew(req.TraceID)
	hash, err := h.rec.RecordDecision(c.Request.Context(), ledger.DecisionRecord{
		DecisionID:   req.DecisionID,
		RequestLogID: req.RequestLogID,
		TenantID:     req.TenantID,
		Allowed:      req.Allowed,
		Reasons:      req.Reasons,
		RiskScore:    req.RiskScore,
	}, traceID)
	h.respond(c, ledger.KindDecision, traceID, hash, err)
}

type modelOutputRecord struct {
	TraceID       string `json:"trace_id"`
	RequestLogID  int64  `json:"request_log_id"`
	TenantID      int64  `json:"tenant_id"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	Text          string `json:"text"`
	PreviewLength int    `json:"preview_length"`
}

// ModelOutput handles POST /ledger/records/model-outputs. Only the hash and
// a preview of text are stored.
func (h *RecordHandler) ModelOutput(c *gin.Context) {
	var req modelOutputRecord
	if !bindRecord(c, &req) {
		return
	}
	if req.PreviewLength < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "preview_length must be >= 0"})
		return
	}
	traceID := traceOrNew(req.TraceID)
	hash, err := h.rec.RecordModelOutput(c.Request.Context(), ledger.ModelOutputRecord{
		RequestLogID:  req.RequestLogID,
		TenantID:      req.TenantID,
		Provider:      req.Provider,
		Model:         req.Model,
		Text:          req.Text,
		PreviewLength: req.PreviewLength,
	}, traceID)
	h.respond(c, ledger.KindModelOutput, traceID, hash, err)
}

type evidenceRecord struct {
	TraceID      string                 `json:"trace_id"`
	BundleID     string                 `json:"evidence_bundle_id"`
	TenantID     int64                  `json:"tenant_id"`
	RequestLogID int64                  `json:"request_log_id"`
	Chunks       []ledger.EvidenceChunk `json:"chunks"`
	Metadata     map[string]any         `json:"metadata"`
}

// Evidence handles POST /ledger/records/evidence.
func (h *RecordHandler) Evidence(c *gin.Context) {
	var req evidenceRecord
	if !bindRecord(c, &req) {
		return
	}
	if req.BundleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "evidence_bundle_id is required"})
		return
	}
	traceID := traceOrNew(req.TraceID)
	hash, err := h.rec.RecordEvidence(c.Request.Context(), ledger.EvidenceRecord{
		BundleID:     req.BundleID,
		TenantID:     req.TenantID,
		RequestLogID: req.RequestLogID,
		Chunks:       req.Chunks,
		Metadata:     req.Metadata,
	}, traceID)
	h.respond(c, ledger.KindEvidence, traceID, hash, err)
}

type safetyReportRecord struct {
	TraceID      string                 `json:"trace_id"`
	RequestLogID int64                  `json:"request_log_id"`
	TenantID     int64                  `json:"tenant_id"`
	OverallScore float64                `json:"overall_score"`
	MinScore     float64                `json:"min_score"`
	Passed       bool                   `json:"passed"`
	Findings     []ledger.SafetyFinding `json:"findings"`
}

// SafetyReport handles POST /ledger/records/safety-reports.
func (h *RecordHandler) SafetyReport(c *gin.Context) {
	var req safetyReportRecord
	if !bindRecord(c, &req) {
		return
	}
	traceID := traceOrNew(req.TraceID)
	hash, err := h.rec.RecordSafetyReport(c.Request.Context(), ledger.SafetyReportRecord{
		RequestLogID: req.RequestLogID,
		TenantID:     req.TenantID,
		OverallScore: req.OverallScore,
		MinScore:     req.MinScore,
		Passed:       req.Passed,
		Findings:     req.Findings,
	}, traceID)
	h.respond(c, ledger.KindSafetyReport, traceID, hash, err)
}

func (h *RecordHandler) respond(c *gin.Context, kind, traceID, hash string, err error) {
	if err != nil {
		fields := []zap.Field{zap.String("kind", kind), zap.String("trace_id", traceID), zap.Error(err)}
		if claims := IngestClaimsFromCtx(c); claims != nil {
			fields = append(fields, zap.String("subject", claims.Subject))
		}
		h.logger.Error("ledger record", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record entry"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"hash": hash, "trace_id": traceID})
}

func bindRecord(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// traceOrNew returns id, or a fresh UUID when the producer sent none.
func traceOrNew(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}
