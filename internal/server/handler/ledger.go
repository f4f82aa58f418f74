package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"go.uber.org/zap"
)

// LedgerHandler exposes the governance ledger over HTTP.
type LedgerHandler struct {
	ledger ledger.Ledger
	tokens *IngestTokenIssuer
	logger *zap.Logger
}

// NewLedgerHandler creates a LedgerHandler. A nil tokens issuer disables the
// ingest endpoint.
func NewLedgerHandler(l ledger.Ledger, tokens *IngestTokenIssuer, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, tokens: tokens, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/entries/:idx", h.GetEntry)
		if h.tokens != nil {
			l.POST("/entries", RequireIngestToken(h.tokens), h.Append)
		}
	}
}

// Overview handles GET /ledger and returns the current head.
func (h *LedgerHandler) Overview(c *gin.Context) {
	head, err := h.ledger.Head(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger head", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"head": head})
}

// Verify handles GET /ledger/verify. An invalid chain is still a 200; the
// body reports where it broke.
func (h *LedgerHandler) Verify(c *gin.Context) {
	res, err := h.ledger.VerifyChain(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger verify", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
		return
	}
	RecordVerification(res)

	if !res.Valid {
		c.JSON(http.StatusOK, gin.H{
			"valid":     false,
			"entries":   res.Entries,
			"bad_index": res.BadIndex,
			"reason":    res.Reason,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "entries": res.Entries, "head": res.Head})
}

// GetEntry handles GET /ledger/entries/:idx.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	entry, err := ledger.Get(c.Request.Context(), h.ledger, idx)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	if err != nil {
		h.logger.Error("ledger get", zap.Int("idx", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

type appendRequest struct {
	Kind    string         `json:"kind"`
	TraceID string         `json:"trace_id"`
	Body    map[string]any `json:"body"`
}

// Append handles POST /ledger/entries.
func (h *LedgerHandler) Append(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Kind == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind is required"})
		return
	}
	req.TraceID = traceOrNew(req.TraceID)

	hash, err := h.ledger.AppendEntry(c.Request.Context(), req.Kind, req.Body, req.TraceID)
	if err != nil {
		fields := []zap.Field{zap.String("kind", req.Kind), zap.String("trace_id", req.TraceID), zap.Error(err)}
		if claims := IngestClaimsFromCtx(c); claims != nil {
			fields = append(fields, zap.String("subject", claims.Subject))
		}
		h.logger.Error("ledger append", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append entry"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"hash": hash, "trace_id": req.TraceID})
}
