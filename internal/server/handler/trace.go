package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"go.uber.org/zap"
)

// TraceHandler reconstructs what the ledger recorded for one trace or one
// request log.
type TraceHandler struct {
	ledger ledger.Ledger
	logger *zap.Logger
}

// NewTraceHandler creates a TraceHandler.
func NewTraceHandler(l ledger.Ledger, logger *zap.Logger) *TraceHandler {
	return &TraceHandler{ledger: l, logger: logger}
}

// Register mounts the trace routes on the given router group.
func (h *TraceHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/traces/:trace_id", h.GetTrace)
	rg.GET("/requests/:request_log_id/ledger", h.GetRequestLedger)
}

// GetTrace handles GET /traces/:trace_id.
func (h *TraceHandler) GetTrace(c *gin.Context) {
	traceID := c.Param("trace_id")
	entries, err := ledger.EntriesForTrace(c.Request.Context(), h.ledger, traceID)
	if err != nil {
		h.logger.Error("trace lookup", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trace_id": traceID,
		"entries":  entries,
		"by_kind":  ledger.GroupByKind(entries),
	})
}

// GetRequestLedger handles GET /requests/:request_log_id/ledger. The optional
// kinds query parameter is a comma-separated list of kinds to include.
func (h *TraceHandler) GetRequestLedger(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("request_log_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_log_id must be a positive integer"})
		return
	}

	var kinds []string
	for _, k := range strings.Split(c.Query("kinds"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}

	entries, err := ledger.EntriesForRequestLog(c.Request.Context(), h.ledger, id, kinds...)
	if err != nil {
		h.logger.Error("request ledger lookup", zap.Int64("request_log_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request_log_id": id,
		"entries":        entries,
		"by_kind":        ledger.GroupByKind(entries),
	})
}
