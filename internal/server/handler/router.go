package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"go.uber.org/zap"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Ledger       ledger.Ledger
	IngestTokens *IngestTokenIssuer
	CORSOrigins  []string
	RateLimitRPS int
	Logger       *zap.Logger

	// PreviewLength is handed to the Recorder behind the typed record
	// routes. Zero selects ledger.DefaultPreviewLength.
	PreviewLength int
}

// NewRouter builds the ledgerd HTTP handler. Background work started for the
// router stops when ctx is done.
func NewRouter(ctx context.Context, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", headerRequestID},
			ExposeHeaders:    []string{"Content-Length", headerRequestID},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(SecurityHeaders())
	router.Use(BodyLimit(1 << 20))
	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitRPS*2))
	}
	router.Use(PrometheusMiddleware())
	router.Use(RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", MetricsHandler())

	v1 := router.Group("/api/v1")
	NewLedgerHandler(cfg.Ledger, cfg.IngestTokens, logger).Register(v1)
	NewTraceHandler(cfg.Ledger, logger).Register(v1)
	if cfg.IngestTokens != nil {
		rec := ledger.NewRecorder(cfg.Ledger, cfg.PreviewLength)
		NewRecordHandler(rec, cfg.IngestTokens, logger).Register(v1)
	}

	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
