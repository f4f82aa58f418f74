// ledgerd serves the governance ledger over HTTP. It is the single writer
// process for its ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/governance-ledger/internal/config"
	"github.com/jmerrifield20/governance-ledger/internal/monitor"
	"github.com/jmerrifield20/governance-ledger/internal/server/handler"
	"go.uber.org/zap"
)

func main() {
	cfgFile := flag.String("config", "", "config file (default configs/ledgerd.yaml)")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{ConfigFile: *cfgFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("ledgerd exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.File == "" {
		logger.Warn("no config file found, using defaults and env vars")
	}
	logger.Info("ledger secret resolved", zap.String("origin", string(cfg.SecretOrigin)))
	if cfg.SecretOrigin == config.SecretFromDefault {
		logger.Warn("using the development ledger secret; set GOVERNANCE_LEDGER_SECRET in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := config.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	store.SetMetricsRecorder(handler.RecordAppend)

	logger.Info("governance ledger opened",
		zap.String("backend", cfg.Backend),
		zap.String("path", cfg.Ledger.Path),
	)

	mon := monitor.New(store, monitor.Config{Interval: cfg.Server.VerifyInterval}, logger)
	mon.SetMetrics(handler.RecordVerification)
	if url := cfg.Server.AlertWebhookURL; url != "" {
		mon.SetAlert(monitor.NewWebhookNotifier(url, cfg.Server.AlertWebhookSecret, logger).Notify)
		logger.Info("integrity alerts enabled")
	}
	// A broken chain is logged and alerted; ledgerd keeps serving.
	mon.Check(ctx)

	var tokens *handler.IngestTokenIssuer
	if cfg.Server.IngestSecret != "" {
		tokens, err = handler.NewIngestTokenIssuer(cfg.Server.IngestSecret, 0)
		if err != nil {
			return err
		}
		logger.Info("ingest endpoint enabled")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(ctx, handler.RouterConfig{
		Ledger:        store,
		IngestTokens:  tokens,
		CORSOrigins:   cfg.Server.CORSOrigins,
		RateLimitRPS:  cfg.Server.RateLimitRPS,
		Logger:        logger,
		PreviewLength: cfg.Ledger.PreviewLength,
	})

	if cfg.Server.VerifyInterval > 0 {
		go mon.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledgerd HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down ledgerd...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	logger.Info("ledgerd stopped")
	return nil
}
