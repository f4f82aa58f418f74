package config

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"go.uber.org/zap"
)

// Store is an opened ledger backend.
type Store interface {
	ledger.Ledger
	SetMetricsRecorder(ledger.MetricsRecorder)
}

// OpenLedger opens the backend selected by cfg. The returned close function
// releases any database pool and is never nil.
func OpenLedger(ctx context.Context, cfg *Config, logger *zap.Logger) (Store, func(), error) {
	switch cfg.Backend {
	case BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		return ledger.NewPostgresLedger(pool, cfg.Ledger.Secret, logger), pool.Close, nil
	case BackendFile, "":
		return ledger.NewFileLedger(cfg.Ledger, logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown governance_ledger.backend %q", cfg.Backend)
	}
}
