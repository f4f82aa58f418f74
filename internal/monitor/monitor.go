// Package monitor re-verifies a governance ledger on a schedule and raises
// alerts when its integrity status changes.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"go.uber.org/zap"
)

// Alert event types.
const (
	EventVerificationFailed    = "ledger.verification_failed"
	EventVerificationRecovered = "ledger.verification_recovered"
)

// Config holds monitor configuration.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// AlertFunc is an optional callback invoked on status transitions.
type AlertFunc func(ctx context.Context, event string, payload map[string]any)

// MetricsFunc is an optional callback invoked with every verification result.
type MetricsFunc func(*ledger.Verification)

// Monitor runs periodic chain verification.
type Monitor struct {
	ledger    ledger.Ledger
	cfg       Config
	onAlert   AlertFunc
	onMetrics MetricsFunc
	logger    *zap.Logger

	mu     sync.Mutex
	last   *ledger.Verification
	broken bool
}

// New creates a Monitor. Interval defaults to ten minutes and Timeout to five.
func New(l ledger.Ledger, cfg Config, logger *zap.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{ledger: l, cfg: cfg, logger: logger}
}

// SetAlert configures the alert callback.
func (m *Monitor) SetAlert(fn AlertFunc) { m.onAlert = fn }

// SetMetrics configures the metrics callback.
func (m *Monitor) SetMetrics(fn MetricsFunc) { m.onMetrics = fn }

// Start runs Check every interval until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check verifies the chain once, records the result and alerts when the
// status flips. It returns nil if verification could not run.
func (m *Monitor) Check(ctx context.Context) *ledger.Verification {
	vctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	res, err := m.ledger.VerifyChain(vctx)
	if err != nil {
		m.logger.Error("monitor: verify chain", zap.Error(err))
		return nil
	}
	if m.onMetrics != nil {
		m.onMetrics(res)
	}

	m.mu.Lock()
	wasBroken := m.broken
	m.broken = !res.Valid
	m.last = res
	m.mu.Unlock()

	switch {
	case !res.Valid && !wasBroken:
		m.logger.Warn("governance ledger integrity check FAILED",
			zap.Int("bad_index", res.BadIndex),
			zap.String("reason", res.Reason),
		)
		m.alert(ctx, EventVerificationFailed, map[string]any{
			"bad_index": res.BadIndex,
			"reason":    res.Reason,
			"entries":   res.Entries,
		})
	case res.Valid && wasBroken:
		m.logger.Info("governance ledger integrity recovered", zap.Int("entries", res.Entries))
		m.alert(ctx, EventVerificationRecovered, map[string]any{"entries": res.Entries})
	case res.Valid:
		fields := []zap.Field{zap.Int("entries", res.Entries)}
		if res.Head != nil {
			fields = append(fields, zap.String("head", res.Head.Hash))
		}
		m.logger.Info("governance ledger verified", fields...)
	}
	return res
}

// Last returns the most recent verification result, or nil before the first check.
func (m *Monitor) Last() *ledger.Verification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) alert(ctx context.Context, event string, payload map[string]any) {
	if m.onAlert != nil {
		m.onAlert(ctx, event, payload)
	}
}
