package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent appends. The value is arbitrary but must be consistent across
// every process writing the same table.
const advisoryLockKey = int64(1_771_420_311)

const selectEntryColumns = `SELECT idx, timestamp, kind, trace_id, prev_hash, body, hash FROM governance_ledger`

// PostgresLedger persists the governance ledger to a PostgreSQL table
// (see migrations/). Hashes are identical to those of FileLedger for the
// same inputs, so a chain exported from either verifies in the other.
type PostgresLedger struct {
	pool        *pgxpool.Pool
	fingerprint string
	logger      *zap.Logger
	clock       func() time.Time
	onAppend    MetricsRecorder
}

// NewPostgresLedger creates a PostgresLedger backed by the given connection pool.
func NewPostgresLedger(pool *pgxpool.Pool, secret string, logger *zap.Logger) *PostgresLedger {
	if secret == "" {
		secret = DevSecret
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresLedger{
		pool:        pool,
		fingerprint: Fingerprint(secret),
		logger:      logger,
		clock:       time.Now,
	}
}

// SetMetricsRecorder configures the append callback.
func (l *PostgresLedger) SetMetricsRecorder(fn MetricsRecorder) {
	l.onAppend = fn
}

// AppendEntry implements Ledger.
// It acquires an advisory lock, reads the chain tail, computes the new entry
// hash and inserts it, all within a single transaction.
func (l *PostgresLedger) AppendEntry(ctx context.Context, kind string, body map[string]any, traceID string) (string, error) {
	entry, err := l.append(ctx, kind, body, traceID)
	if l.onAppend != nil {
		l.onAppend(kind, err)
	}
	if err != nil {
		return "", err
	}

	l.logger.Debug("ledger entry appended",
		zap.Int("idx", entry.Index),
		zap.String("kind", entry.Kind),
		zap.String("trace_id", entry.TraceID),
	)
	return entry.Hash, nil
}

func (l *PostgresLedger) append(ctx context.Context, kind string, body map[string]any, traceID string) (*Entry, error) {
	if kind == "" {
		return nil, ErrEmptyKind
	}
	stored, err := normalizeBody(body)
	if err != nil {
		return nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, &AppendError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The lock is released when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, &AppendError{Op: "acquire advisory lock", Err: err}
	}

	var prev *Head
	var h Head
	err = tx.QueryRow(ctx,
		"SELECT idx, hash, timestamp FROM governance_ledger ORDER BY idx DESC LIMIT 1",
	).Scan(&h.Index, &h.Hash, &h.Timestamp)
	switch {
	case err == nil:
		prev = &h
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, &AppendError{Op: "read ledger tail", Err: err}
	}

	entry, err := newEntry(prev, kind, stored, traceID, l.fingerprint, l.clock())
	if err != nil {
		return nil, err
	}
	bodyJSON, err := Canonical(entry.Body)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO governance_ledger (idx, timestamp, kind, trace_id, prev_hash, body, hash)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		entry.Index, entry.Timestamp, entry.Kind, entry.TraceID,
		entry.PrevHash, string(bodyJSON), entry.Hash,
	); err != nil {
		return nil, &AppendError{Op: "insert ledger entry", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &AppendError{Op: "commit ledger tx", Err: err}
	}
	return entry, nil
}

// Head implements Ledger.
func (l *PostgresLedger) Head(ctx context.Context) (*Head, error) {
	var h Head
	err := l.pool.QueryRow(ctx,
		"SELECT idx, hash, timestamp FROM governance_ledger ORDER BY idx DESC LIMIT 1",
	).Scan(&h.Index, &h.Hash, &h.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger head: %w", err)
	}
	return &h, nil
}

// VerifyChain implements Ledger. It streams all rows ordered by idx; O(n) in
// ledger length.
func (l *PostgresLedger) VerifyChain(ctx context.Context) (*Verification, error) {
	v := newVerifier(l.fingerprint)
	err := l.stream(ctx, func(e *Entry, decodeErr error) error {
		if decodeErr != nil {
			v.malformed()
			return errStop
		}
		if !v.check(e) {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return v.result(), nil
}

// Scan implements Ledger. Rows whose body cannot be decoded are skipped.
func (l *PostgresLedger) Scan(ctx context.Context, fn func(*Entry) error) error {
	return l.stream(ctx, func(e *Entry, decodeErr error) error {
		if decodeErr != nil {
			return nil
		}
		return fn(e)
	})
}

// stream walks every row in index order.
func (l *PostgresLedger) stream(ctx context.Context, fn func(*Entry, error) error) error {
	rows, err := l.pool.Query(ctx, selectEntryColumns+" ORDER BY idx ASC")
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e    Entry
			body []byte
		)
		if err := rows.Scan(&e.Index, &e.Timestamp, &e.Kind, &e.TraceID, &e.PrevHash, &body, &e.Hash); err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
		decodeErr := json.Unmarshal(body, &e.Body)
		if e.Body == nil {
			e.Body = map[string]any{}
		}
		if err := fn(&e, decodeErr); err != nil {
			return err
		}
	}
	return rows.Err()
}
