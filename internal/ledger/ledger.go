// Package ledger implements the governance ledger: an append-only, hash-chained
// event log recording requests, policy decisions, model outputs and retrieved
// evidence for the moderation pipeline.
//
// Every entry's Hash is the SHA-256 of a canonical (RFC 8785) JSON object built
// from the previous entry's hash, the entry's kind, timestamp, trace id and body,
// and a fingerprint of the signing secret. Anyone holding the same secret can
// recompute every hash and detect insertion, deletion, reordering or mutation.
//
// Three implementations of the Ledger interface are provided:
//   - FileLedger: newline-delimited JSON on local disk, the canonical store.
//   - MemoryLedger: in-process, for testing and development.
//   - PostgresLedger: durable, for deployments that keep audit data in Postgres.
//
// A ledger assumes a single writer process. Appends within one process are
// serialised; coordinating several processes is the caller's job.
package ledger

import "context"

// Ledger is the interface for the append-only governance ledger.
type Ledger interface {
	// AppendEntry chains a new entry to the current head, persists it and
	// returns its hash.
	AppendEntry(ctx context.Context, kind string, body map[string]any, traceID string) (string, error)

	// Head returns the last well-formed entry, or nil when the ledger is empty.
	Head(ctx context.Context) (*Head, error)

	// VerifyChain replays the whole ledger and recomputes every hash.
	// An invalid chain is reported in the Verification, not as an error.
	VerifyChain(ctx context.Context) (*Verification, error)

	// Scan calls fn for every well-formed entry in order. Returning a non-nil
	// error from fn stops the scan and is returned.
	Scan(ctx context.Context, fn func(*Entry) error) error
}
