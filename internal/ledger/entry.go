package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GenesisHash is the prev_hash of the first entry in every chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry kinds recorded by the moderation pipeline. Any other non-empty kind
// is accepted as well.
const (
	KindRequest      = "request"
	KindDecision     = "decision"
	KindModelOutput  = "model_output"
	KindEvidence     = "evidence"
	KindSafetyReport = "safety_report"
)

// timestampLayout renders UTC instants with a fixed width so that lexical
// order matches chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

var (
	// ErrEmptyKind is returned by AppendEntry when kind is "".
	ErrEmptyKind = errors.New("ledger: entry kind must not be empty")

	// ErrNotFound is returned when a requested entry does not exist.
	ErrNotFound = errors.New("ledger: entry not found")
)

// Entry is a single record in the governance ledger.
type Entry struct {
	Index     int            `json:"index"`
	Timestamp string         `json:"timestamp"`
	Kind      string         `json:"kind"`
	TraceID   string         `json:"trace_id"`
	PrevHash  string         `json:"prev_hash"`
	Body      map[string]any `json:"body"`
	Hash      string         `json:"hash"`
}

// Head identifies the tip of the chain.
type Head struct {
	Index     int    `json:"index"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// head returns the Head view of e.
func (e *Entry) head() *Head {
	return &Head{Index: e.Index, Hash: e.Hash, Timestamp: e.Timestamp}
}

// AppendError reports that an entry could not be durably recorded.
type AppendError struct {
	Op  string
	Err error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("ledger append: %s: %v", e.Op, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

// hashableEntry is the object whose canonical form is hashed. The raw secret
// never appears here, only its fingerprint.
type hashableEntry struct {
	PrevHash          string         `json:"prev_hash"`
	Kind              string         `json:"kind"`
	Timestamp         string         `json:"timestamp"`
	TraceID           string         `json:"trace_id"`
	Body              map[string]any `json:"body"`
	SecretFingerprint string         `json:"secret_fingerprint"`
}

// ComputeHash returns the hex SHA-256 of the canonical hashing input for an
// entry with the given fields.
func ComputeHash(prevHash, kind, timestamp, traceID string, body map[string]any, fingerprint string) (string, error) {
	if body == nil {
		body = map[string]any{}
	}
	return SHA256JSON(hashableEntry{
		PrevHash:          prevHash,
		Kind:              kind,
		Timestamp:         timestamp,
		TraceID:           traceID,
		Body:              body,
		SecretFingerprint: fingerprint,
	})
}

// hashEntry recomputes the hash of e under fingerprint.
func hashEntry(e *Entry, fingerprint string) (string, error) {
	return ComputeHash(e.PrevHash, e.Kind, e.Timestamp, e.TraceID, e.Body, fingerprint)
}

// newEntry builds the entry that follows prev (nil for the first entry) and
// fills in its hash.
func newEntry(prev *Head, kind string, body map[string]any, traceID, fingerprint string, now time.Time) (*Entry, error) {
	if kind == "" {
		return nil, ErrEmptyKind
	}
	if body == nil {
		body = map[string]any{}
	}

	e := &Entry{
		Index:     0,
		Timestamp: nextTimestamp("", now),
		Kind:      kind,
		TraceID:   traceID,
		PrevHash:  GenesisHash,
		Body:      body,
	}
	if prev != nil {
		e.Index = prev.Index + 1
		e.Timestamp = nextTimestamp(prev.Timestamp, now)
		e.PrevHash = prev.Hash
	}

	h, err := hashEntry(e, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("hash entry: %w", err)
	}
	e.Hash = h
	return e, nil
}

// encodeLine renders e as one canonical JSON line terminated by '\n'.
func encodeLine(e *Entry) ([]byte, error) {
	b, err := Canonical(e)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// entryFields lists the keys every stored entry must carry.
var entryFields = []string{"index", "timestamp", "kind", "trace_id", "prev_hash", "body", "hash"}

// decodeEntry parses a stored line. It rejects lines missing any entry field,
// fields set to null and bodies that are not JSON objects.
func decodeEntry(line []byte) (*Entry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	for _, field := range entryFields {
		v, ok := raw[field]
		if !ok {
			return nil, fmt.Errorf("decode entry: missing field %q", field)
		}
		if string(bytes.TrimSpace(v)) == "null" {
			return nil, fmt.Errorf("decode entry: field %q is null", field)
		}
	}
	if body := bytes.TrimSpace(raw["body"]); len(body) == 0 || body[0] != '{' {
		return nil, errors.New("decode entry: body is not an object")
	}

	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}

// validHead reports whether e carries a usable head: a non-negative index,
// a full-length hash and a timestamp.
func validHead(e *Entry) bool {
	return e.Index >= 0 && len(e.Hash) == 64 && e.Timestamp != ""
}
