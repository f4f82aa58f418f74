package ledger

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ledgerFileMode keeps the ledger readable by its owner only; entries carry
// tenant ids and output previews.
const ledgerFileMode = 0o600

// ctxCheckInterval is how many lines a scan reads between context checks.
const ctxCheckInterval = 1024

// MetricsRecorder is an optional callback invoked after every append attempt.
type MetricsRecorder func(kind string, err error)

// FileLedger stores the chain as newline-delimited JSON, one canonical entry
// per line. It is safe for concurrent use within one process; only one
// process may append to a given file.
type FileLedger struct {
	path        string
	fingerprint string
	logger      *zap.Logger
	clock       func() time.Time
	onAppend    MetricsRecorder

	mu         sync.RWMutex
	head       *Head
	headLoaded bool
}

// NewFileLedger creates a FileLedger for cfg.Path signed with cfg.Secret.
// Nothing touches the disk until the first call.
func NewFileLedger(cfg Config, logger *zap.Logger) *FileLedger {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLedger{
		path:        cfg.Path,
		fingerprint: Fingerprint(cfg.Secret),
		logger:      logger,
		clock:       time.Now,
	}
}

// Path returns the location of the ledger file.
func (l *FileLedger) Path() string { return l.path }

// SetClock replaces the time source used to stamp new entries.
func (l *FileLedger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// SetMetricsRecorder configures the append callback.
func (l *FileLedger) SetMetricsRecorder(fn MetricsRecorder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAppend = fn
}

// AppendEntry implements Ledger. The line is written with a single write on a
// file opened in append mode and synced before the hash is returned.
func (l *FileLedger) AppendEntry(ctx context.Context, kind string, body map[string]any, traceID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if kind == "" {
		return "", ErrEmptyKind
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.appendLocked(kind, body, traceID)
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

func (l *FileLedger) appendLocked(kind string, body map[string]any, traceID string) (*Entry, error) {
	if !l.headLoaded {
		h, err := l.scanHead()
		if err != nil {
			return nil, &AppendError{Op: "load head", Err: err}
		}
		l.head = h
		l.headLoaded = true
	}

	entry, err := newEntry(l.head, kind, body, traceID, l.fingerprint, l.clock())
	if err != nil {
		return nil, err
	}
	line, err := encodeLine(entry)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &AppendError{Op: "create directory", Err: err}
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, ledgerFileMode)
	if err != nil {
		return nil, &AppendError{Op: "open", Err: err}
	}
	defer f.Close() //nolint:errcheck

	torn, err := endsWithoutNewline(f)
	if err != nil {
		return nil, &AppendError{Op: "inspect tail", Err: err}
	}
	if torn {
		line = append([]byte{'\n'}, line...)
	}

	if _, err := f.Write(line); err != nil {
		// A short write may have left a fragment behind; re-read the head
		// from disk next time rather than trusting the cache.
		l.headLoaded = false
		return nil, &AppendError{Op: "write", Err: err}
	}
	if err := f.Sync(); err != nil {
		l.headLoaded = false
		return nil, &AppendError{Op: "sync", Err: err}
	}

	l.head = entry.head()
	return entry, nil
}

// Head implements Ledger. It always re-reads the file, which remains the
// source of truth after restarts.
func (l *FileLedger) Head(ctx context.Context) (*Head, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size, err := l.committedSize()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l.lastHead(ctx, size)
}

// scanHead returns the last well-formed entry in the file. The caller holds
// the write lock.
func (l *FileLedger) scanHead() (*Head, error) {
	h, err := l.lastHead(context.Background(), -1)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return h, err
}

func (l *FileLedger) lastHead(ctx context.Context, size int64) (*Head, error) {
	var last *Head
	err := l.readLines(ctx, size, func(line []byte, _ bool) error {
		e, err := decodeEntry(line)
		if err != nil || !validHead(e) {
			return nil
		}
		last = e.head()
		return nil
	})
	return last, err
}

// committedSize returns the length of the file as of the last completed
// append. Readers scan only that prefix, so they never wait on appends and
// never see a line that is still being written.
func (l *FileLedger) committedSize() (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, err := os.Stat(l.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// VerifyChain implements Ledger. Entries appended while verification runs
// are not examined.
func (l *FileLedger) VerifyChain(ctx context.Context) (*Verification, error) {
	size, err := l.committedSize()
	if errors.Is(err, fs.ErrNotExist) {
		return &Verification{Valid: true, BadIndex: -1}, nil
	}
	if err != nil {
		return nil, err
	}

	v := newVerifier(l.fingerprint)
	err = l.readLines(ctx, size, func(line []byte, terminated bool) error {
		e, err := decodeEntry(line)
		if err != nil {
			if !terminated {
				// Torn final write: history ends before it.
				return errStop
			}
			v.malformed()
			return errStop
		}
		if !v.check(e) {
			return errStop
		}
		return nil
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Verification{Valid: true, BadIndex: -1}, nil
	case err != nil && !errors.Is(err, errStop):
		return nil, err
	}

	res := v.result()
	if !res.Valid {
		l.logger.Warn("ledger verification failed",
			zap.String("path", l.path),
			zap.Int("bad_index", res.BadIndex),
			zap.String("reason", res.Reason),
		)
	}
	return res, nil
}

// Scan implements Ledger. Malformed lines are skipped, as are entries
// appended after the scan started.
func (l *FileLedger) Scan(ctx context.Context, fn func(*Entry) error) error {
	size, err := l.committedSize()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	err = l.readLines(ctx, size, func(line []byte, _ bool) error {
		e, err := decodeEntry(line)
		if err != nil {
			return nil
		}
		return fn(e)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// errStop ends a line walk early without signalling a failure.
var errStop = errors.New("stop")

// readLines calls fn for every non-blank line in the first size bytes of the
// ledger file, or the whole file when size is negative. terminated is false
// only for a final line missing its '\n'.
func (l *FileLedger) readLines(ctx context.Context, size int64, fn func(line []byte, terminated bool) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	var src io.Reader = f
	if size >= 0 {
		src = io.LimitReader(f, size)
	}
	r := bufio.NewReaderSize(src, 64*1024)
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return readErr
		}
		terminated := len(line) > 0 && line[len(line)-1] == '\n'
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if err := fn(trimmed, terminated); err != nil {
				return err
			}
		}
		if readErr != nil {
			return nil
		}
	}
}

// endsWithoutNewline reports whether f is non-empty and its last byte is not
// '\n', which means a previous write was torn.
func endsWithoutNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	var last [1]byte
	if _, err := f.ReadAt(last[:], info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}
