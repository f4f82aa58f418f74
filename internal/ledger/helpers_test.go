package ledger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newFileLedger(t *testing.T) *ledger.FileLedger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger", "governance.jsonl")
	return ledger.NewFileLedger(ledger.Config{Path: path, Secret: testSecret}, zap.NewNop())
}

// readLines returns the non-blank lines of the ledger file.
func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var lines []string
	for _, ln := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &m))
	return m
}

func encodeLine(t *testing.T, m map[string]any) string {
	t.Helper()
	b, err := ledger.Canonical(m)
	require.NoError(t, err)
	return string(b)
}
