package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "cli-secret"

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String()
}

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l := ledger.NewFileLedger(ledger.Config{Path: path, Secret: secret}, zap.NewNop())
	rec := ledger.NewRecorder(l, 0)
	ctx := context.Background()
	_, err := rec.RecordRequest(ctx, 1, 7, "trace-1")
	require.NoError(t, err)
	_, err = rec.RecordDecision(ctx, ledger.DecisionRecord{RequestLogID: 1, Allowed: true}, "trace-1")
	require.NoError(t, err)
	return path
}

func TestVerify_ok(t *testing.T) {
	path := seed(t)

	code, out := runCLI(t, "verify", "--ledger-path", path, "--secret", secret)
	assert.Equal(t, 0, code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, true, resp["ok"])
}

func TestVerify_missingFileIsValid(t *testing.T) {
	code, _ := runCLI(t, "verify", "--ledger-path", filepath.Join(t.TempDir(), "none.jsonl"), "--secret", secret)
	assert.Equal(t, 0, code)
}

func TestVerify_tamperedExits2(t *testing.T) {
	path := seed(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, bytes.Replace(data, []byte(`"allowed":true`), []byte(`"allowed":false`), 1), 0o600))

	code, out := runCLI(t, "verify", "--ledger-path", path, "--secret", secret)
	assert.Equal(t, 2, code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, "verification_failed", resp["error"])
	assert.Equal(t, float64(1), resp["bad_index"])
	assert.Equal(t, ledger.ReasonHashMismatch, resp["reason"])
}

func TestVerify_wrongSecretExits2(t *testing.T) {
	path := seed(t)
	code, _ := runCLI(t, "verify", "--ledger-path", path, "--secret", "nope")
	assert.Equal(t, 2, code)
}

func TestVerify_errorExits3(t *testing.T) {
	code, out := runCLI(t, "verify", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 3, code)
	assert.Contains(t, out, `"ok":false`)
}

func TestAppendHeadAndTrace(t *testing.T) {
	path := seed(t)
	common := []string{"--ledger-path", path, "--secret", secret}

	code, out := runCLI(t, append([]string{"append", "--kind", "model_output", "--trace", "trace-1", "--body", `{"request_log_id":1}`}, common...)...)
	require.Equal(t, 0, code)
	hash := strings.TrimSpace(out)
	assert.Len(t, hash, 64)

	code, out = runCLI(t, append([]string{"head"}, common...)...)
	require.Equal(t, 0, code)
	var head ledger.Head
	require.NoError(t, json.Unmarshal([]byte(out), &head))
	assert.Equal(t, 2, head.Index)
	assert.Equal(t, hash, head.Hash)

	code, out = runCLI(t, append([]string{"trace", "trace-1"}, common...)...)
	require.Equal(t, 0, code)
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 3)

	code, out = runCLI(t, append([]string{"trace", "--request-log-id", "1"}, common...)...)
	require.Equal(t, 0, code)
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 3)
}

func TestAppend_rejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	code, _ := runCLI(t, "append", "--ledger-path", path, "--secret", secret)
	assert.Equal(t, 1, code)

	code, _ = runCLI(t, "append", "--kind", "x", "--body", "[1]", "--ledger-path", path, "--secret", secret)
	assert.Equal(t, 1, code)
}
