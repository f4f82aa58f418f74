package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"github.com/jmerrifield20/governance-ledger/internal/server/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRecordRouter(t *testing.T, l ledger.Ledger, previewLength int) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := handler.NewIngestTokenIssuer(ingestSecret, 0)
	require.NoError(t, err)
	token, err := tokens.Issue("producer")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := handler.NewRouter(ctx, handler.RouterConfig{
		Ledger:        l,
		IngestTokens:  tokens,
		Logger:        zap.NewNop(),
		PreviewLength: previewLength,
	})
	return r, token
}

func TestRecordModelOutput_configuredPreviewLength(t *testing.T) {
	l := ledger.NewMemoryLedger("s")
	router, token := setupRecordRouter(t, l, 10)

	w := do(router, http.MethodPost, "/api/v1/ledger/records/model-outputs",
		`{"trace_id":"trace-1","request_log_id":7,"provider":"openai","model":"gpt","text":"abcdefghijklmnopqrstuvwxyz"}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "trace-1", decode(t, w)["trace_id"])

	e, err := ledger.Get(context.Background(), l, 0)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindModelOutput, e.Kind)
	assert.Equal(t, "abcdefghij", e.Body["preview"])
	assert.Equal(t, ledger.SHA256Text("abcdefghijklmnopqrstuvwxyz"), e.Body["content_hash"])
	assert.NotContains(t, e.Body, "text")
}

func TestRecordModelOutput_perCallOverride(t *testing.T) {
	l := ledger.NewMemoryLedger("s")
	router, token := setupRecordRouter(t, l, 10)

	w := do(router, http.MethodPost, "/api/v1/ledger/records/model-outputs",
		`{"text":"abcdefghijklmnopqrstuvwxyz","preview_length":3}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	e, err := ledger.Get(context.Background(), l, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", e.Body["preview"])

	w = do(router, http.MethodPost, "/api/v1/ledger/records/model-outputs", `{"text":"x","preview_length":-1}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordModelOutput_defaultPreviewLength(t *testing.T) {
	l := ledger.NewMemoryLedger("s")
	router, token := setupRecordRouter(t, l, 0)

	long := make([]byte, ledger.DefaultPreviewLength+50)
	for i := range long {
		long[i] = 'a'
	}
	w := do(router, http.MethodPost, "/api/v1/ledger/records/model-outputs", `{"text":"`+string(long)+`"}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	e, err := ledger.Get(context.Background(), l, 0)
	require.NoError(t, err)
	assert.Len(t, e.Body["preview"], ledger.DefaultPreviewLength)
}

func TestRecordRoutes_appendTypedKinds(t *testing.T) {
	l := ledger.NewMemoryLedger("s")
	router, token := setupRecordRouter(t, l, 0)

	cases := []struct {
		path string
		body string
		kind string
	}{
		{"/api/v1/ledger/records/requests", `{"trace_id":"t","request_log_id":1,"tenant_id":2}`, ledger.KindRequest},
		{"/api/v1/ledger/records/decisions", `{"trace_id":"t","request_log_id":1,"allowed":false,"reasons":["pii"]}`, ledger.KindDecision},
		{"/api/v1/ledger/records/evidence", `{"trace_id":"t","evidence_bundle_id":"b-1","chunks":[{"text":"x"}]}`, ledger.KindEvidence},
		{"/api/v1/ledger/records/safety-reports", `{"trace_id":"t","request_log_id":1,"overall_score":0.9,"passed":true}`, ledger.KindSafetyReport},
	}
	for i, tc := range cases {
		w := do(router, http.MethodPost, tc.path, tc.body, token)
		require.Equal(t, http.StatusCreated, w.Code, "%s: %s", tc.path, w.Body.String())

		e, err := ledger.Get(context.Background(), l, i)
		require.NoError(t, err)
		assert.Equal(t, tc.kind, e.Kind)
		assert.Equal(t, "t", e.TraceID)
	}

	entries, err := ledger.EntriesForRequestLog(context.Background(), l, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	res, err := l.VerifyChain(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestRecordRoutes_validation(t *testing.T) {
	router, token := setupRecordRouter(t, ledger.NewMemoryLedger("s"), 0)

	w := do(router, http.MethodPost, "/api/v1/ledger/records/evidence", `{"chunks":[]}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/v1/ledger/records/requests", `not json`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/v1/ledger/records/requests", `{"request_log_id":1}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecordRoutes_disabledWithoutSecret(t *testing.T) {
	router, _ := setupRouter(t, ledger.NewMemoryLedger("s"), false)

	w := do(router, http.MethodPost, "/api/v1/ledger/records/requests", `{"request_log_id":1}`, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
