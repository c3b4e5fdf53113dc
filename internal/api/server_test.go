package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradstream/applicant-pipeline/internal/task"
)

type fakePublisher struct {
	published []task.Message
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, msg task.Message) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeGate struct {
	busy bool
	err  error
}

func (f *fakeGate) InProgress() (bool, error) { return f.busy, f.err }

func postTask(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return got
}

func TestSubmitTaskAccepted(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	s := NewServer(pub, &fakeGate{}, zap.NewNop())

	rec := postTask(t, s, `{"kind":"scrape_new_data","payload":{"source":"gradcafe"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	got := decodeBody(t, rec)
	require.Equal(t, true, got["ok"])
	require.Equal(t, true, got["queued"])
	require.Equal(t, "scrape_new_data", got["kind"])

	require.Len(t, pub.published, 1)
	require.Equal(t, task.KindScrapeNewData, pub.published[0].Kind)
	require.Equal(t, "gradcafe", pub.published[0].Payload["source"])
	require.False(t, pub.published[0].TS.IsZero())
}

func TestSubmitTaskUnknownKind(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	s := NewServer(pub, &fakeGate{}, zap.NewNop())

	rec := postTask(t, s, `{"kind":"drop_tables"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, pub.published)
}

func TestSubmitTaskInvalidJSON(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakePublisher{}, &fakeGate{}, zap.NewNop())

	rec := postTask(t, s, `{nope`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got := decodeBody(t, rec)
	require.Equal(t, false, got["ok"])
	require.NotEmpty(t, got["error"])
}

func TestSubmitTaskWhileBusy(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	s := NewServer(pub, &fakeGate{busy: true}, zap.NewNop())

	rec := postTask(t, s, `{"kind":"recompute_analytics"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	got := decodeBody(t, rec)
	require.Equal(t, true, got["busy"])
	require.Empty(t, pub.published, "busy requests must not publish")
}

func TestSubmitTaskPublishFailure(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("broker unreachable")}
	s := NewServer(pub, &fakeGate{}, zap.NewNop())

	rec := postTask(t, s, `{"kind":"scrape_new_data"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	got := decodeBody(t, rec)
	require.Equal(t, false, got["ok"])
	require.Contains(t, got["error"], "broker unreachable")
}

func TestSubmitTaskGateFailure(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakePublisher{}, &fakeGate{err: errors.New("lock file unreadable")}, zap.NewNop())

	rec := postTask(t, s, `{"kind":"scrape_new_data"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakePublisher{}, &fakeGate{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakePublisher{}, &fakeGate{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
