package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSnapshotStore struct {
	data []byte
	err  error
	key  string
}

func (f *fakeSnapshotStore) Get(_ context.Context, key string) ([]byte, error) {
	f.key = key
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestSnapshotSourceFiltersBySortKey(t *testing.T) {
	t.Parallel()

	store := &fakeSnapshotStore{data: []byte(`[
		{"url":"u1","date_added":"2026-01-01"},
		{"url":"u2","date_added":"2026-01-02"},
		{"url":"u3","date_added":"2026-01-03"},
		"not-an-object"
	]`)}
	src, err := NewSnapshotSource(store, "applicant_data.json", zap.NewNop())
	require.NoError(t, err)

	rows, err := src.FetchSince(context.Background(), "applicant_data_json", "2026-01-01")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "u2", rows[0]["url"])
	require.Equal(t, "u3", rows[1]["url"])
	require.Equal(t, "applicant_data.json", store.key)
}

func TestSnapshotSourceNoCursorReturnsAll(t *testing.T) {
	t.Parallel()

	store := &fakeSnapshotStore{data: []byte(`[
		{"url":"u1","date_added":"2026-01-01"},
		{"url":"u2","date_added":"2026-01-02"}
	]`)}
	src, err := NewSnapshotSource(store, "applicant_data.json", nil)
	require.NoError(t, err)

	rows, err := src.FetchSince(context.Background(), "applicant_data_json", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestSnapshotSourceBadJSON(t *testing.T) {
	t.Parallel()

	store := &fakeSnapshotStore{data: []byte(`{not-json`)}
	src, err := NewSnapshotSource(store, "applicant_data.json", nil)
	require.NoError(t, err)

	_, err = src.FetchSince(context.Background(), "applicant_data_json", "")
	require.Error(t, err)
}

func TestHTTPSourcePassesCursorThrough(t *testing.T) {
	t.Parallel()

	var gotSource, gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSource = r.URL.Query().Get("source")
		gotSince = r.URL.Query().Get("since")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"url":"u9","date_added":"2026-02-01"}]`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, 5*time.Second)
	require.NoError(t, err)

	rows, err := src.FetchSince(context.Background(), "applicant_data_json", "2026-01-31")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "u9", rows[0]["url"])
	require.Equal(t, "applicant_data_json", gotSource)
	require.Equal(t, "2026-01-31", gotSince)
}

func TestHTTPSourceNon200IsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = src.FetchSince(context.Background(), "applicant_data_json", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
