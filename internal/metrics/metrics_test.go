package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserveHelpersDoNotPanic(t *testing.T) {
	ObservePublish("scrape_new_data")
	ObservePublishFailure()
	ObserveTaskConsumed("scrape_new_data")
	ObserveTaskAcked("scrape_new_data")
	ObserveTaskRejected("malformed")
	ObserveRowsUpserted(3)
	ObserveRowsUpserted(0)
	ObserveWatermarkAdvance("applicant_data_json")
	ObserveTaskDuration("scrape_new_data", 25*time.Millisecond)
	ObserveHTTPRequest(http.MethodPost, "/v1/tasks", http.StatusAccepted, time.Millisecond)
}

func TestHandlerServesRegistry(t *testing.T) {
	ObserveTaskConsumed("recompute_analytics")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "pipeline_tasks_consumed_total"))
}

func TestHTTPCodeBuckets(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2xx", httpCode(202))
	require.Equal(t, "3xx", httpCode(302))
	require.Equal(t, "4xx", httpCode(409))
	require.Equal(t, "5xx", httpCode(503))
}
