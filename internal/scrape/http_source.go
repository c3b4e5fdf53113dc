package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gradstream/applicant-pipeline/internal/record"
)

// HTTPSource fetches rows from the scrape collaborator's JSON export
// endpoint. The collaborator pre-filters by the since cursor, so rows
// come back ready to normalize.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource builds a source for the collaborator at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("collaborator base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse collaborator base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// FetchSince calls GET {base}/rows?source=...&since=... and decodes the
// JSON array of row objects. Non-object items are discarded.
func (s *HTTPSource) FetchSince(ctx context.Context, source, since string) ([]record.Raw, error) {
	endpoint, err := url.Parse(s.baseURL + "/rows")
	if err != nil {
		return nil, fmt.Errorf("build collaborator url: %w", err)
	}
	q := endpoint.Query()
	q.Set("source", source)
	if since != "" {
		q.Set("since", since)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build collaborator request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch collaborator rows: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collaborator returned status %d", resp.StatusCode)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode collaborator rows: %w", err)
	}

	rows := make([]record.Raw, 0, len(items))
	for _, item := range items {
		var row record.Raw
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
