package freebusy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/studyhall-labs/planner-api/internal/models"
)

// HTTPSource fetches busy windows from an external free/busy endpoint.
// The endpoint receives org, user, from and to as query parameters and
// responds with `{"windows": [{"start": ..., "end": ...}]}`.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource constructs the provider client with a bounded timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type freeBusyPayload struct {
	Windows []struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"windows"`
}

// BusyWindows implements Source.
func (s *HTTPSource) BusyWindows(ctx context.Context, orgID, userID string, from, to time.Time) ([]models.FreeBusyWindow, error) {
	if degenerateRange(from, to) {
		return nil, nil
	}

	endpoint, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse freebusy url: %w", err)
	}
	q := endpoint.Query()
	q.Set("org", orgID)
	q.Set("user", userID)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build freebusy request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("freebusy request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("freebusy provider returned status %d", resp.StatusCode)
	}

	var payload freeBusyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode freebusy response: %w", err)
	}

	windows := make([]models.FreeBusyWindow, 0, len(payload.Windows))
	for _, w := range payload.Windows {
		windows = append(windows, models.FreeBusyWindow{
			Start:    w.Start,
			End:      w.End,
			BusyOnly: true,
			Source:   "external",
		})
	}
	return windows, nil
}
