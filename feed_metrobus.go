package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bustracker/internal/tracker"
)

type BusFeedSource interface {
	Fetch(ctx context.Context) ([]tracker.BusRecord, error)
}

// MetrobusFeedSource reads the flat JSON list of bus positions. The endpoint
// rejects requests without a browser user agent.
type MetrobusFeedSource struct {
	url        string
	userAgent  string
	httpClient *http.Client
}

func NewMetrobusFeedSource(url, userAgent string, timeout time.Duration) *MetrobusFeedSource {
	return &MetrobusFeedSource{
		url:        url,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *MetrobusFeedSource) Fetch(ctx context.Context) ([]tracker.BusRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrobus http status: %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var records []tracker.BusRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode metrobus feed: %w", err)
	}
	return records, nil
}
