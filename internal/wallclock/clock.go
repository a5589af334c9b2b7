// Package wallclock reads the local time from a time-zone service and formats
// it for the clock overlay.
package wallclock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ServiceStartHour is the first hour of the day with bus service. Readings
// before it fall in the overnight window.
const ServiceStartHour = 6

// Reading is the wall-clock time reported by the time service.
type Reading struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Client polls the time service.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Fetch(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Reading{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reading{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("clock http status: %d", resp.StatusCode)
	}
	var r Reading
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Reading{}, fmt.Errorf("decode clock response: %w", err)
	}
	if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
		return Reading{}, fmt.Errorf("clock reading out of range: %02d:%02d", r.Hour, r.Minute)
	}
	return r, nil
}

// FormatTime renders a 24-hour reading on a 12-hour clock, e.g. "1:00 PM".
func FormatTime(hour, minute int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}

// Overnight reports whether the hour falls in the window without service.
func Overnight(hour int) bool {
	return hour >= 0 && hour < ServiceStartHour
}

// Display is the clock overlay text: noService overnight, the formatted time
// otherwise.
func Display(r Reading, noService string) string {
	if Overnight(r.Hour) {
		return noService
	}
	return FormatTime(r.Hour, r.Minute)
}
