package main

import (
	"time"

	"bustracker/internal/tracker"
)

// messageType tags every message pushed to a page.
type messageType string

const (
	msgSnapshot  messageType = "snapshot"
	msgCountdown messageType = "countdown"
	msgClock     messageType = "clock"
	msgFocus     messageType = "focus"
	msgMarker    messageType = "marker"
	msgError     messageType = "error"
)

// message is the envelope of every websocket frame sent to a page.
type message struct {
	Type messageType `json:"type"`
	Data any         `json:"data"`
}

// refreshResult is the outcome of one fetch of the bus feed. A failed fetch
// has Err set and no records.
type refreshResult struct {
	Generation uint64
	FetchedAt  time.Time
	Records    []tracker.BusRecord
	Err        error
}

// RefreshEvent is the summary published after every refresh.
type RefreshEvent struct {
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Records    int       `json:"records"`
	Routes     []string  `json:"routes"`
	Error      string    `json:"error,omitempty"`
}

func newRefreshEvent(res refreshResult) RefreshEvent {
	ev := RefreshEvent{
		Generation: res.Generation,
		FetchedAt:  res.FetchedAt,
		Records:    len(res.Records),
		Routes:     routeNumbers(res.Records),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	return ev
}

// routeNumbers lists the distinct route numbers of records in first-seen order.
func routeNumbers(records []tracker.BusRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range records {
		n := tracker.Normalize(r).RouteNumber
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
