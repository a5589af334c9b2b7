package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bustracker/internal/tracker"
)

type testApp struct {
	feed     *fakeFeed
	registry *tracker.Registry
	hub      *wsHub
	poller   *poller
	server   *httptest.Server
}

func newTestApp(t *testing.T, records []tracker.BusRecord) *testApp {
	t.Helper()
	a := &testApp{feed: &fakeFeed{records: records}}
	a.registry = tracker.NewRegistry(tracker.Options{
		CountdownSeconds: 300,
		Highlight:        20 * time.Millisecond,
		View:             tracker.View{Lat: 47.5615, Lon: -52.7126, Zoom: 13},
		FocusZoom:        14,
	}, 10, time.Minute)
	a.hub = newHub(a.registry, 300, func() refreshResult { return a.poller.lastResult() })
	a.poller = newPoller(a.feed, time.Hour, time.Second, a.hub, nil)
	a.server = httptest.NewServer(newRouter([]string{"*"}, "", a.hub, a.poller, a.registry))
	t.Cleanup(func() {
		a.hub.closeAll()
		a.server.Close()
		a.registry.Close()
	})
	return a
}

func (a *testApp) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type inbound struct {
	Type messageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readUntil reads frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want messageType) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg inbound
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return msg.Data
		}
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) tracker.Snapshot {
	t.Helper()
	var snap snapshotFrame
	require.NoError(t, json.Unmarshal(readUntil(t, conn, msgSnapshot), &snap))
	return snap.Snapshot()
}

// snapshotFrame mirrors tracker.Snapshot with nullable coordinates decoded.
type snapshotFrame struct {
	Session    string   `json:"session"`
	Generation uint64   `json:"generation"`
	Legend     []string `json:"legend"`
	Panel      []string `json:"panel"`
	Countdown  string   `json:"countdown"`
	Markers    []struct {
		ID          string       `json:"id"`
		RouteNumber string       `json:"routeNumber"`
		Lat         *float64     `json:"lat"`
		Icon        tracker.Icon `json:"icon"`
	} `json:"markers"`
}

func (f snapshotFrame) Snapshot() tracker.Snapshot {
	s := tracker.Snapshot{
		Session:    f.Session,
		Generation: f.Generation,
		Legend:     f.Legend,
		Panel:      f.Panel,
		Countdown:  f.Countdown,
	}
	for _, m := range f.Markers {
		mk := tracker.Marker{ID: m.ID, RouteNumber: m.RouteNumber, Icon: m.Icon}
		if m.Lat != nil {
			mk.Lat = tracker.Coord(*m.Lat)
		}
		s.Markers = append(s.Markers, mk)
	}
	return s
}

func TestWebSocketReceivesLatestSnapshot(t *testing.T) {
	a := newTestApp(t, []tracker.BusRecord{
		{Route: "1-A", Lat: "47.1", Lon: "-52.1"},
		{Route: "1-B", Lat: "not a number", Lon: "-52.2"},
	})
	a.poller.tick(context.Background())

	conn := a.dial(t, "")
	snap := readSnapshot(t, conn)
	assert.NotEmpty(t, snap.Session)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Markers, 2)
	assert.Equal(t, []string{"1"}, snap.Legend)
	assert.Equal(t, "05:00", snap.Countdown)
	assert.Equal(t, tracker.Coord(0), snap.Markers[1].Lat, "NaN latitude is sent as null")
}

func TestWebSocketFocusRoute(t *testing.T) {
	a := newTestApp(t, []tracker.BusRecord{
		{Route: "4", Lat: "47.1", Lon: "-52.1"},
		{Route: "4-X", Lat: "47.2", Lon: "-52.2"},
	})
	a.poller.tick(context.Background())
	conn := a.dial(t, "")
	readSnapshot(t, conn)

	var indexes []int
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(tracker.Event{Kind: tracker.EventFocusRoute, Route: "4"}))
		var f struct {
			Index  int            `json:"index"`
			Marker tracker.Marker `json:"marker"`
		}
		require.NoError(t, json.Unmarshal(readUntil(t, conn, msgFocus), &f))
		assert.Equal(t, tracker.IconHighlight, f.Marker.Icon)
		indexes = append(indexes, f.Index)
	}
	assert.Equal(t, []int{0, 1, 0}, indexes)

	// the highlight is restored and pushed as a marker update
	var m struct {
		Icon tracker.Icon `json:"icon"`
	}
	require.NoError(t, json.Unmarshal(readUntil(t, conn, msgMarker), &m))
	assert.Equal(t, tracker.IconPin, m.Icon)
}

func TestWebSocketBadEvents(t *testing.T) {
	a := newTestApp(t, nil)
	conn := a.dial(t, "")
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var text string
	require.NoError(t, json.Unmarshal(readUntil(t, conn, msgError), &text))
	assert.Contains(t, text, "malformed event")

	require.NoError(t, conn.WriteJSON(tracker.Event{Kind: tracker.EventFocusRoute, Route: "99"}))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, msgError), &text))
	assert.Contains(t, text, tracker.ErrUnknownRoute.Error())
}

func TestWebSocketRefreshFailureClearsPage(t *testing.T) {
	a := newTestApp(t, []tracker.BusRecord{{Route: "2", Lat: "1", Lon: "1"}})
	a.poller.tick(context.Background())
	conn := a.dial(t, "")
	require.Len(t, readSnapshot(t, conn).Markers, 1)

	a.feed.mu.Lock()
	a.feed.records, a.feed.err = nil, errors.New("upstream unreachable")
	a.feed.mu.Unlock()
	a.poller.tick(context.Background())

	snap := readSnapshot(t, conn)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.Empty(t, snap.Markers)
	assert.Empty(t, snap.Panel)
	assert.Equal(t, []string{"2"}, snap.Legend)
}

func TestWebSocketResumesSession(t *testing.T) {
	a := newTestApp(t, []tracker.BusRecord{{Route: "6", Lat: "1", Lon: "1"}, {Route: "6", Lat: "2", Lon: "2"}})
	a.poller.tick(context.Background())

	conn := a.dial(t, "")
	first := readSnapshot(t, conn)
	require.NoError(t, conn.WriteJSON(tracker.Event{Kind: tracker.EventFocusRoute, Route: "6"}))
	readUntil(t, conn, msgFocus)
	conn.Close()

	assert.Eventually(t, func() bool { return a.registry.Parked() == 1 }, time.Second, 5*time.Millisecond)

	again := a.dial(t, "?session="+first.Session)
	snap := readSnapshot(t, again)
	assert.Equal(t, first.Session, snap.Session)

	require.NoError(t, again.WriteJSON(tracker.Event{Kind: tracker.EventFocusRoute, Route: "6"}))
	var f struct {
		Index int `json:"index"`
	}
	require.NoError(t, json.Unmarshal(readUntil(t, again, msgFocus), &f))
	assert.Equal(t, 1, f.Index, "cursor survives the reconnect")
}

func TestWebSocketLateJoinerSeesRemainingCountdown(t *testing.T) {
	a := newTestApp(t, []tracker.BusRecord{{Route: "2", Lat: "47.1", Lon: "-52.1"}})
	a.poller.tick(context.Background())

	first := a.dial(t, "")
	assert.Equal(t, "05:00", readSnapshot(t, first).Countdown)
	for i := 0; i < 65; i++ {
		a.hub.tickCountdown()
	}

	late := a.dial(t, "")
	snap := readSnapshot(t, late)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Markers, 1)
	assert.Equal(t, "03:55", snap.Countdown)

	a.poller.tick(context.Background())
	assert.Equal(t, "05:00", readSnapshot(t, late).Countdown)
}

func TestWebSocketResumedPageSeesRemainingCountdown(t *testing.T) {
	a := newTestApp(t, []tracker.BusRecord{{Route: "2", Lat: "47.1", Lon: "-52.1"}})
	a.poller.tick(context.Background())

	conn := a.dial(t, "")
	first := readSnapshot(t, conn)
	conn.Close()
	require.Eventually(t, func() bool { return a.registry.Parked() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 10; i++ {
		a.hub.tickCountdown()
	}

	again := a.dial(t, "?session="+first.Session)
	snap := readSnapshot(t, again)
	assert.Equal(t, first.Session, snap.Session)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, "04:50", snap.Countdown)
}

func TestCountdownAndClockBroadcast(t *testing.T) {
	a := newTestApp(t, nil)
	a.poller.tick(context.Background())
	conn := a.dial(t, "")
	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return a.hub.count() == 1 }, time.Second, 5*time.Millisecond)

	a.hub.tickCountdown()
	var text string
	require.NoError(t, json.Unmarshal(readUntil(t, conn, msgCountdown), &text))
	assert.Equal(t, "04:59", text)

	a.hub.broadcastClock("1:00 PM")
	require.NoError(t, json.Unmarshal(readUntil(t, conn, msgClock), &text))
	assert.Equal(t, "1:00 PM", text)
}

func TestHealthAndBusesEndpoints(t *testing.T) {
	a := newTestApp(t, []tracker.BusRecord{{Route: "10-A", Lat: "47.5", Lon: "-52.7", CurrentLocation: "Water St"}})

	resp, err := http.Get(a.server.URL + "/api/health")
	require.NoError(t, err)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, uint64(0), health.Generation)
	assert.Nil(t, health.LastRefresh)

	a.poller.tick(context.Background())

	resp, err = http.Get(a.server.URL + "/api/buses")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var buses struct {
		Generation uint64 `json:"generation"`
		Buses      []struct {
			RouteNumber string  `json:"routeNumber"`
			Lat         float64 `json:"lat"`
			Location    string  `json:"location"`
			Status      string  `json:"status"`
		} `json:"buses"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&buses))
	assert.Equal(t, uint64(1), buses.Generation)
	require.Len(t, buses.Buses, 1)
	assert.Equal(t, "10", buses.Buses[0].RouteNumber)
	assert.Equal(t, 47.5, buses.Buses[0].Lat)
	assert.Equal(t, "Water St", buses.Buses[0].Location)
	assert.Equal(t, tracker.Unknown, buses.Buses[0].Status)
}

func TestHealthReportsDegradedFeed(t *testing.T) {
	a := newTestApp(t, nil)
	a.feed.err = errors.New("timeout")
	a.poller.tick(context.Background())

	resp, err := http.Get(a.server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "timeout", health.LastError)
	assert.Equal(t, 0, health.Buses)
}

func TestRefreshEndpoint(t *testing.T) {
	a := newTestApp(t, []tracker.BusRecord{{Route: "1"}})

	resp, err := http.Post(a.server.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "refreshing", body["status"])

	assert.Eventually(t, func() bool { return a.poller.lastResult().Generation == 1 }, time.Second, 5*time.Millisecond)
}

func TestUnknownPath(t *testing.T) {
	a := newTestApp(t, nil)
	resp, err := http.Get(a.server.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
