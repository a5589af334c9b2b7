package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bustracker/internal/tracker"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is one connected page and the session that backs it.
type wsClient struct {
	conn    *websocket.Conn
	session *tracker.Session
	writeMu sync.Mutex
}

func (c *wsClient) send(t messageType, data any) error {
	payload, err := json.Marshal(message{Type: t, Data: data})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

type wsHub struct {
	registry *tracker.Registry
	latest   func() refreshResult

	// countdown tracks the time left until the next fetched refresh; pages
	// that attach between refreshes start from it.
	countdown *tracker.Countdown

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub(registry *tracker.Registry, countdownSeconds int, latest func() refreshResult) *wsHub {
	return &wsHub{
		registry:  registry,
		latest:    latest,
		countdown: tracker.NewCountdown(countdownSeconds),
		clients:   make(map[*wsClient]struct{}),
	}
}

func (h *wsHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	session, resumed := h.registry.Attach(r.URL.Query().Get("session"))
	c := &wsClient{conn: conn, session: session}
	session.OnMarkerChange(func(m tracker.Marker) {
		if err := c.send(msgMarker, m); err != nil {
			h.drop(c)
		}
	})
	h.add(c)
	log.Printf("page connected: session=%s resumed=%t", session.ID, resumed)

	// Render the most recent bus list right away instead of waiting for the
	// next refresh.
	res := h.latest()
	snapshot := session.Catchup(res.Generation, res.Records, h.countdown.Remaining())
	if err := c.send(msgSnapshot, snapshot); err != nil {
		h.drop(c)
		return
	}
	go h.readPump(c)
}

func (h *wsHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// drop disconnects a page and parks its session for resumption. It is safe
// to call more than once.
func (h *wsHub) drop(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
	if !ok {
		return
	}
	if err := h.registry.Park(c.session); err != nil {
		log.Printf("park session %s: %v", c.session.ID, err)
		c.session.Close()
	}
	log.Printf("page disconnected: session=%s", c.session.ID)
}

func (h *wsHub) connected() []*wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// refresh applies a refresh result to every connected page.
func (h *wsHub) refresh(res refreshResult) {
	h.countdown.Reset()
	for _, c := range h.connected() {
		snapshot, applied := c.session.Refresh(res.Generation, res.Records)
		if !applied {
			continue
		}
		if err := c.send(msgSnapshot, snapshot); err != nil {
			h.drop(c)
		}
	}
}

// tickCountdown advances every page's countdown by one tick.
func (h *wsHub) tickCountdown() {
	h.countdown.Tick()
	for _, c := range h.connected() {
		text, changed := c.session.TickCountdown()
		if !changed {
			continue
		}
		if err := c.send(msgCountdown, text); err != nil {
			h.drop(c)
		}
	}
}

func (h *wsHub) broadcastClock(text string) {
	for _, c := range h.connected() {
		if err := c.send(msgClock, text); err != nil {
			h.drop(c)
		}
	}
}

func (h *wsHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll disconnects every page.
func (h *wsHub) closeAll() {
	for _, c := range h.connected() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		h.drop(c)
	}
}

// readPump handles events sent by the page until the connection closes.
func (h *wsHub) readPump(c *wsClient) {
	defer h.drop(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ev tracker.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			if err := c.send(msgError, "malformed event: "+err.Error()); err != nil {
				return
			}
			continue
		}
		focus, err := c.session.Dispatch(ev)
		if err != nil {
			if err := c.send(msgError, err.Error()); err != nil {
				return
			}
			continue
		}
		if err := c.send(msgFocus, focus); err != nil {
			return
		}
	}
}
