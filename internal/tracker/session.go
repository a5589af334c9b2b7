package tracker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownRoute = errors.New("route has no legend entry")
	ErrNoVehicles   = errors.New("route has no vehicles in the latest refresh")
	ErrUnknownEvent = errors.New("unknown event kind")
)

// EventKind identifies a page interaction.
type EventKind string

const EventFocusRoute EventKind = "focusRoute"

// Event is sent by the page when the user interacts with it.
type Event struct {
	Kind  EventKind `json:"kind"`
	Route string    `json:"route"`
}

// View is a map center and zoom level.
type View struct {
	Lat  Coord `json:"lat"`
	Lon  Coord `json:"lon"`
	Zoom int   `json:"zoom"`
}

// Options configures new sessions.
type Options struct {
	CountdownSeconds int
	Highlight        time.Duration
	View             View
	FocusZoom        int
}

// Focus is the outcome of a legend click: where to pan and which vehicle was
// picked.
type Focus struct {
	Route  string `json:"route"`
	Index  int    `json:"index"`
	Next   int    `json:"next"`
	View   View   `json:"view"`
	Marker Marker `json:"marker"`
}

// Snapshot is everything the page needs to redraw after a refresh.
type Snapshot struct {
	Session    string           `json:"session"`
	Generation uint64           `json:"generation"`
	Markers    []Marker         `json:"markers"`
	Legend     []string         `json:"legend"`
	Panel      []string         `json:"panel"`
	Countdown  string           `json:"countdown"`
	View       View             `json:"view"`
	Tracks     map[string]Track `json:"tracks"`
}

// Session is the controller behind one page.
type Session struct {
	ID string

	opts Options

	mu        sync.Mutex
	applied   uint64
	order     []*Marker
	byRoute   map[string][]*Marker
	byID      map[string]*Marker
	cursor    map[string]int
	seen      map[string]struct{}
	legend    []string
	panel     []string
	countdown *Countdown
	highlight *Highlighter
	onChange  func(Marker)
	closed    bool

	parked atomic.Bool
}

// NewSession creates a session with a fresh id.
func NewSession(opts Options) *Session {
	return &Session{
		ID:        uuid.NewString(),
		opts:      opts,
		byRoute:   make(map[string][]*Marker),
		byID:      make(map[string]*Marker),
		cursor:    make(map[string]int),
		seen:      make(map[string]struct{}),
		countdown: NewCountdown(opts.CountdownSeconds),
		highlight: NewHighlighter(),
	}
}

// OnMarkerChange registers fn to be called when a marker changes outside of a
// refresh, such as a highlight being restored.
func (s *Session) OnMarkerChange(fn func(Marker)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Generation returns the last applied refresh generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Refresh replaces every marker and the panel with the given bus list.
// Results from a generation not newer than the last applied one are stale
// and are ignored; the second return value reports whether the refresh was
// applied. An empty list clears the map.
func (s *Session) Refresh(gen uint64, records []BusRecord) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.applyLocked(gen, records) {
		return s.snapshotLocked(), false
	}
	s.countdown.Reset()
	return s.snapshotLocked(), true
}

// Catchup brings a page that attached between refreshes up to date: the bus
// list is applied if it is newer than what the session has, and the countdown
// is set to the seconds left until the next refresh instead of being reset.
func (s *Session) Catchup(gen uint64, records []BusRecord, remaining int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(gen, records)
	s.countdown.Set(remaining)
	return s.snapshotLocked()
}

func (s *Session) applyLocked(gen uint64, records []BusRecord) bool {
	if gen <= s.applied {
		return false
	}
	s.applied = gen

	s.highlight.CancelAll()
	s.order = make([]*Marker, 0, len(records))
	s.byRoute = make(map[string][]*Marker)
	s.byID = make(map[string]*Marker, len(records))
	s.panel = make([]string, 0, len(records))

	for _, r := range records {
		u := Normalize(r)
		s.panel = append(s.panel, PanelLine(u))

		m := newMarker(u)
		s.order = append(s.order, m)
		s.byRoute[u.RouteNumber] = append(s.byRoute[u.RouteNumber], m)
		s.byID[m.ID] = m

		if _, ok := s.seen[u.RouteNumber]; !ok {
			s.seen[u.RouteNumber] = struct{}{}
			s.legend = append(s.legend, u.RouteNumber)
			s.cursor[u.RouteNumber] = 0
		}
	}
	return true
}

// Dispatch handles an event sent by the page.
func (s *Session) Dispatch(ev Event) (Focus, error) {
	switch ev.Kind {
	case EventFocusRoute:
		return s.Focus(ev.Route)
	default:
		return Focus{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
}

// Focus picks the route's vehicle under the cursor, advances the cursor and
// highlights the picked marker. The cursor wraps on the number of vehicles
// the route has right now, not when its legend entry was created.
func (s *Session) Focus(route string) (Focus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[route]; !ok {
		return Focus{}, fmt.Errorf("%w: %q", ErrUnknownRoute, route)
	}
	markers := s.byRoute[route]
	n := len(markers)
	if n == 0 {
		return Focus{}, fmt.Errorf("%w: %q", ErrNoVehicles, route)
	}

	idx := s.cursor[route] % n
	next := (s.cursor[route] + 1) % n
	s.cursor[route] = next

	m := markers[idx]
	m.Icon = IconHighlight
	id := m.ID
	s.highlight.Schedule(id, s.opts.Highlight, func() { s.restore(id) })

	return Focus{
		Route:  route,
		Index:  idx,
		Next:   next,
		View:   View{Lat: m.Lat, Lon: m.Lon, Zoom: s.opts.FocusZoom},
		Marker: *m,
	}, nil
}

func (s *Session) restore(id string) {
	s.mu.Lock()
	m, ok := s.byID[id]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	m.Icon = IconPin
	changed := *m
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(changed)
	}
}

// Cursor returns the cycle cursor of a route.
func (s *Session) Cursor(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor[route]
}

// TickCountdown advances the countdown by one tick and returns its text. The
// boolean is false when the countdown was already at zero.
func (s *Session) TickCountdown() (string, bool) {
	ok := s.countdown.Tick()
	return s.countdown.String(), ok
}

// Snapshot returns the current render state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	markers := make([]Marker, len(s.order))
	for i, m := range s.order {
		markers[i] = *m
	}
	return Snapshot{
		Session:    s.ID,
		Generation: s.applied,
		Markers:    markers,
		Legend:     copyStrings(s.legend),
		Panel:      copyStrings(s.panel),
		Countdown:  s.countdown.String(),
		View:       s.opts.View,
		Tracks:     buildTracks(s.legend, s.byRoute),
	}
}

// Close cancels pending highlight restores. The session must not be used
// afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.onChange = nil
	s.mu.Unlock()
	s.highlight.CancelAll()
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
