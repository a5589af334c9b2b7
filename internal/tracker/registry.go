package tracker

import (
	"time"

	"github.com/bluele/gcache"
)

// Registry hands out sessions to connecting pages. A session whose page
// disconnects is parked for a while so a reconnecting page can resume its
// legend and cycle cursors; parked sessions are closed when they expire or
// are evicted.
type Registry struct {
	opts   Options
	parked gcache.Cache
}

func NewRegistry(opts Options, maxParked int, ttl time.Duration) *Registry {
	closeParked := func(_, value interface{}) {
		if s, ok := value.(*Session); ok && s.parked.Load() {
			s.Close()
		}
	}
	return &Registry{
		opts: opts,
		parked: gcache.New(maxParked).
			LRU().
			Expiration(ttl).
			EvictedFunc(closeParked).
			PurgeVisitorFunc(closeParked).
			Build(),
	}
}

// Attach resumes the parked session with the given id, or starts a new one.
// The boolean reports whether a session was resumed.
func (r *Registry) Attach(id string) (*Session, bool) {
	if id != "" {
		if v, err := r.parked.Get(id); err == nil {
			if s, ok := v.(*Session); ok {
				s.parked.Store(false)
				r.parked.Remove(id)
				return s, true
			}
		}
	}
	return NewSession(r.opts), false
}

// Park keeps a detached session until it expires.
func (r *Registry) Park(s *Session) error {
	s.OnMarkerChange(nil)
	s.parked.Store(true)
	return r.parked.Set(s.ID, s)
}

// Parked returns the number of sessions waiting to be resumed.
func (r *Registry) Parked() int {
	return r.parked.Len(true)
}

// Close closes every parked session.
func (r *Registry) Close() {
	r.parked.Purge()
}
