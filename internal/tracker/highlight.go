package tracker

import (
	"sync"
	"time"
)

type highlightTask struct {
	timer *time.Timer
	seq   uint64
}

// Highlighter runs at most one pending restore per marker. Scheduling a key
// that already has a pending restore replaces it, so the restore always fires
// a full duration after the latest trigger.
type Highlighter struct {
	mu    sync.Mutex
	seq   uint64
	tasks map[string]*highlightTask
}

func NewHighlighter() *Highlighter {
	return &Highlighter{tasks: make(map[string]*highlightTask)}
}

// Schedule arranges for restore to run after d, cancelling any restore
// already pending for key.
func (h *Highlighter) Schedule(key string, d time.Duration, restore func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tasks[key]; ok {
		t.timer.Stop()
	}
	h.seq++
	seq := h.seq
	task := &highlightTask{seq: seq}
	task.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		cur, ok := h.tasks[key]
		if !ok || cur.seq != seq {
			// replaced or cancelled after the timer fired
			h.mu.Unlock()
			return
		}
		delete(h.tasks, key)
		h.mu.Unlock()
		restore()
	})
	h.tasks[key] = task
}

// Cancel drops the pending restore for key, if any.
func (h *Highlighter) Cancel(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tasks[key]; ok {
		t.timer.Stop()
		delete(h.tasks, key)
	}
}

// CancelAll drops every pending restore.
func (h *Highlighter) CancelAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, t := range h.tasks {
		t.timer.Stop()
		delete(h.tasks, key)
	}
}

// Pending reports whether key has a restore waiting to run.
func (h *Highlighter) Pending(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.tasks[key]
	return ok
}
