package main

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// refreshSink receives every refresh result that is newer than the last one.
type refreshSink interface {
	refresh(res refreshResult)
}

// poller fetches the bus list on a fixed interval and fans the result out to
// connected pages. Every fetch takes a generation number before it starts, so
// a slow fetch that finishes after a newer one is recognised as stale.
type poller struct {
	feed      BusFeedSource
	interval  time.Duration
	timeout   time.Duration
	sink      refreshSink
	publisher RefreshPublisher

	gen        atomic.Uint64
	triggering atomic.Bool
	mu         sync.Mutex
	latest     refreshResult
}

func newPoller(feed BusFeedSource, interval, timeout time.Duration, sink refreshSink, publisher RefreshPublisher) *poller {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &poller{
		feed:      feed,
		interval:  interval,
		timeout:   timeout,
		sink:      sink,
		publisher: publisher,
	}
}

func (p *poller) run(ctx context.Context) {
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			started := time.Now()
			p.tick(ctx)
			t.Reset(p.nextDelay(started, time.Now()))
		}
	}
}

// nextDelay returns how long to wait before the refresh after one that
// started at started, keeping refreshes a fixed interval apart however long
// the fetch took.
func (p *poller) nextDelay(started, now time.Time) time.Duration {
	if d := started.Add(p.interval).Sub(now); d > 0 {
		return d
	}
	return 0
}

// tick performs one refresh. A failed fetch is logged and treated as an
// empty bus list, which clears every page.
func (p *poller) tick(ctx context.Context) refreshResult {
	gen := p.gen.Add(1)
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	records, err := p.feed.Fetch(cctx)
	if err != nil {
		log.Printf("poll error: %v", err)
		records = nil
	} else {
		log.Printf("fetched buses: %d", len(records))
	}
	res := refreshResult{
		Generation: gen,
		FetchedAt:  time.Now().UTC(),
		Records:    records,
		Err:        err,
	}

	if !p.store(res) {
		log.Printf("discarding stale refresh %d", gen)
		return res
	}
	if p.sink != nil {
		p.sink.refresh(res)
	}
	if err := p.publisher.Publish(newRefreshEvent(res)); err != nil {
		log.Printf("publish error: %v", err)
	}
	return res
}

// trigger starts an extra refresh outside the regular schedule. It reports
// false, and starts nothing, while an earlier triggered refresh is running.
func (p *poller) trigger(ctx context.Context) bool {
	if !p.triggering.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer p.triggering.Store(false)
		p.tick(ctx)
	}()
	return true
}

func (p *poller) store(res refreshResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res.Generation <= p.latest.Generation {
		return false
	}
	p.latest = res
	return true
}

// lastResult returns the newest refresh result; Generation is zero before
// the first refresh finishes.
func (p *poller) lastResult() refreshResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}
