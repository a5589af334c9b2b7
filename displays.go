package main

import (
	"context"
	"log"
	"time"

	"bustracker/internal/wallclock"
)

// runCountdown ticks the refresh countdown of every connected page.
func runCountdown(ctx context.Context, h *wsHub, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.tickCountdown()
		}
	}
}

type clockSource interface {
	Fetch(ctx context.Context) (wallclock.Reading, error)
}

// runClock polls the time service and pushes the clock overlay text to every
// connected page. Failed polls are logged and skipped.
func runClock(ctx context.Context, h *wsHub, src clockSource, interval, timeout time.Duration, noService string) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if h.count() == 0 {
				continue
			}
			if text, ok := pollClock(ctx, src, timeout, noService); ok {
				h.broadcastClock(text)
			}
		}
	}
}

func pollClock(ctx context.Context, src clockSource, timeout time.Duration, noService string) (string, bool) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	r, err := src.Fetch(cctx)
	if err != nil {
		log.Printf("clock error: %v", err)
		return "", false
	}
	return wallclock.Display(r, noService), true
}
