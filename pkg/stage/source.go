package stage

import (
	"context"
	"time"
)

// TickSource delivers periodic ticks carrying the elapsed time since the
// previous tick.
type TickSource interface {
	Ticks() <-chan time.Duration
	Stop()
}

// IntervalTicker is a TickSource backed by time.Ticker.
type IntervalTicker struct {
	ticker *time.Ticker
	ticks  chan time.Duration
	done   chan struct{}
}

// NewIntervalTicker starts a ticker firing every d.
func NewIntervalTicker(d time.Duration) *IntervalTicker {
	it := &IntervalTicker{
		ticker: time.NewTicker(d),
		ticks:  make(chan time.Duration, 1),
		done:   make(chan struct{}),
	}
	go it.loop()
	return it
}

func (it *IntervalTicker) loop() {
	last := time.Now()
	for {
		select {
		case <-it.done:
			return
		case now := <-it.ticker.C:
			elapsed := now.Sub(last)
			last = now
			// drop the tick if the consumer is behind
			select {
			case it.ticks <- elapsed:
			default:
			}
		}
	}
}

// Ticks returns the tick channel.
func (it *IntervalTicker) Ticks() <-chan time.Duration { return it.ticks }

// Stop stops the ticker. It must be called once.
func (it *IntervalTicker) Stop() {
	it.ticker.Stop()
	close(it.done)
}

// Run ticks s for every tick delivered by src until ctx is done.
// All graph work happens on the calling goroutine.
func (s *Stage) Run(ctx context.Context, src TickSource) error {
	defer src.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case elapsed := <-src.Ticks():
			s.Tick(elapsed)
		}
	}
}
