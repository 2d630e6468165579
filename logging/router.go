package logging

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Sink consumes routed events.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// Config tunes the router queue and filtering.
type Config struct {
	BufferSize      int
	MinimumSeverity Severity
}

// DefaultConfig matches production defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 512, MinimumSeverity: SeverityInfo}
}

// Router fans events out to sinks from a single dispatch goroutine so the
// tick loop never blocks on slow sinks. When the queue is full events are
// dropped and counted rather than applying backpressure.
type Router struct {
	cfg      Config
	clock    Clock
	queue    chan Event
	done     chan struct{}
	sinks    map[string]Sink
	fallback *log.Logger
	wg       sync.WaitGroup
	closed   atomic.Bool

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
}

// RouterStats exposes counters for diagnostics.
type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// NewRouter builds a router over the named sinks and starts dispatch.
func NewRouter(clock Clock, cfg Config, sinks map[string]Sink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("router requires at least one sink")
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	r := &Router{
		cfg:      cfg,
		clock:    clock,
		queue:    make(chan Event, bufferSize),
		done:     make(chan struct{}),
		sinks:    sinks,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
	}
	r.wg.Add(1)
	go r.dispatch()
	return r, nil
}

// Publish enqueues an event, stamping time if unset. Never blocks. The queue
// channel stays open for the router's whole life so a publish racing Close
// cannot send on a closed channel; late events land in done and are ignored.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || r.closed.Load() {
		return
	}
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	select {
	case r.queue <- event:
		r.eventsTotal.Add(1)
	case <-r.done:
	default:
		r.droppedTotal.Add(1)
	}
}

// Stats returns routing counters.
func (r *Router) Stats() RouterStats {
	if r == nil {
		return RouterStats{}
	}
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

// Close flushes queued events and closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if r == nil || !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("logging router close timed out")
	}

	var firstErr error
	for name, sink := range r.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close sink %s: %w", name, err)
		}
	}
	return firstErr
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.queue:
			r.write(event)
		case <-r.done:
			// Drain whatever made it into the queue before shutdown won.
			for {
				select {
				case event := <-r.queue:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) write(event Event) {
	for name, sink := range r.sinks {
		if err := sink.Write(event); err != nil {
			r.fallback.Printf("sink %s write failed: %v", name, err)
		}
	}
}

var _ Publisher = (*Router)(nil)
