package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// OnDrop, when set, runs synchronously for every event dropped because
	// the buffer was full.
	OnDrop func(Event)
}

// Stats counts events that left the dispatcher.
type Stats struct {
	Delivered uint64
	Dropped   uint64
}

// Dispatcher relays events from request goroutines to its sinks on a single
// delivery goroutine, so sinks see events in emit order and never run
// concurrently with each other. A nil *Dispatcher discards everything.
type Dispatcher struct {
	cfg   Config
	sinks []Sink
	ch    chan Event

	// mu guards closing ch against concurrent sends.
	mu     sync.RWMutex
	closed bool

	finished  chan struct{}
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts the delivery goroutine and fans each event out to
// every non-nil sink. It returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sinks:    active,
		ch:       make(chan Event, cfg.BufferSize),
		finished: make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.finished)

	ctx := context.Background()
	for event := range d.ch {
		for _, s := range d.sinks {
			s.Emit(ctx, event)
		}
		d.delivered.Add(1)
	}
}

// Emit queues event. With DropIfFull it never blocks; otherwise it waits for
// buffer space or ctx cancellation. Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
			if d.cfg.OnDrop != nil {
				d.cfg.OnDrop(event)
			}
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	}
}

// Close stops accepting events and returns once every buffered event has
// reached the sinks. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()

	<-d.finished
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
	}
}
