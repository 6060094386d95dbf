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
}

// Dispatcher forwards audit events to a sink from a single goroutine.
// Events lost to a full buffer, a cancelled caller or an expired Close
// deadline are counted per event type.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event

	// sinkCtx is passed to every sink Emit and cancelled when Close gives up.
	sinkCtx    context.Context
	cancelSink context.CancelFunc
	done       chan struct{}
	finished   chan struct{}

	dropMu  sync.Mutex
	drops   map[string]uint64
	dropped atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewDispatcher starts a dispatcher goroutine. It returns nil when auditing
// is disabled; every method is nil-safe.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	sinkCtx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:        cfg,
		sink:       sink,
		ch:         make(chan Event, cfg.BufferSize),
		sinkCtx:    sinkCtx,
		cancelSink: cancel,
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
		drops:      make(map[string]uint64),
	}

	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer close(d.finished)

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver hands event to the sink, or counts it as dropped once the sink
// context is cancelled.
func (d *Dispatcher) deliver(event Event) {
	if d.sinkCtx.Err() != nil {
		d.drop(event.EventType)
		return
	}
	d.sink.Emit(d.sinkCtx, event)
}

// Emit queues event. Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.drop(event.EventType)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop(event.EventType)
	case <-d.done:
	}
}

// Close stops accepting events and drains the buffer into the sink. If ctx
// ends first, the sink context is cancelled, whatever is still queued is
// counted as dropped and ctx.Err() is returned. Later calls return the
// first result.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)

		select {
		case <-d.finished:
			d.cancelSink()
		case <-ctx.Done():
			d.cancelSink()
			d.closeErr = ctx.Err()
		}
	})
	return d.closeErr
}

func (d *Dispatcher) drop(eventType string) {
	d.dropped.Add(1)
	d.dropMu.Lock()
	d.drops[eventType]++
	d.dropMu.Unlock()
}

// Dropped reports the total number of dropped events.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType returns a copy of the drop counts keyed by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	if d == nil {
		return map[string]uint64{}
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	out := make(map[string]uint64, len(d.drops))
	for k, v := range d.drops {
		out[k] = v
	}
	return out
}
