package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Now stamps events queued without a timestamp. Nil uses time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of what the dispatcher has relayed.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	// ByType counts delivered events per event type.
	ByType map[string]uint64
	// Failures counts delivered unsuccessful events per failure kind.
	Failures map[string]uint64
}

// Dispatcher relays gate lifecycle events to a [Sink] on its own goroutine, so
// a slow sink never holds up a request. Credential metadata is stripped before
// an event is queued. A nil Dispatcher is valid and drops everything silently.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	dropIfFull bool
	now        func() time.Time

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool

	delivered atomic.Uint64
	dropped   atomic.Uint64

	// byType and failures are written by the relay goroutine only.
	mu       sync.Mutex
	byType   map[string]uint64
	failures map[string]uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		now:        now,
		byType:     make(map[string]uint64),
		failures:   make(map[string]uint64),
	}
	d.wg.Add(1)
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)

	d.mu.Lock()
	d.byType[event.EventType]++
	if !event.Success {
		d.failures[failureKind(event)]++
	}
	d.mu.Unlock()
}

// Emit queues event. With DropIfFull a full queue drops the event at once;
// otherwise Emit waits for space until ctx is done. Events emitted after
// Close are discarded without being counted.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopped.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}
	event.Metadata = scrub(event.Metadata)

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-d.stop:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and blocks until the queue is drained.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped returns the number of events lost to a full queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Stats returns a copy of the relay counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Stats{
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		ByType:    make(map[string]uint64, len(d.byType)),
		Failures:  make(map[string]uint64, len(d.failures)),
	}
	for k, v := range d.byType {
		s.ByType[k] = v
	}
	for k, v := range d.failures {
		s.Failures[k] = v
	}
	return s
}
