package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// OnDrop, when set, runs on the emitting goroutine each time an event is dropped.
	OnDrop func(Event)
}

// redactedKeys are metadata key fragments whose values never leave the process.
var redactedKeys = []string{"token", "secret", "password", "hash", "authorization"}

const redacted = "[redacted]"

// Dispatcher relays events from request goroutines to one or more sinks on a
// single worker goroutine. Sinks see events in emission order.
type Dispatcher struct {
	cfg   Config
	sinks []Sink
	queue chan Event

	quit   chan struct{}
	exited chan struct{}
	once   sync.Once
	closed atomic.Bool

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts a dispatcher fanning out to sinks, or returns nil when
// cfg.Enabled is false. A nil *Dispatcher is valid and discards everything.
func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		live = append(live, NoOpSink{})
	}

	d := &Dispatcher{
		cfg:    cfg,
		sinks:  live,
		queue:  make(chan Event, cfg.BufferSize),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.exited)

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.quit:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ev.Metadata = redactMetadata(ev.Metadata)
	ctx := context.Background()
	for _, s := range d.sinks {
		s.Emit(ctx, ev)
	}
	d.delivered.Add(1)
}

// redactMetadata returns md with credential-like values masked. md itself is
// left untouched.
func redactMetadata(md map[string]string) map[string]string {
	var out map[string]string
	for k := range md {
		if !isSensitiveKey(k) {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(md))
			for k2, v2 := range md {
				out[k2] = v2
			}
		}
		out[k] = redacted
	}
	if out == nil {
		return md
	}
	return out
}

func isSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, frag := range redactedKeys {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// Emit queues ev. With DropIfFull it never blocks; otherwise it waits for
// buffer space, ctx cancellation or Close.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.cfg.DropIfFull {
		select {
		case d.queue <- ev:
		case <-ctx.Done():
		case <-d.quit:
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-d.quit:
	default:
		d.dropped.Add(1)
		if d.cfg.OnDrop != nil {
			d.cfg.OnDrop(ev)
		}
	}
}

// Close stops accepting events, flushes the queue to the sinks and waits for
// the worker to exit. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.quit)
		<-d.exited
	})
}

// Dropped reports how many events were discarded under DropIfFull.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered reports how many events reached the sinks.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
