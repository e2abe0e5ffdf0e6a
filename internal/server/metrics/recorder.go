// Package metrics records per-operation duration and outcome counters for the
// upload pipeline. Recording is fire-and-forget: it never blocks or fails the
// caller.
package metrics

import (
	"sync"
	"time"
)

// Operation names used by the upload coordinator.
const (
	OpObjectStoreUpload     = "objectstore.upload"
	OpRecordStoreSave       = "recordstore.save"
	OpCompensateObjectStore = "compensate.objectstore.delete"
	OpRollbackObjectStore   = "rollback.objectstore.delete"
	OpRollbackRecordStore   = "rollback.recordstore.delete"
	OpCacheInvalidate       = "cache.invalidate"
	OpTransactionExecute    = "transaction.execute"
)

// Event is one measured operation.
type Event struct {
	Operation string
	Duration  time.Duration
	Success   bool
	UserID    string
	Metadata  map[string]string
}

// Recorder accepts events.
type Recorder interface {
	RecordEvent(e Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) RecordEvent(Event) {}

// AsyncRecorder hands events to a background goroutine through a bounded
// queue. When the queue is full the event is dropped and onDrop is called.
type AsyncRecorder struct {
	next   Recorder
	onDrop func()

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewAsyncRecorder starts the delivery goroutine. Call Close to drain it.
func NewAsyncRecorder(next Recorder, buffer int, onDrop func()) *AsyncRecorder {
	if buffer <= 0 {
		buffer = 1024
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	a := &AsyncRecorder{
		next:   next,
		onDrop: onDrop,
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncRecorder) RecordEvent(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.onDrop()
		return
	}
	select {
	case a.queue <- e:
	default:
		a.onDrop()
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (a *AsyncRecorder) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AsyncRecorder) run() {
	defer close(a.done)
	for e := range a.queue {
		a.deliver(e)
	}
}

func (a *AsyncRecorder) deliver(e Event) {
	// a misbehaving sink must not take the delivery loop down
	defer func() { _ = recover() }()
	a.next.RecordEvent(e)
}

// Since is a helper for the common pattern
//
//	start := time.Now()
//	err := call()
//	rec.RecordEvent(metrics.Since(op, start, err == nil, userID))
func Since(op string, start time.Time, success bool, userID string) Event {
	return Event{Operation: op, Duration: time.Since(start), Success: success, UserID: userID}
}
