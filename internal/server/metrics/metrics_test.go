package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_CountsByOperationAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder("test", reg)
	require.NoError(t, err)

	r.RecordEvent(Event{Operation: OpObjectStoreUpload, Duration: 10 * time.Millisecond, Success: true})
	r.RecordEvent(Event{Operation: OpObjectStoreUpload, Duration: 20 * time.Millisecond, Success: false})
	r.RecordEvent(Event{Operation: OpObjectStoreUpload, Duration: 5 * time.Millisecond, Success: false})
	r.RecordEvent(Event{Operation: OpRollbackRecordStore, Success: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.total.WithLabelValues(OpObjectStoreUpload, "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.total.WithLabelValues(OpObjectStoreUpload, "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.total.WithLabelValues(OpRollbackRecordStore, "success")))
	assert.Equal(t, 3, testutil.CollectAndCount(r.duration))

	r.Dropped()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dropped))
}

func TestPrometheusRecorder_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPrometheusRecorder("test", reg)
	require.NoError(t, err)
	b, err := NewPrometheusRecorder("test", reg)
	require.NoError(t, err)

	a.RecordEvent(Event{Operation: OpRecordStoreSave, Success: true})
	b.RecordEvent(Event{Operation: OpRecordStoreSave, Success: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(a.total.WithLabelValues(OpRecordStoreSave, "success")))
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var r *PrometheusRecorder
	assert.NotPanics(t, func() {
		r.RecordEvent(Event{Operation: "x"})
		r.Dropped()
	})
}

type collectingRecorder struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (c *collectingRecorder) RecordEvent(e Event) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collectingRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestAsyncRecorder_DeliversAndDrains(t *testing.T) {
	sink := &collectingRecorder{}
	a := NewAsyncRecorder(sink, 16, nil)

	for i := 0; i < 10; i++ {
		a.RecordEvent(Event{Operation: OpRecordStoreSave, Success: true})
	}
	a.Close()

	assert.Equal(t, 10, sink.count())
}

func TestAsyncRecorder_DropsWhenFull(t *testing.T) {
	sink := &collectingRecorder{block: make(chan struct{})}
	var dropped int
	var mu sync.Mutex
	a := NewAsyncRecorder(sink, 1, func() {
		mu.Lock()
		dropped++
		mu.Unlock()
	})

	start := time.Now()
	for i := 0; i < 50; i++ {
		a.RecordEvent(Event{Operation: OpObjectStoreUpload})
	}
	assert.Less(t, time.Since(start), time.Second, "RecordEvent must never block")

	close(sink.block)
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, dropped+sink.count())
	assert.Positive(t, dropped)
}

func TestAsyncRecorder_AfterCloseDrops(t *testing.T) {
	var dropped int
	a := NewAsyncRecorder(Nop{}, 4, func() { dropped++ })
	a.Close()
	a.Close()

	a.RecordEvent(Event{Operation: "late"})
	assert.Equal(t, 1, dropped)
}

type panickyRecorder struct{ calls int }

func (p *panickyRecorder) RecordEvent(Event) {
	p.calls++
	panic("sink exploded")
}

func TestAsyncRecorder_SurvivesPanickingSink(t *testing.T) {
	sink := &panickyRecorder{}
	a := NewAsyncRecorder(sink, 4, nil)
	a.RecordEvent(Event{})
	a.RecordEvent(Event{})
	a.Close()
	assert.Equal(t, 2, sink.calls)
}

func TestSince(t *testing.T) {
	e := Since(OpCacheInvalidate, time.Now().Add(-time.Second), true, "u1")
	assert.Equal(t, OpCacheInvalidate, e.Operation)
	assert.GreaterOrEqual(t, e.Duration, time.Second)
	assert.True(t, e.Success)
	assert.Equal(t, "u1", e.UserID)
}
