package uploads

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/events"
	"github.com/dmitrijs2005/mediavault/internal/server/metrics"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/objectstore"
)

// fakeObjects keeps stored objects in memory. Remote ids are
// "<payload>/<sequence>" so tests can target a file by its payload.
type fakeObjects struct {
	mu        sync.Mutex
	seq       int
	live      map[string]models.StorageDescriptor
	uploaded  []string
	deleted   []string
	uploadErr func(payload string, call int) error
	deleteErr func(remoteID string) error
	onUpload  func(payload string)
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{live: make(map[string]models.StorageDescriptor)}
}

func (f *fakeObjects) Upload(ctx context.Context, payload []byte, opts objectstore.UploadOptions) (models.StorageDescriptor, error) {
	if f.onUpload != nil {
		f.onUpload(string(payload))
	}
	if err := ctx.Err(); err != nil {
		return models.StorageDescriptor{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if f.uploadErr != nil {
		if err := f.uploadErr(string(payload), f.seq); err != nil {
			return models.StorageDescriptor{}, err
		}
	}
	d := models.StorageDescriptor{
		RemoteID: fmt.Sprintf("%s/%d", payload, f.seq),
		URL:      "http://cdn/" + string(opts.Category) + "/" + string(payload),
		Width:    10,
		Height:   10,
		Format:   "png",
		Bytes:    int64(len(payload)),
	}
	f.live[d.RemoteID] = d
	f.uploaded = append(f.uploaded, d.RemoteID)
	return d, nil
}

func (f *fakeObjects) Delete(_ context.Context, remoteID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		if err := f.deleteErr(remoteID); err != nil {
			return false, err
		}
	}
	f.deleted = append(f.deleted, remoteID)
	_, ok := f.live[remoteID]
	delete(f.live, remoteID)
	return ok, nil
}

func (f *fakeObjects) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeObjects) snapshot() (uploaded, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploaded...), append([]string(nil), f.deleted...)
}

type fakeRecords struct {
	mu        sync.Mutex
	seq       int
	live      map[string]models.RecordDescriptor
	deleted   []string
	saveErr   func(d models.StorageDescriptor) error
	deleteErr func(id string) error
	onSave    func()
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{live: make(map[string]models.RecordDescriptor)}
}

func (f *fakeRecords) Save(_ context.Context, userID string, category models.Category, d models.StorageDescriptor) (models.RecordDescriptor, error) {
	if f.onSave != nil {
		f.onSave()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		if err := f.saveErr(d); err != nil {
			return models.RecordDescriptor{}, err
		}
	}
	f.seq++
	rec := models.RecordDescriptor{
		ID:                fmt.Sprintf("rec-%d", f.seq),
		UserID:            userID,
		Category:          category,
		StorageDescriptor: d,
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.live[rec.ID] = rec
	return rec, nil
}

func (f *fakeRecords) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		if err := f.deleteErr(id); err != nil {
			return false, err
		}
	}
	f.deleted = append(f.deleted, id)
	_, ok := f.live[id]
	delete(f.live, id)
	return ok, nil
}

func (f *fakeRecords) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

type fakeCache struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeCache) InvalidateUser(_ context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

func (f *fakeCache) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type recordingMetrics struct {
	mu     sync.Mutex
	events []metrics.Event
}

func (r *recordingMetrics) RecordEvent(e metrics.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingMetrics) count(op string, success bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Operation == op && e.Success == success {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []events.Outcome
}

func (r *recordingNotifier) Notify(_ context.Context, o events.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

type harness struct {
	c        *Coordinator
	objects  *fakeObjects
	records  *fakeRecords
	cache    *fakeCache
	metrics  *recordingMetrics
	notifier *recordingNotifier

	mu     sync.Mutex
	sleeps []time.Duration
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		objects:  newFakeObjects(),
		records:  newFakeRecords(),
		cache:    &fakeCache{},
		metrics:  &recordingMetrics{},
		notifier: &recordingNotifier{},
	}
	h.c = New(Dependencies{
		Objects:  h.objects,
		Records:  h.records,
		Cache:    h.cache,
		Metrics:  h.metrics,
		Notifier: h.notifier,
	}, opts, logging.NewNop())
	h.c.jitter = func(time.Duration) time.Duration { return 0 }
	h.c.sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.mu.Unlock()
		return ctx.Err()
	}
	t.Cleanup(h.c.Wait)
	return h
}

func (h *harness) recordedSleeps() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.sleeps...)
}

func files(payloads ...string) []File {
	out := make([]File, len(payloads))
	for i, p := range payloads {
		out[i] = File{Name: p + ".png", Data: []byte(p)}
	}
	return out
}
