package uploads

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/mediavault/internal/server/metrics"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/objectstore"
)

type cycleOutcome struct {
	saved  int
	failed int
	errs   []string
}

// success is all-or-nothing: one failed file fails the batch.
func (o cycleOutcome) success() bool {
	return o.saved > 0 && o.failed == 0
}

// forEachLimit runs fn for every item, at most limit at a time, and waits.
func forEachLimit[T any](limit int, items []T, fn func(T)) {
	var g errgroup.Group
	g.SetLimit(limit)
	for _, it := range items {
		it := it
		g.Go(func() error {
			fn(it)
			return nil
		})
	}
	_ = g.Wait()
}

func fileEvent(op string, start time.Time, ok bool, userID string, index int) metrics.Event {
	ev := metrics.Since(op, start, ok, userID)
	ev.Metadata = map[string]string{"file": strconv.Itoa(index)}
	return ev
}

// runCycle runs the upload phase to completion and then the persist phase.
func (c *Coordinator) runCycle(ctx context.Context, e *entry, userID string, category models.Category) cycleOutcome {
	type pending struct {
		index int
		data  []byte
	}

	e.mu.Lock()
	jobs := make([]pending, 0, len(e.tx.Files))
	for _, f := range e.tx.Files {
		if f.State == FilePending {
			jobs = append(jobs, pending{index: f.Index, data: f.data})
		}
	}
	e.mu.Unlock()

	opts := objectstore.OptionsFor(userID, category)
	forEachLimit(c.opts.Concurrency, jobs, func(j pending) {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		d, err := c.deps.Objects.Upload(callCtx, j.data, opts)
		cancel()
		c.deps.Metrics.RecordEvent(fileEvent(metrics.OpObjectStoreUpload, start, err == nil, userID, j.index))

		e.mu.Lock()
		defer e.mu.Unlock()
		if err != nil {
			e.tx.Files[j.index].markFailed("upload", err)
			return
		}
		e.tx.Files[j.index].markUploaded(d)
	})

	if ctx.Err() == nil {
		c.persist(ctx, e, userID, category)
	}

	var out cycleOutcome
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range e.tx.Files {
		switch f.State {
		case FileSaved:
			out.saved++
		case FileFailed:
			out.failed++
			out.errs = append(out.errs, f.Error)
		}
	}
	return out
}

// persist records every uploaded file. A file whose record cannot be saved
// has its object removed right away.
func (c *Coordinator) persist(ctx context.Context, e *entry, userID string, category models.Category) {
	type uploaded struct {
		index int
		d     models.StorageDescriptor
	}

	e.mu.Lock()
	var jobs []uploaded
	for _, f := range e.tx.Files {
		if f.State == FileUploaded && f.Descriptor != nil {
			jobs = append(jobs, uploaded{index: f.Index, d: *f.Descriptor})
		}
	}
	e.mu.Unlock()

	forEachLimit(c.opts.Concurrency, jobs, func(j uploaded) {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		rec, err := c.deps.Records.Save(callCtx, userID, category, j.d)
		cancel()
		c.deps.Metrics.RecordEvent(fileEvent(metrics.OpRecordStoreSave, start, err == nil, userID, j.index))

		e.mu.Lock()
		if err == nil {
			e.tx.Files[j.index].markSaved(rec)
			e.mu.Unlock()
			return
		}
		e.tx.Files[j.index].markFailed("persist", err)
		e.mu.Unlock()

		if c.deleteObject(ctx, metrics.OpCompensateObjectStore, userID, j.d.RemoteID) {
			e.mu.Lock()
			e.tx.Files[j.index].Descriptor = nil
			e.mu.Unlock()
		}
	})
}

// Rollback removes whatever the transaction still holds in the stores: the
// records and objects of its last cycle and orphans left by earlier failed
// compensations. Each compensation is tried once. Completed transactions
// cannot be rolled back.
func (c *Coordinator) Rollback(ctx context.Context, id string) error {
	e, err := c.acquire(id, true)
	if err != nil {
		return err
	}
	defer c.release(e)

	c.rollback(ctx, e)

	e.mu.Lock()
	if e.tx.Status == StatusFailed {
		e.tx.RolledBack = !hasLive(&e.tx) && len(e.tx.Orphans) == 0
	}
	e.mu.Unlock()
	return nil
}

func (c *Coordinator) rollback(ctx context.Context, e *entry) {
	type live struct {
		index    int
		recordID string
		remoteID string
	}

	e.mu.Lock()
	userID := e.tx.UserID
	var refs []live
	for _, f := range e.tx.Files {
		r := live{index: f.Index}
		if f.Record != nil {
			r.recordID = f.Record.ID
		}
		if f.Descriptor != nil {
			r.remoteID = f.Descriptor.RemoteID
		}
		if r.recordID != "" || r.remoteID != "" {
			refs = append(refs, r)
		}
	}
	orphans := e.tx.Orphans
	e.mu.Unlock()

	forEachLimit(c.opts.Concurrency, refs, func(r live) {
		recordGone := r.recordID == "" || c.deleteRecord(ctx, userID, r.recordID)
		objectGone := r.remoteID == "" || c.deleteObject(ctx, metrics.OpRollbackObjectStore, userID, r.remoteID)

		e.mu.Lock()
		defer e.mu.Unlock()
		f := &e.tx.Files[r.index]
		if recordGone {
			f.Record = nil
		}
		if objectGone {
			f.Descriptor = nil
		}
		f.markRolledBack()
	})

	var kept []Orphan
	for _, o := range orphans {
		var ok bool
		switch o.Kind {
		case OrphanRecord:
			ok = c.deleteRecord(ctx, userID, o.ID)
		case OrphanObject:
			ok = c.deleteObject(ctx, metrics.OpRollbackObjectStore, userID, o.ID)
		}
		if !ok {
			kept = append(kept, o)
		}
	}

	e.mu.Lock()
	e.tx.Orphans = kept
	e.mu.Unlock()
}

// Compensations ignore caller cancellation so that a cancelled Execute still
// cleans up after itself.
func (c *Coordinator) compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opts.CallTimeout)
}

func (c *Coordinator) deleteObject(ctx context.Context, op, userID, remoteID string) bool {
	start := time.Now()
	callCtx, cancel := c.compensationContext(ctx)
	_, err := c.deps.Objects.Delete(callCtx, remoteID)
	cancel()

	ev := metrics.Since(op, start, err == nil, userID)
	ev.Metadata = map[string]string{"remote_id": remoteID}
	c.deps.Metrics.RecordEvent(ev)

	if err != nil {
		c.logger.Error(ctx, "compensation failed", "operation", op, "remote_id", remoteID, "error", err)
		return false
	}
	return true
}

func (c *Coordinator) deleteRecord(ctx context.Context, userID, recordID string) bool {
	start := time.Now()
	callCtx, cancel := c.compensationContext(ctx)
	_, err := c.deps.Records.Delete(callCtx, recordID)
	cancel()

	ev := metrics.Since(metrics.OpRollbackRecordStore, start, err == nil, userID)
	ev.Metadata = map[string]string{"record_id": recordID}
	c.deps.Metrics.RecordEvent(ev)

	if err != nil {
		c.logger.Error(ctx, "compensation failed", "operation", metrics.OpRollbackRecordStore, "record_id", recordID, "error", err)
		return false
	}
	return true
}

// orphanLive moves references a failed rollback left on f to the
// transaction's orphan list, so f can be reset.
func orphanLive(tx *Transaction, f *FileAttempt) {
	if f.Record != nil {
		tx.Orphans = append(tx.Orphans, Orphan{Kind: OrphanRecord, ID: f.Record.ID})
	}
	if f.Descriptor != nil {
		tx.Orphans = append(tx.Orphans, Orphan{Kind: OrphanObject, ID: f.Descriptor.RemoteID})
	}
}

func hasLive(tx *Transaction) bool {
	for _, f := range tx.Files {
		if f.Record != nil || f.Descriptor != nil {
			return true
		}
	}
	return false
}
