// Package uploads coordinates multi-file uploads as a saga: every file is
// stored in the object store, then recorded in the record store, and a batch
// that does not fully succeed is compensated and retried with backoff.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/events"
	"github.com/dmitrijs2005/mediavault/internal/server/metrics"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/objectstore"
	"github.com/google/uuid"
)

var (
	ErrTransactionNotFound = fmt.Errorf("transaction %w", common.ErrNotFound)
	ErrTransactionFinished = errors.New("transaction already finished")
	ErrTransactionBusy     = errors.New("transaction is executing")
)

// ObjectStore stores and removes binary payloads. Delete is idempotent.
type ObjectStore interface {
	Upload(ctx context.Context, payload []byte, opts objectstore.UploadOptions) (models.StorageDescriptor, error)
	Delete(ctx context.Context, remoteID string) (bool, error)
}

// RecordStore persists image metadata. Delete is idempotent.
type RecordStore interface {
	Save(ctx context.Context, userID string, category models.Category, d models.StorageDescriptor) (models.RecordDescriptor, error)
	Delete(ctx context.Context, recordID string) (bool, error)
}

// CacheInvalidator drops a user's cached reads. It must not fail.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

// Dependencies are the collaborators of a Coordinator. Metrics and Notifier
// are optional.
type Dependencies struct {
	Objects  ObjectStore
	Records  RecordStore
	Cache    CacheInvalidator
	Metrics  metrics.Recorder
	Notifier events.Notifier
}

type entry struct {
	mu      sync.Mutex
	tx      Transaction
	running bool
}

// Coordinator owns the in-memory transaction table.
type Coordinator struct {
	deps   Dependencies
	opts   Options
	logger logging.Logger

	mu  sync.RWMutex
	txs map[string]*entry

	notifications sync.WaitGroup

	now    func() time.Time
	newID  func() string
	jitter func(limit time.Duration) time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(deps Dependencies, opts Options, logger logging.Logger) *Coordinator {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Notifier == nil {
		deps.Notifier = events.Nop{}
	}
	return &Coordinator{
		deps:   deps,
		opts:   opts.withDefaults(),
		logger: logger.With("module", "uploads"),
		txs:    make(map[string]*entry),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		jitter: uniformJitter,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartTransaction registers a pending batch and returns its id. A
// maxAttempts of zero selects the configured default.
func (c *Coordinator) StartTransaction(userID string, category models.Category, files []File, maxAttempts int) (string, error) {
	switch {
	case userID == "":
		return "", fmt.Errorf("%w: user id is required", common.ErrInvalidArgument)
	case !category.Valid():
		return "", fmt.Errorf("%w: unknown category %q", common.ErrInvalidArgument, category)
	case len(files) == 0:
		return "", fmt.Errorf("%w: no files", common.ErrInvalidArgument)
	case maxAttempts < 0 || maxAttempts > MaxAllowedAttempts:
		return "", fmt.Errorf("%w: max attempts must be within 1..%d", common.ErrInvalidArgument, MaxAllowedAttempts)
	}
	if maxAttempts == 0 {
		maxAttempts = c.opts.MaxAttempts
	}

	attempts := make([]FileAttempt, len(files))
	for i, f := range files {
		if len(f.Data) == 0 {
			return "", fmt.Errorf("%w: file %d is empty", common.ErrInvalidArgument, i)
		}
		attempts[i] = FileAttempt{
			Index: i,
			Name:  f.Name,
			Size:  len(f.Data),
			State: FilePending,
			data:  bytes.Clone(f.Data),
		}
	}

	tx := Transaction{
		ID:          c.newID(),
		UserID:      userID,
		Category:    category,
		Files:       attempts,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		StartedAt:   c.now(),
	}

	c.mu.Lock()
	c.txs[tx.ID] = &entry{tx: tx}
	c.mu.Unlock()

	c.logger.Debug(context.Background(), "transaction started",
		"tx_id", tx.ID, "user_id", userID, "category", category, "files", len(files))
	return tx.ID, nil
}

// Submit starts a transaction and executes it.
func (c *Coordinator) Submit(ctx context.Context, userID string, category models.Category, files []File, maxAttempts int) (Result, error) {
	id, err := c.StartTransaction(userID, category, files, maxAttempts)
	if err != nil {
		return Result{}, err
	}
	return c.Execute(ctx, id)
}

// GetStatus returns a snapshot of the transaction. The snapshot shares no
// memory with the coordinator.
func (c *Coordinator) GetStatus(id string) (Transaction, error) {
	e, ok := c.lookup(id)
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tx.clone(), nil
}

func (c *Coordinator) lookup(id string) (*entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.txs[id]
	return e, ok
}

// acquire makes the caller the only writer of the transaction.
func (c *Coordinator) acquire(id string, allowFailed bool) (*entry, error) {
	e, ok := c.lookup(id)
	if !ok {
		return nil, ErrTransactionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, ErrTransactionBusy
	}
	if e.tx.Status == StatusCompleted || (e.tx.Status == StatusFailed && !allowFailed) {
		return nil, ErrTransactionFinished
	}
	e.running = true
	return e, nil
}

func (c *Coordinator) release(e *entry) {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Execute drives the transaction until it completes or runs out of attempts.
// Collaborator failures are reported in the Result, not as an error. The
// error is non-nil only for an unknown, finished or busy transaction, or
// when ctx ends first; in that case whatever was stored is rolled back.
func (c *Coordinator) Execute(ctx context.Context, id string) (Result, error) {
	e, err := c.acquire(id, false)
	if err != nil {
		return Result{}, err
	}
	defer c.release(e)

	e.mu.Lock()
	userID, category, maxAttempts := e.tx.UserID, e.tx.Category, e.tx.MaxAttempts
	e.mu.Unlock()

	log := c.logger.With("tx_id", id, "user_id", userID)
	started := time.Now()

	for attempt := 1; ; attempt++ {
		e.mu.Lock()
		e.tx.Attempts = attempt
		e.tx.Status = StatusExecuting
		e.tx.Errors = nil
		e.mu.Unlock()

		out := c.runCycle(ctx, e, userID, category)

		if err := ctx.Err(); err != nil {
			c.rollback(ctx, e)
			res := c.finish(e, StatusFailed, append(out.errs, fmt.Sprintf("cancelled: %v", err)))
			log.Warn(ctx, "transaction cancelled", "attempt", attempt, "error", err)
			c.recordExecute(started, userID, res)
			return res, err
		}

		if out.success() {
			c.invalidate(ctx, userID)
			res := c.finish(e, StatusCompleted, nil)
			log.Info(ctx, "transaction completed", "attempts", attempt, "records", len(res.Records))
			c.recordExecute(started, userID, res)
			return res, nil
		}

		c.rollback(ctx, e)

		if attempt >= maxAttempts {
			res := c.finish(e, StatusFailed, out.errs)
			log.Error(ctx, "transaction failed", "attempts", attempt, "errors", out.errs)
			c.recordExecute(started, userID, res)
			return res, nil
		}

		delay := c.opts.BackoffDelay(attempt) + c.jitter(c.opts.MaxJitter)
		e.mu.Lock()
		e.tx.Status = StatusRetrying
		e.tx.Errors = out.errs
		for i := range e.tx.Files {
			orphanLive(&e.tx, &e.tx.Files[i])
			e.tx.Files[i].reset()
		}
		e.mu.Unlock()

		log.Warn(ctx, "attempt failed, retrying", "attempt", attempt, "delay", delay, "errors", out.errs)

		if err := c.sleep(ctx, delay); err != nil {
			res := c.finish(e, StatusFailed, append(out.errs, fmt.Sprintf("cancelled: %v", err)))
			log.Warn(ctx, "transaction cancelled during backoff", "attempt", attempt, "error", err)
			c.recordExecute(started, userID, res)
			return res, err
		}
	}
}

// finish moves the transaction into a terminal state and builds the result.
func (c *Coordinator) finish(e *entry, status Status, errs []string) Result {
	e.mu.Lock()
	now := c.now()
	e.tx.Status = status
	e.tx.EndedAt = &now
	e.tx.Errors = append([]string(nil), errs...)
	if status == StatusFailed {
		e.tx.RolledBack = !hasLive(&e.tx) && len(e.tx.Orphans) == 0
	}

	res := Result{
		TransactionID: e.tx.ID,
		Success:       status == StatusCompleted,
		Records:       make([]models.RecordDescriptor, 0, len(e.tx.Files)),
		Errors:        append([]string(nil), errs...),
		Attempts:      e.tx.Attempts,
		Status:        status,
		RolledBack:    e.tx.RolledBack,
	}
	outcome := events.Outcome{
		TransactionID: e.tx.ID,
		UserID:        e.tx.UserID,
		Category:      e.tx.Category,
		Status:        string(status),
		Attempts:      e.tx.Attempts,
		Errors:        res.Errors,
		FinishedAt:    now,
	}
	if status == StatusCompleted {
		for _, f := range e.tx.Files {
			if f.Record != nil {
				res.Records = append(res.Records, *f.Record)
				outcome.RecordIDs = append(outcome.RecordIDs, f.Record.ID)
			}
		}
	}
	for i := range e.tx.Files {
		e.tx.Files[i].data = nil
	}
	e.mu.Unlock()

	c.notify(outcome)
	return res
}

func (c *Coordinator) invalidate(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	ok := true
	func() {
		defer func() {
			if r := recover(); r != nil {
				ok = false
				c.logger.Error(ctx, "cache invalidation panicked", "user_id", userID, "panic", r)
			}
		}()
		c.deps.Cache.InvalidateUser(ctx, userID)
	}()
	c.deps.Metrics.RecordEvent(metrics.Since(metrics.OpCacheInvalidate, start, ok, userID))
}

func (c *Coordinator) notify(o events.Outcome) {
	c.notifications.Add(1)
	go func() {
		defer c.notifications.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.CallTimeout)
		defer cancel()
		if err := c.deps.Notifier.Notify(ctx, o); err != nil {
			c.logger.Debug(ctx, "outcome notification failed", "tx_id", o.TransactionID, "error", err)
		}
	}()
}

// Wait blocks until pending outcome notifications are delivered.
func (c *Coordinator) Wait() {
	c.notifications.Wait()
}

func (c *Coordinator) recordExecute(start time.Time, userID string, res Result) {
	ev := metrics.Since(metrics.OpTransactionExecute, start, res.Success, userID)
	ev.Metadata = map[string]string{
		"attempts": fmt.Sprint(res.Attempts),
		"status":   string(res.Status),
	}
	c.deps.Metrics.RecordEvent(ev)
}
