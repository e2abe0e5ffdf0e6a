package uploads

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusRetrying  Status = "retrying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileState is the progress of one file within the current attempt cycle.
type FileState string

// FileRolledBack marks a file whose record and object were both removed by a
// rollback.
const (
	FilePending    FileState = "pending"
	FileUploaded   FileState = "uploaded"
	FileSaved      FileState = "saved"
	FileFailed     FileState = "failed"
	FileRolledBack FileState = "rolled-back"
)

// File is one caller-supplied payload.
type File struct {
	Name string
	Data []byte
}

// FileAttempt tracks one file of the batch.
type FileAttempt struct {
	Index      int                       `json:"index"`
	Name       string                    `json:"name,omitempty"`
	Size       int                       `json:"size"`
	State      FileState                 `json:"state"`
	Descriptor *models.StorageDescriptor `json:"descriptor,omitempty"`
	Record     *models.RecordDescriptor  `json:"record,omitempty"`
	Error      string                    `json:"error,omitempty"`

	data []byte
}

func (f *FileAttempt) label() string {
	if f.Name == "" {
		return fmt.Sprintf("file %d", f.Index)
	}
	return fmt.Sprintf("file %d (%s)", f.Index, f.Name)
}

// A failed attempt is frozen until the next reset.
func (f *FileAttempt) markUploaded(d models.StorageDescriptor) {
	if f.State == FileFailed {
		return
	}
	f.Descriptor = &d
	f.State = FileUploaded
}

func (f *FileAttempt) markSaved(r models.RecordDescriptor) {
	if f.State == FileFailed || f.Descriptor == nil {
		return
	}
	f.Record = &r
	f.State = FileSaved
}

func (f *FileAttempt) markFailed(step string, err error) string {
	msg := fmt.Sprintf("%s: %s: %v", f.label(), step, err)
	if f.State == FileFailed {
		return msg
	}
	f.State = FileFailed
	f.Error = msg
	return msg
}

// markRolledBack records a completed compensation. Failed files keep their
// state so the error stays attached.
func (f *FileAttempt) markRolledBack() {
	if f.State == FileFailed || f.Record != nil || f.Descriptor != nil {
		return
	}
	f.State = FileRolledBack
}

func (f *FileAttempt) reset() {
	f.State = FilePending
	f.Descriptor = nil
	f.Record = nil
	f.Error = ""
}

// OrphanKind names the store an orphan lives in.
type OrphanKind string

const (
	OrphanObject OrphanKind = "object"
	OrphanRecord OrphanKind = "record"
)

// Orphan is a compensation that failed and is kept for a later Rollback.
type Orphan struct {
	Kind OrphanKind `json:"kind"`
	ID   string     `json:"id"`
}

// Transaction is one batch upload and its progress.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Category    models.Category `json:"category"`
	Files       []FileAttempt   `json:"files"`
	Status      Status          `json:"status"`
	RolledBack  bool            `json:"rolled_back"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Errors      []string        `json:"errors,omitempty"`
	Orphans     []Orphan        `json:"orphans,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
}

// Label is the status shown to operators: failed transactions whose
// compensation completed read as "rolled-back".
func (t Transaction) Label() string {
	if t.Status == StatusFailed && t.RolledBack {
		return "rolled-back"
	}
	return string(t.Status)
}

// clone returns a deep copy without payloads.
func (t *Transaction) clone() Transaction {
	out := *t
	out.Files = make([]FileAttempt, len(t.Files))
	for i, f := range t.Files {
		f.data = nil
		if f.Descriptor != nil {
			d := *f.Descriptor
			f.Descriptor = &d
		}
		if f.Record != nil {
			r := *f.Record
			f.Record = &r
		}
		out.Files[i] = f
	}
	out.Errors = append([]string(nil), t.Errors...)
	out.Orphans = append([]Orphan(nil), t.Orphans...)
	if t.EndedAt != nil {
		e := *t.EndedAt
		out.EndedAt = &e
	}
	return out
}

// Result is what Execute reports back to the caller.
type Result struct {
	TransactionID string                    `json:"transaction_id"`
	Success       bool                      `json:"success"`
	Records       []models.RecordDescriptor `json:"records"`
	Errors        []string                  `json:"errors,omitempty"`
	Attempts      int                       `json:"attempts"`
	Status        Status                    `json:"status"`
	RolledBack    bool                      `json:"rolled_back"`
}
