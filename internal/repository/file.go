package repository

import (
	"context"
	"errors"
	"time"

	"clinicfiles/internal/model"
)

// ErrNotFound is returned when no files row matches the requested id.
var ErrNotFound = errors.New("file record not found")

// FileRepository is the metadata store for file records, their audit ledger and the
// recycle-bin index. Implementations contain no lifecycle rules; every write that changes
// a record's state is conditional on the state the caller expects.
type FileRepository interface {
	// Insert stores a new Active record and its Uploaded history entry in one transaction.
	// The returned record carries the id assigned by the store.
	Insert(ctx context.Context, rec *model.FileRecord, entry *model.HistoryEntry) (*model.FileRecord, error)

	// FindByID returns a record by id, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.FileRecord, error)

	// List returns a page of records matching the filter and the total count.
	List(ctx context.Context, f FileFilter, pq PageQuery) (*PageResult[model.FileRecord], error)

	// Claim reserves the record for one transition. It succeeds only when the record is in
	// the expected state and holds no unexpired claim.
	Claim(ctx context.Context, id int64, expected model.LifecycleState, token string, ttl time.Duration) (bool, error)

	// Release drops a claim held under token without changing the record.
	Release(ctx context.Context, id int64, token string) error

	// UpdateConditional applies patch, its recycle-bin index change and entry in one
	// transaction, only if the record is in the expected state and claimed under token.
	// It clears the claim and reports whether the row was updated.
	UpdateConditional(ctx context.Context, id int64, expected model.LifecycleState, token string, patch FilePatch, entry *model.HistoryEntry) (bool, error)

	// Delete removes the record and its recycle-bin index rows and appends entry, under the
	// same state and claim conditions as UpdateConditional.
	Delete(ctx context.Context, id int64, expected model.LifecycleState, token string, entry *model.HistoryEntry) (bool, error)

	// ListHistory returns the audit ledger of a file ordered by timestamp. It works for
	// purged files.
	ListHistory(ctx context.Context, fileID int64) ([]model.HistoryEntry, error)

	// ListRecycleBin returns a page of the recycle-bin index, newest first.
	ListRecycleBin(ctx context.Context, pq PageQuery) (*PageResult[model.RecycleBinEntry], error)

	// ArchivedKeys returns the blob keys of superseded versions archived for a file.
	ArchivedKeys(ctx context.Context, fileID int64) ([]string, error)
}

// FilePatch lists the columns a transition changes. Nil fields are left untouched.
type FilePatch struct {
	State       *model.LifecycleState
	FileName    *string
	StorageKey  *string
	ContentType *string
	Size        *int64
	UpdatedBy   *string
	UpdatedAt   time.Time

	// SetDeleted stamps deleted_by/deleted_at; ClearDeleted resets both to NULL.
	SetDeleted   *Deletion
	ClearDeleted bool

	// AddRecycle inserts a recycle-bin index row; DropRecycle removes the file's rows
	// with that reason.
	AddRecycle  *model.RecycleBinEntry
	DropRecycle model.RecycleReason
}

// Deletion is the actor and time of a soft delete.
type Deletion struct {
	By string
	At time.Time
}

// FileFilter narrows List. Empty fields match everything.
type FileFilter struct {
	OwnerID  string
	Category string
	State    model.LifecycleState
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
