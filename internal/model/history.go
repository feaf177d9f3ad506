package model

import "time"

// HistoryAction names a lifecycle transition recorded in the audit ledger.
type HistoryAction string

const (
	ActionUploaded               HistoryAction = "Uploaded"
	ActionReplaced               HistoryAction = "Replaced"
	ActionMovedToRecycleBin      HistoryAction = "MovedToRecycleBin"
	ActionRestoredFromRecycleBin HistoryAction = "RestoredFromRecycleBin"
	ActionPermanentlyDeleted     HistoryAction = "PermanentlyDeleted"
)

// HistoryEntry is an append-only audit row. Entries outlive the FileRecord they describe.
type HistoryEntry struct {
	ID                 int64         `json:"id"`
	FileID             int64         `json:"file_id"`
	OwnerID            string        `json:"owner_id"`
	Action             HistoryAction `json:"action"`
	Actor              string        `json:"actor"`
	Timestamp          time.Time     `json:"timestamp"`
	FileNameSnapshot   string        `json:"file_name"`
	CategorySnapshot   string        `json:"category"`
	StorageKeySnapshot string        `json:"storage_key"`
}

// RecycleReason tells why a blob sits in the recycle-bin area.
type RecycleReason string

const (
	// RecycleDeleted marks the blob of a record that was soft-deleted.
	RecycleDeleted RecycleReason = "deleted"
	// RecycleReplaced marks a superseded blob archived by a replace.
	RecycleReplaced RecycleReason = "replaced"
)

// RecycleBinEntry is one row of the recycle-bin index.
type RecycleBinEntry struct {
	ID          int64         `json:"id"`
	FileID      int64         `json:"file_id"`
	OwnerID     string        `json:"owner_id"`
	FileName    string        `json:"file_name"`
	BlobKey     string        `json:"blob_key"`
	OriginalKey string        `json:"original_key"`
	Reason      RecycleReason `json:"reason"`
	DeletedBy   string        `json:"deleted_by"`
	DeletedAt   time.Time     `json:"deleted_at"`
}
