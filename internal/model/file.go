package model

import "time"

// LifecycleState is the state of a FileRecord. A purged record is removed, not stored.
type LifecycleState string

const (
	StateActive       LifecycleState = "Active"
	StateInRecycleBin LifecycleState = "InRecycleBin"
)

// Valid reports whether s is a storable lifecycle state.
func (s LifecycleState) Valid() bool {
	return s == StateActive || s == StateInRecycleBin
}

// FileRecord represents one logical document owned by a subject (student or user).
// It carries no persistence tags so it can be shared by the HTTP, service and storage layers.
type FileRecord struct {
	ID          int64          `json:"id"`
	FileName    string         `json:"file_name"`
	StorageKey  string         `json:"storage_key"`
	OwnerID     string         `json:"owner_id"`
	Category    string         `json:"category"`
	ContentType string         `json:"content_type"`
	Size        int64          `json:"size"`
	UploadedBy  string         `json:"uploaded_by"`
	UpdatedBy   string         `json:"updated_by,omitempty"`
	DeletedBy   *string        `json:"deleted_by"`
	State       LifecycleState `json:"lifecycle_state"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at"`
}
