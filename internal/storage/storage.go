package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Blob keys live in two mutually exclusive areas: active uploads and the recycle bin.
// Moving between them keeps the basename.
const (
	ActivePrefix  = "uploads"
	ArchivePrefix = "recycle_bin"
)

var (
	// ErrObjectNotFound is returned when the source of a read or move does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectExists is returned when a write or move would overwrite another object.
	ErrObjectExists = errors.New("object already exists")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// BlobStore holds file contents for the lifecycle manager. Only the manager writes to it;
// whether a file is active is decided by the metadata store, never by listing blobs.
type BlobStore interface {
	// Put uploads an object under the given key using the provided reader and options.
	// It never overwrites, and refuses an active key whose recycle-bin counterpart is taken,
	// since archiving it later would collide.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// MoveToArchive relocates an active object into the recycle-bin area and returns its new key.
	MoveToArchive(ctx context.Context, key string) (string, error)
	// RestoreFromArchive relocates an archived object back into the active area.
	RestoreFromArchive(ctx context.Context, key string) (string, error)
	// Delete removes an object by key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// ActiveKey places a generated file name in the active area.
func ActiveKey(name string) string {
	return path.Join(ActivePrefix, path.Base(name))
}

// ArchiveKey is the recycle-bin location of key.
func ArchiveKey(key string) string {
	return path.Join(ArchivePrefix, path.Base(key))
}

// RestoredKey is the active-area location of an archived key.
func RestoredKey(key string) string {
	return path.Join(ActivePrefix, path.Base(key))
}

// isArchived reports whether key resolves inside the recycle-bin area.
func isArchived(key string) bool {
	return strings.HasPrefix(key, ArchivePrefix+"/")
}

// reservedKeys lists the keys that must be free before key can be written.
func reservedKeys(key string) []string {
	if isArchived(key) {
		return []string{key}
	}
	return []string{key, ArchiveKey(key)}
}
