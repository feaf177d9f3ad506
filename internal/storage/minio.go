package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"clinicfiles/internal/config"
)

// minioStorage implements BlobStore using an S3-compatible backend (MinIO, AWS S3, etc.).
// Both areas live in one bucket and are told apart by key prefix.
// It is safe for concurrent use by multiple goroutines.
type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a new S3-compatible storage client backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (BlobStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ms := &minioStorage{client: cli, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return ms, nil
}

func mapMinioErr(err error, key string) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return err
}

// Put uploads an object using streaming I/O only (no local disk). It refuses to overwrite
// an existing key.
func (m *minioStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	for _, k := range reservedKeys(key) {
		if err := m.absent(ctx, k); err != nil {
			return ObjectInfo{}, err
		}
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, opt.Size, minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: opt.Metadata,
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opt.ContentType,
		LastModified: time.Now(), // PutObject does not report LastModified
		Metadata:     opt.Metadata,
	}, nil
}

// Get downloads an object content as a ReadCloser along with basic info.
func (m *minioStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, mapMinioErr(err, key)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, mapMinioErr(err, key)
	}
	return obj, ObjectInfo{
		Key:          key,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
		Metadata:     st.UserMetadata,
	}, nil
}

func (m *minioStorage) absent(ctx context.Context, key string) error {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("%s: %w", key, ErrObjectExists)
	}
	if errors.Is(mapMinioErr(err, key), ErrObjectNotFound) {
		return nil
	}
	return err
}

// move copies src to dst server-side and removes src. A failed removal undoes the copy so
// the object never exists in both areas.
func (m *minioStorage) move(ctx context.Context, src, dst string) (string, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, src, minio.StatObjectOptions{}); err != nil {
		return "", mapMinioErr(err, src)
	}
	if err := m.absent(ctx, dst); err != nil {
		return "", err
	}

	_, err := m.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: m.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: m.bucket, Object: src},
	)
	if err != nil {
		return "", fmt.Errorf("copy %q -> %q: %w", src, dst, mapMinioErr(err, src))
	}
	if err := m.client.RemoveObject(ctx, m.bucket, src, minio.RemoveObjectOptions{}); err != nil {
		if undoErr := m.client.RemoveObject(ctx, m.bucket, dst, minio.RemoveObjectOptions{}); undoErr != nil {
			return "", fmt.Errorf("remove source %q: %v; undo copy failed: %v", src, err, undoErr)
		}
		return "", fmt.Errorf("remove source %q: %w", src, err)
	}
	return dst, nil
}

func (m *minioStorage) MoveToArchive(ctx context.Context, key string) (string, error) {
	return m.move(ctx, key, ArchiveKey(key))
}

func (m *minioStorage) RestoreFromArchive(ctx context.Context, key string) (string, error) {
	return m.move(ctx, key, RestoredKey(key))
}

// Delete removes an object by key. S3 semantics make deleting a missing key a no-op.
func (m *minioStorage) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}
