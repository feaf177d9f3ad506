package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"

	"github.com/spf13/afero"
)

// localStorage implements BlobStore on a filesystem directory holding the uploads/ and
// recycle_bin/ areas side by side. Moves are renames within the same filesystem.
type localStorage struct {
	fs afero.Fs
}

// NewLocal roots a BlobStore at dir on the host filesystem, creating both areas.
func NewLocal(dir string) (BlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewLocalFs(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// NewLocalFs builds the local backend on any afero filesystem; tests pass afero.NewMemMapFs().
func NewLocalFs(fsys afero.Fs) (BlobStore, error) {
	for _, dir := range []string{ActivePrefix, ArchivePrefix} {
		if err := fsys.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s area: %w", dir, err)
		}
	}
	return &localStorage{fs: fsys}, nil
}

func mapFsErr(err error, key string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", key, ErrObjectExists)
	}
	return err
}

func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	for _, k := range reservedKeys(key)[1:] {
		taken, err := afero.Exists(l.fs, k)
		if err != nil {
			return ObjectInfo{}, err
		}
		if taken {
			return ObjectInfo{}, fmt.Errorf("%s: %w", k, ErrObjectExists)
		}
	}
	if err := l.fs.MkdirAll(path.Dir(key), 0o750); err != nil {
		return ObjectInfo{}, err
	}
	f, err := l.fs.OpenFile(key, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return ObjectInfo{}, mapFsErr(err, key)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.fs.Remove(key)
		return ObjectInfo{}, fmt.Errorf("write %s: %w", key, err)
	}
	if opt.Size > 0 && n != opt.Size {
		_ = l.fs.Remove(key)
		return ObjectInfo{}, fmt.Errorf("write %s: short write %d of %d bytes", key, n, opt.Size)
	}

	st, err := l.fs.Stat(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := l.fs.Open(key)
	if err != nil {
		return nil, ObjectInfo{}, mapFsErr(err, key)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  ct,
		LastModified: st.ModTime(),
	}, nil
}

func (l *localStorage) move(ctx context.Context, src, dst string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := l.fs.Stat(src); err != nil {
		return "", mapFsErr(err, src)
	}
	if _, err := l.fs.Stat(dst); err == nil {
		return "", fmt.Errorf("%s: %w", dst, ErrObjectExists)
	}
	if err := l.fs.MkdirAll(path.Dir(dst), 0o750); err != nil {
		return "", err
	}
	if err := l.fs.Rename(src, dst); err != nil {
		return "", fmt.Errorf("rename %q -> %q: %w", src, dst, mapFsErr(err, src))
	}
	return dst, nil
}

func (l *localStorage) MoveToArchive(ctx context.Context, key string) (string, error) {
	return l.move(ctx, key, ArchiveKey(key))
}

func (l *localStorage) RestoreFromArchive(ctx context.Context, key string) (string, error) {
	return l.move(ctx, key, RestoredKey(key))
}

func (l *localStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.fs.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
