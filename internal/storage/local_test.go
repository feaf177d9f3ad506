package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) (BlobStore, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store, err := NewLocalFs(fsys)
	require.NoError(t, err)
	return store, fsys
}

func readAll(t *testing.T, store BlobStore, key string) string {
	t.Helper()
	rc, _, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestLocal_PutGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore(t)

	info, err := store.Put(ctx, "uploads/a.pdf", strings.NewReader("hello"), PutObjectOptions{Size: 5, ContentType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "uploads/a.pdf", info.Key)

	assert.Equal(t, "hello", readAll(t, store, "uploads/a.pdf"))

	_, info, err = store.Get(ctx, "uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", info.ContentType)
}

func TestLocal_PutRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore(t)

	_, err := store.Put(ctx, "uploads/a.pdf", strings.NewReader("one"), PutObjectOptions{Size: -1})
	require.NoError(t, err)

	_, err = store.Put(ctx, "uploads/a.pdf", strings.NewReader("two"), PutObjectOptions{Size: -1})
	assert.ErrorIs(t, err, ErrObjectExists)
	assert.Equal(t, "one", readAll(t, store, "uploads/a.pdf"))
}

func TestLocal_PutRefusesKeyTakenInRecycleBin(t *testing.T) {
	ctx := context.Background()
	store, fsys := newMemStore(t)

	_, err := store.Put(ctx, "uploads/a.pdf", strings.NewReader("one"), PutObjectOptions{Size: -1})
	require.NoError(t, err)
	_, err = store.MoveToArchive(ctx, "uploads/a.pdf")
	require.NoError(t, err)

	_, err = store.Put(ctx, "uploads/a.pdf", strings.NewReader("two"), PutObjectOptions{Size: -1})
	assert.ErrorIs(t, err, ErrObjectExists)

	exists, _ := afero.Exists(fsys, "uploads/a.pdf")
	assert.False(t, exists)
	assert.Equal(t, "one", readAll(t, store, "recycle_bin/a.pdf"))
}

func TestLocal_ShortWriteIsRemoved(t *testing.T) {
	ctx := context.Background()
	store, fsys := newMemStore(t)

	_, err := store.Put(ctx, "uploads/a.pdf", strings.NewReader("abc"), PutObjectOptions{Size: 10})
	assert.Error(t, err)

	exists, _ := afero.Exists(fsys, "uploads/a.pdf")
	assert.False(t, exists)
}

func TestLocal_ArchiveAndRestore(t *testing.T) {
	ctx := context.Background()
	store, fsys := newMemStore(t)

	_, err := store.Put(ctx, "uploads/a.pdf", strings.NewReader("data"), PutObjectOptions{Size: 4})
	require.NoError(t, err)

	archived, err := store.MoveToArchive(ctx, "uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "recycle_bin/a.pdf", archived)

	exists, _ := afero.Exists(fsys, "uploads/a.pdf")
	assert.False(t, exists, "blob must live in exactly one area")
	assert.Equal(t, "data", readAll(t, store, archived))

	restored, err := store.RestoreFromArchive(ctx, archived)
	require.NoError(t, err)
	assert.Equal(t, "uploads/a.pdf", restored)
	exists, _ = afero.Exists(fsys, archived)
	assert.False(t, exists)
	assert.Equal(t, "data", readAll(t, store, restored))
}

func TestLocal_MoveErrors(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore(t)

	_, err := store.MoveToArchive(ctx, "uploads/missing.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = store.Put(ctx, "uploads/a.pdf", strings.NewReader("new"), PutObjectOptions{Size: -1})
	require.NoError(t, err)
	_, err = store.Put(ctx, "recycle_bin/a.pdf", strings.NewReader("old"), PutObjectOptions{Size: -1})
	require.NoError(t, err)

	_, err = store.MoveToArchive(ctx, "uploads/a.pdf")
	assert.ErrorIs(t, err, ErrObjectExists)
	assert.Equal(t, "old", readAll(t, store, "recycle_bin/a.pdf"))
}

func TestLocal_Delete(t *testing.T) {
	ctx := context.Background()
	store, fsys := newMemStore(t)

	_, err := store.Put(ctx, "recycle_bin/a.pdf", strings.NewReader("x"), PutObjectOptions{Size: 1})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "recycle_bin/a.pdf"))
	exists, _ := afero.Exists(fsys, "recycle_bin/a.pdf")
	assert.False(t, exists)

	assert.NoError(t, store.Delete(ctx, "recycle_bin/a.pdf"), "deleting a missing blob is a no-op")
}

func TestLocal_CanceledContext(t *testing.T) {
	store, _ := newMemStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.MoveToArchive(ctx, "uploads/a.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}
