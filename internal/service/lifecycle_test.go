package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clinicfiles/internal/model"
	"clinicfiles/internal/repository"
	"clinicfiles/internal/repository/memory"
	"clinicfiles/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how often each blob operation reaches the backend.
type countingStore struct {
	storage.BlobStore
	puts, moves, restores, deletes atomic.Int32
}

func (c *countingStore) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	c.puts.Add(1)
	return c.BlobStore.Put(ctx, key, r, opt)
}

func (c *countingStore) MoveToArchive(ctx context.Context, key string) (string, error) {
	c.moves.Add(1)
	return c.BlobStore.MoveToArchive(ctx, key)
}

func (c *countingStore) RestoreFromArchive(ctx context.Context, key string) (string, error) {
	c.restores.Add(1)
	return c.BlobStore.RestoreFromArchive(ctx, key)
}

func (c *countingStore) Delete(ctx context.Context, key string) error {
	c.deletes.Add(1)
	return c.BlobStore.Delete(ctx, key)
}

// flakyRepo fails the next conditional update with failUpdate.
type flakyRepo struct {
	repository.FileRepository
	mu         sync.Mutex
	failUpdate error
}

func (f *flakyRepo) UpdateConditional(ctx context.Context, id int64, expected model.LifecycleState, token string, patch repository.FilePatch, entry *model.HistoryEntry) (bool, error) {
	f.mu.Lock()
	err := f.failUpdate
	f.failUpdate = nil
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.FileRepository.UpdateConditional(ctx, id, expected, token, patch, entry)
}

type lifecycleEnv struct {
	svc     FileService
	fs      afero.Fs
	store   *countingStore
	repo    *memory.FileMemory
	metrics *Metrics
}

func newLifecycleEnv(t *testing.T) *lifecycleEnv {
	t.Helper()
	return newLifecycleEnvWith(t, nil, Options{})
}

func newLifecycleEnvWith(t *testing.T, wrap func(repository.FileRepository) repository.FileRepository, opts Options) *lifecycleEnv {
	t.Helper()
	fsys := afero.NewMemMapFs()
	local, err := storage.NewLocalFs(fsys)
	require.NoError(t, err)
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	store := &countingStore{BlobStore: local}
	mem := memory.NewFileMemory()
	var repo repository.FileRepository = mem
	if wrap != nil {
		repo = wrap(mem)
	}

	var tick atomic.Int64
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	opts.Metrics = metrics
	if opts.Now == nil {
		opts.Now = func() time.Time {
			return base.Add(time.Duration(tick.Add(1)) * time.Second)
		}
	}
	return &lifecycleEnv{
		svc:     NewFileService(store, repo, opts),
		fs:      fsys,
		store:   store,
		repo:    mem,
		metrics: metrics,
	}
}

func (e *lifecycleEnv) upload(t *testing.T, owner, category, body string) *model.FileRecord {
	t.Helper()
	rec, err := e.svc.Upload(context.Background(), UploadInput{
		OwnerID:      owner,
		Category:     category,
		Actor:        "nurse",
		OriginalName: "scan.pdf",
		Size:         int64(len(body)),
		Content:      strings.NewReader(body),
	})
	require.NoError(t, err)
	return rec
}

func (e *lifecycleEnv) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := afero.Exists(e.fs, key)
	require.NoError(t, err)
	return ok
}

func (e *lifecycleEnv) content(t *testing.T, id int64) string {
	t.Helper()
	rc, _, err := e.svc.Open(context.Background(), id)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func actions(entries []model.HistoryEntry) []model.HistoryAction {
	out := make([]model.HistoryAction, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func TestLifecycle_UploadStoresRetrievableBytes(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "S123", "Medical Consultation", "%PDF-1.4 payload")

	assert.Equal(t, model.StateActive, rec.State)
	assert.True(t, strings.HasPrefix(rec.StorageKey, "uploads/S123_Medical Consultation_"))
	assert.True(t, strings.HasSuffix(rec.StorageKey, ".pdf"))
	assert.Equal(t, "%PDF-1.4 payload", env.content(t, rec.ID))

	history, err := env.svc.History(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.HistoryAction{model.ActionUploaded}, actions(history))

	list, err := env.svc.List(ctx, ListQuery{OwnerID: "S123"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}

func TestLifecycle_SoftDeleteRestoreRoundTrip(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	rec := env.upload(t, "S1", "lab", "abc")
	originalKey := rec.StorageKey

	deleted, err := env.svc.SoftDelete(ctx, rec.ID, "admin1")
	require.NoError(t, err)
	assert.Equal(t, model.StateInRecycleBin, deleted.State)
	assert.True(t, strings.HasPrefix(deleted.StorageKey, storage.ArchivePrefix+"/"))
	assert.False(t, env.exists(t, originalKey))
	assert.True(t, env.exists(t, deleted.StorageKey))

	bin, err := env.svc.RecycleBin(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, bin.Total)
	assert.Equal(t, model.RecycleDeleted, bin.Items[0].Reason)

	restored, err := env.svc.Restore(ctx, rec.ID, "admin1")
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, restored.State)
	assert.Nil(t, restored.DeletedBy)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, originalKey, restored.StorageKey)
	assert.Equal(t, "abc", env.content(t, rec.ID))

	stored, err := env.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, restored.StorageKey, stored.StorageKey)
	assert.Nil(t, stored.DeletedAt)

	history, err := env.svc.History(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.HistoryAction{
		model.ActionUploaded,
		model.ActionMovedToRecycleBin,
		model.ActionRestoredFromRecycleBin,
	}, actions(history))

	bin, err = env.svc.RecycleBin(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, bin.Total)
}

func TestLifecycle_SecondSoftDeleteMovesNothing(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	rec := env.upload(t, "S1", "lab", "abc")

	_, err := env.svc.SoftDelete(ctx, rec.ID, "admin1")
	require.NoError(t, err)

	_, err = env.svc.SoftDelete(ctx, rec.ID, "admin1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, int32(1), env.store.moves.Load())
}

func TestLifecycle_PurgeOfActiveFileKeepsBlob(t *testing.T) {
	env := newLifecycleEnv(t)
	rec := env.upload(t, "S1", "lab", "abc")

	err := env.svc.Purge(context.Background(), rec.ID, "admin1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, int32(0), env.store.deletes.Load())
	assert.True(t, env.exists(t, rec.StorageKey))
}

func TestLifecycle_ExampleScenario(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "S123", "Medical Consultation", "bytes")
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, model.StateActive, rec.State)

	rec, err := env.svc.SoftDelete(ctx, 1, "admin1")
	require.NoError(t, err)
	assert.Equal(t, model.StateInRecycleBin, rec.State)
	require.NotNil(t, rec.DeletedBy)
	assert.Equal(t, "admin1", *rec.DeletedBy)

	rec, err = env.svc.Restore(ctx, 1, "admin1")
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, rec.State)
	assert.Nil(t, rec.DeletedBy)

	rec, err = env.svc.SoftDelete(ctx, 1, "admin1")
	require.NoError(t, err)
	archived := rec.StorageKey

	require.NoError(t, env.svc.Purge(ctx, 1, "admin1"))

	_, err = env.svc.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, env.exists(t, archived))

	history, err := env.svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.HistoryAction{
		model.ActionUploaded,
		model.ActionMovedToRecycleBin,
		model.ActionRestoredFromRecycleBin,
		model.ActionMovedToRecycleBin,
		model.ActionPermanentlyDeleted,
	}, actions(history))
	for _, e := range history {
		assert.Equal(t, "S123", e.OwnerID)
		assert.Equal(t, "Medical Consultation", e.CategorySnapshot)
	}
}

func TestLifecycle_ConcurrentSoftDelete(t *testing.T) {
	env := newLifecycleEnv(t)
	rec := env.upload(t, "S1", "lab", "abc")

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = env.svc.SoftDelete(context.Background(), rec.ID, fmt.Sprintf("admin%d", i))
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int32(1), env.store.moves.Load())

	stored, err := env.svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInRecycleBin, stored.State)

	history, err := env.svc.History(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.transitions.WithLabelValues(opSoftDelete, "ok")))
	assert.Equal(t, float64(callers-1), testutil.ToFloat64(env.metrics.transitions.WithLabelValues(opSoftDelete, string(KindInvalidTransition))))
}

func TestLifecycle_ReplaceArchivesPreviousVersion(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	rec := env.upload(t, "S1", "lab", "v1")
	oldKey := rec.StorageKey

	replaced, err := env.svc.Replace(ctx, rec.ID, ReplaceInput{
		Actor:        "nurse2",
		OriginalName: "scan-v2.pdf",
		Size:         2,
		Content:      strings.NewReader("v2"),
	})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, replaced.ID)
	assert.Equal(t, model.StateActive, replaced.State)
	assert.NotEqual(t, oldKey, replaced.StorageKey)
	assert.Equal(t, "v2", env.content(t, rec.ID))

	archivedOld := storage.ArchiveKey(oldKey)
	assert.False(t, env.exists(t, oldKey))
	assert.True(t, env.exists(t, archivedOld))

	bin, err := env.svc.RecycleBin(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, bin.Total)
	assert.Equal(t, model.RecycleReplaced, bin.Items[0].Reason)
	assert.Equal(t, archivedOld, bin.Items[0].BlobKey)

	_, err = env.svc.SoftDelete(ctx, rec.ID, "admin1")
	require.NoError(t, err)
	require.NoError(t, env.svc.Purge(ctx, rec.ID, "admin1"))
	assert.False(t, env.exists(t, archivedOld), "superseded versions are purged with the record")

	history, err := env.svc.History(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.HistoryAction{
		model.ActionUploaded,
		model.ActionReplaced,
		model.ActionMovedToRecycleBin,
		model.ActionPermanentlyDeleted,
	}, actions(history))
	assert.Equal(t, archivedOld, history[1].StorageKeySnapshot)
}

func TestLifecycle_ReplaceRenamesToNewExtension(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	rec := env.upload(t, "S123", "Medical Consultation", "%PDF")
	require.True(t, strings.HasSuffix(rec.FileName, ".pdf"))

	replaced, err := env.svc.Replace(ctx, rec.ID, ReplaceInput{
		Actor:        "nurse2",
		OriginalName: "photo.png",
		Size:         4,
		Content:      strings.NewReader("\x89PNG"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(replaced.FileName, ".png"), replaced.FileName)
	assert.Equal(t, storage.ActiveKey(replaced.FileName), replaced.StorageKey)
	assert.Equal(t, "image/png", replaced.ContentType)

	stored, err := env.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, replaced.FileName, stored.FileName)
	assert.Equal(t, replaced.StorageKey, stored.StorageKey)

	history, err := env.svc.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, rec.FileName, history[1].FileNameSnapshot, "the Replaced entry names the superseded version")
}

func TestLifecycle_SameMillisecondNamesStayMovable(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	env := newLifecycleEnvWith(t, nil, Options{Now: func() time.Time { return at }})
	ctx := context.Background()

	first := env.upload(t, "S1", "C", "one")
	_, err := env.svc.SoftDelete(ctx, first.ID, "admin1")
	require.NoError(t, err)

	second := env.upload(t, "S1", "C", "two")
	assert.NotEqual(t, first.StorageKey, second.StorageKey)

	_, err = env.svc.SoftDelete(ctx, second.ID, "admin1")
	require.NoError(t, err)

	restored, err := env.svc.Restore(ctx, first.ID, "admin1")
	require.NoError(t, err)
	assert.Equal(t, "one", env.content(t, restored.ID))
}

func TestLifecycle_MetadataFailureIsCompensated(t *testing.T) {
	var flaky *flakyRepo
	env := newLifecycleEnvWith(t, func(r repository.FileRepository) repository.FileRepository {
		flaky = &flakyRepo{FileRepository: r}
		return flaky
	}, Options{})
	ctx := context.Background()
	rec := env.upload(t, "S1", "lab", "abc")

	flaky.failUpdate = errors.New("connection reset by peer")
	_, err := env.svc.SoftDelete(ctx, rec.ID, "admin1")
	se := requireServiceError(t, err, KindMetadataWrite)
	assert.Equal(t, &Compensation{Attempted: true, Succeeded: true}, se.Compensation)
	assert.True(t, se.PartialEffect())

	assert.True(t, env.exists(t, rec.StorageKey), "blob is moved back")
	assert.False(t, env.exists(t, storage.ArchiveKey(rec.StorageKey)))
	stored, err := env.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, stored.State)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.compensations.WithLabelValues(opSoftDelete, "succeeded")))

	// The claim was released, so the caller can retry after re-reading the record.
	_, err = env.svc.SoftDelete(ctx, rec.ID, "admin1")
	require.NoError(t, err)

	history, err := env.svc.History(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.HistoryAction{model.ActionUploaded, model.ActionMovedToRecycleBin}, actions(history))
}

// stallingStore never finishes a move before the context expires.
type stallingStore struct {
	storage.BlobStore
}

func (s stallingStore) MoveToArchive(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestLifecycle_BlobTimeoutIsReportedNotRetried(t *testing.T) {
	fsys := afero.NewMemMapFs()
	local, err := storage.NewLocalFs(fsys)
	require.NoError(t, err)
	store := &countingStore{BlobStore: stallingStore{BlobStore: local}}
	repo := memory.NewFileMemory()
	svc := NewFileService(store, repo, Options{BlobTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	rec, err := svc.Upload(ctx, UploadInput{OwnerID: "S1", Category: "lab", Actor: "nurse", OriginalName: "a.txt", Size: 1, Content: strings.NewReader("x")})
	require.NoError(t, err)

	_, err = svc.SoftDelete(ctx, rec.ID, "admin1")
	se := requireServiceError(t, err, KindBlobOperation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, se.PartialEffect())
	assert.Equal(t, int32(1), store.moves.Load())

	stored, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, stored.State)
}
