package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"clinicfiles/internal/model"
	"clinicfiles/internal/repository"
	"clinicfiles/internal/storage"
)

const (
	opUpload     = "Upload"
	opReplace    = "Replace"
	opSoftDelete = "SoftDelete"
	opRestore    = "Restore"
	opPurge      = "Purge"
	opOpen       = "Open"

	defaultLimit = 10
	maxLimit     = 100

	// Generated names carry a millisecond timestamp; a collision moves it forward.
	maxNameAttempts = 3
)

var validate = validator.New()

var errClaimLost = errors.New("record changed during transition")

// UploadInput carries the caller context and payload of a new file.
type UploadInput struct {
	OwnerID      string `validate:"required,max=128"`
	Category     string `validate:"required,max=128"`
	Actor        string `validate:"required,max=128"`
	OriginalName string `validate:"max=255"`
	ContentType  string `validate:"max=255"`
	// Size is the payload length in bytes, or -1 when unknown.
	Size    int64     `validate:"gte=-1"`
	Content io.Reader `validate:"-"`
}

// ReplaceInput carries the new payload of an Active file.
type ReplaceInput struct {
	Actor        string    `validate:"required,max=128"`
	OriginalName string    `validate:"max=255"`
	ContentType  string    `validate:"max=255"`
	Size         int64     `validate:"gte=-1"`
	Content      io.Reader `validate:"-"`
}

// ListQuery filters and paginates file records.
type ListQuery struct {
	OwnerID  string
	Category string
	State    model.LifecycleState
	Limit    int
	Offset   int
}

// FileListResult is the service-level DTO for paginated files.
type FileListResult struct {
	Items []model.FileRecord `json:"data"`
	Total int                `json:"total"`
}

// RecycleBinResult is the service-level DTO for the paginated recycle-bin index.
type RecycleBinResult struct {
	Items []model.RecycleBinEntry `json:"data"`
	Total int                     `json:"total"`
}

// FileService owns the lifecycle of uploaded files: their blob, their metadata row, their
// audit trail and their recycle-bin membership.
//
// Every transition touches the blob store first and commits metadata second. Transitions
// on an existing record claim it in the metadata store before touching the blob, so of two
// racing calls only one reaches the blob store. Failures are returned as *Error.
type FileService interface {
	// Upload stores a new blob under a generated name and inserts an Active record.
	Upload(ctx context.Context, in UploadInput) (*model.FileRecord, error)

	// Replace stores a new blob for an Active record and archives the previous one in the
	// recycle-bin area. The record keeps its id and stays Active.
	Replace(ctx context.Context, id int64, in ReplaceInput) (*model.FileRecord, error)

	// SoftDelete moves an Active file into the recycle bin.
	SoftDelete(ctx context.Context, id int64, actor string) (*model.FileRecord, error)

	// Restore moves a file out of the recycle bin and makes it Active again.
	Restore(ctx context.Context, id int64, actor string) (*model.FileRecord, error)

	// Purge permanently removes a file that is in the recycle bin. Its history is kept.
	Purge(ctx context.Context, id int64, actor string) error

	Get(ctx context.Context, id int64) (*model.FileRecord, error)
	List(ctx context.Context, q ListQuery) (*FileListResult, error)

	// History returns the audit trail of a file, including purged files.
	History(ctx context.Context, id int64) ([]model.HistoryEntry, error)

	RecycleBin(ctx context.Context, limit, offset int) (*RecycleBinResult, error)

	// Open streams the current blob of a file. The caller closes the reader.
	Open(ctx context.Context, id int64) (io.ReadCloser, *model.FileRecord, error)
}

// Options tunes a FileService. Zero values fall back to defaults.
type Options struct {
	BlobTimeout     time.Duration
	MetadataTimeout time.Duration
	// ClaimTTL is raised to minClaimTTL when shorter; zero means exactly that.
	ClaimTTL time.Duration
	Logger   *zap.Logger
	Metrics  *Metrics
	Now      func() time.Time
}

type fileService struct {
	store    storage.BlobStore
	repo     repository.FileRepository
	opts     Options
	log      *zap.Logger
	tracer   trace.Tracer
	newToken func() string
}

// NewFileService constructs a FileService over the given blob and metadata stores.
func NewFileService(store storage.BlobStore, repo repository.FileRepository, opts Options) FileService {
	if opts.BlobTimeout <= 0 {
		opts.BlobTimeout = 30 * time.Second
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if floor := minClaimTTL(opts.BlobTimeout, opts.MetadataTimeout); opts.ClaimTTL < floor {
		if opts.ClaimTTL > 0 {
			opts.Logger.Warn("claim_ttl_raised", zap.Duration("configured", opts.ClaimTTL), zap.Duration("effective", floor))
		}
		opts.ClaimTTL = floor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &fileService{
		store:    store,
		repo:     repo,
		opts:     opts,
		log:      opts.Logger.With(zap.String("component", "file_lifecycle")),
		tracer:   otel.Tracer("clinicfiles/internal/service"),
		newToken: uuid.NewString,
	}
}

func (s *fileService) Upload(ctx context.Context, in UploadInput) (rec *model.FileRecord, err error) {
	ctx, done := s.start(ctx, opUpload, 0)
	defer func() { done(err) }()

	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Category = strings.TrimSpace(in.Category)
	in.Actor = strings.TrimSpace(in.Actor)
	if err = validateInput(opUpload, 0, in); err != nil {
		return nil, err
	}
	if in.Content == nil || in.Size == 0 {
		return nil, newError(KindValidation, opUpload, 0, errors.New("payload is required"))
	}

	now := s.now()
	ct := contentType(in.ContentType, in.OriginalName)
	name, key, info, err := s.putNew(ctx, in.OwnerID, in.Category, in.OriginalName, now, in.Content, in.Size, ct)
	if err != nil {
		s.log.Warn("blob_operation_failed", zap.String("op", opUpload), zap.String("key", key), zap.Error(err))
		return nil, newError(KindBlobOperation, opUpload, 0, err)
	}

	rec = &model.FileRecord{
		FileName:    name,
		StorageKey:  key,
		OwnerID:     in.OwnerID,
		Category:    in.Category,
		ContentType: ct,
		Size:        info.Size,
		UploadedBy:  in.Actor,
		State:       model.StateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	entry := historyEntry(rec, model.ActionUploaded, in.Actor, now, key)

	mctx, cancel := s.metaCtx(ctx)
	stored, ierr := s.repo.Insert(mctx, rec, entry)
	cancel()
	if ierr != nil {
		comp, undoErr := s.compensate(ctx, opUpload, func(ctx context.Context) error {
			return s.store.Delete(ctx, key)
		})
		return nil, s.metadataFailed(ctx, opUpload, 0, "", ierr, comp, undoErr, zap.String("orphan_key", key))
	}

	s.log.Info("file_uploaded", zap.Int64("file_id", stored.ID), zap.String("key", key), zap.String("actor", in.Actor))
	return stored, nil
}

func (s *fileService) Replace(ctx context.Context, id int64, in ReplaceInput) (rec *model.FileRecord, err error) {
	ctx, done := s.start(ctx, opReplace, id)
	defer func() { done(err) }()

	in.Actor = strings.TrimSpace(in.Actor)
	if err = validateInput(opReplace, id, in); err != nil {
		return nil, err
	}
	if in.Content == nil || in.Size == 0 {
		return nil, newError(KindValidation, opReplace, id, errors.New("payload is required"))
	}

	cur, token, err := s.begin(ctx, opReplace, id, model.StateActive)
	if err != nil {
		return nil, err
	}

	now := s.now()
	original := in.OriginalName
	if original == "" {
		original = cur.FileName
	}
	ct := contentType(in.ContentType, original)
	name, key, info, err := s.putNew(ctx, cur.OwnerID, cur.Category, original, now, in.Content, in.Size, ct)
	if err != nil {
		return nil, s.blobFailed(ctx, opReplace, id, token, err, nil)
	}

	bctx, cancel := s.blobCtx(ctx)
	archived, err := s.store.MoveToArchive(bctx, cur.StorageKey)
	cancel()
	if err != nil {
		comp, _ := s.compensate(ctx, opReplace, func(ctx context.Context) error {
			return s.store.Delete(ctx, key)
		})
		return nil, s.blobFailed(ctx, opReplace, id, token, err, &comp)
	}

	size := info.Size
	patch := repository.FilePatch{
		FileName:    &name,
		StorageKey:  &key,
		ContentType: &ct,
		Size:        &size,
		UpdatedBy:   &in.Actor,
		UpdatedAt:   now,
		AddRecycle: &model.RecycleBinEntry{
			BlobKey:     archived,
			OriginalKey: cur.StorageKey,
			Reason:      model.RecycleReplaced,
			DeletedBy:   in.Actor,
			DeletedAt:   now,
		},
	}
	entry := historyEntry(cur, model.ActionReplaced, in.Actor, now, archived)
	if cerr := s.commit(ctx, id, model.StateActive, token, patch, entry); cerr != nil {
		comp, undoErr := s.compensate(ctx, opReplace, func(ctx context.Context) error {
			if _, err := s.store.RestoreFromArchive(ctx, archived); err != nil {
				return err
			}
			return s.store.Delete(ctx, key)
		})
		return nil, s.metadataFailed(ctx, opReplace, id, token, cerr, comp, undoErr,
			zap.String("archived_key", archived), zap.String("new_key", key))
	}

	s.log.Info("file_replaced", zap.Int64("file_id", id), zap.String("key", key), zap.String("archived_key", archived), zap.String("actor", in.Actor))
	return applyPatch(*cur, patch), nil
}

func (s *fileService) SoftDelete(ctx context.Context, id int64, actor string) (rec *model.FileRecord, err error) {
	ctx, done := s.start(ctx, opSoftDelete, id)
	defer func() { done(err) }()

	if actor, err = requireActor(opSoftDelete, id, actor); err != nil {
		return nil, err
	}
	cur, token, err := s.begin(ctx, opSoftDelete, id, model.StateActive)
	if err != nil {
		return nil, err
	}

	bctx, cancel := s.blobCtx(ctx)
	archived, err := s.store.MoveToArchive(bctx, cur.StorageKey)
	cancel()
	if err != nil {
		return nil, s.blobFailed(ctx, opSoftDelete, id, token, err, nil)
	}

	now := s.now()
	state := model.StateInRecycleBin
	patch := repository.FilePatch{
		State:      &state,
		StorageKey: &archived,
		UpdatedAt:  now,
		SetDeleted: &repository.Deletion{By: actor, At: now},
		AddRecycle: &model.RecycleBinEntry{
			BlobKey:     archived,
			OriginalKey: cur.StorageKey,
			Reason:      model.RecycleDeleted,
			DeletedBy:   actor,
			DeletedAt:   now,
		},
	}
	entry := historyEntry(cur, model.ActionMovedToRecycleBin, actor, now, archived)
	if cerr := s.commit(ctx, id, model.StateActive, token, patch, entry); cerr != nil {
		comp, undoErr := s.compensate(ctx, opSoftDelete, func(ctx context.Context) error {
			_, err := s.store.RestoreFromArchive(ctx, archived)
			return err
		})
		return nil, s.metadataFailed(ctx, opSoftDelete, id, token, cerr, comp, undoErr,
			zap.String("from_key", cur.StorageKey), zap.String("to_key", archived))
	}

	s.log.Info("file_moved_to_recycle_bin", zap.Int64("file_id", id), zap.String("key", archived), zap.String("actor", actor))
	return applyPatch(*cur, patch), nil
}

func (s *fileService) Restore(ctx context.Context, id int64, actor string) (rec *model.FileRecord, err error) {
	ctx, done := s.start(ctx, opRestore, id)
	defer func() { done(err) }()

	if actor, err = requireActor(opRestore, id, actor); err != nil {
		return nil, err
	}
	cur, token, err := s.begin(ctx, opRestore, id, model.StateInRecycleBin)
	if err != nil {
		return nil, err
	}

	bctx, cancel := s.blobCtx(ctx)
	restored, err := s.store.RestoreFromArchive(bctx, cur.StorageKey)
	cancel()
	if err != nil {
		return nil, s.blobFailed(ctx, opRestore, id, token, err, nil)
	}

	now := s.now()
	state := model.StateActive
	patch := repository.FilePatch{
		State:        &state,
		StorageKey:   &restored,
		UpdatedBy:    &actor,
		UpdatedAt:    now,
		ClearDeleted: true,
		DropRecycle:  model.RecycleDeleted,
	}
	entry := historyEntry(cur, model.ActionRestoredFromRecycleBin, actor, now, restored)
	if cerr := s.commit(ctx, id, model.StateInRecycleBin, token, patch, entry); cerr != nil {
		comp, undoErr := s.compensate(ctx, opRestore, func(ctx context.Context) error {
			_, err := s.store.MoveToArchive(ctx, restored)
			return err
		})
		return nil, s.metadataFailed(ctx, opRestore, id, token, cerr, comp, undoErr,
			zap.String("from_key", cur.StorageKey), zap.String("to_key", restored))
	}

	s.log.Info("file_restored", zap.Int64("file_id", id), zap.String("key", restored), zap.String("actor", actor))
	return applyPatch(*cur, patch), nil
}

func (s *fileService) Purge(ctx context.Context, id int64, actor string) (err error) {
	ctx, done := s.start(ctx, opPurge, id)
	defer func() { done(err) }()

	if actor, err = requireActor(opPurge, id, actor); err != nil {
		return err
	}
	cur, token, err := s.begin(ctx, opPurge, id, model.StateInRecycleBin)
	if err != nil {
		return err
	}

	mctx, cancel := s.metaCtx(ctx)
	superseded, err := s.repo.ArchivedKeys(mctx, id)
	cancel()
	if err != nil {
		s.release(ctx, opPurge, id, token)
		return fmt.Errorf("%s file %d: list archived versions: %w", opPurge, id, err)
	}

	bctx, cancel := s.blobCtx(ctx)
	err = s.store.Delete(bctx, cur.StorageKey)
	cancel()
	if err != nil {
		return s.blobFailed(ctx, opPurge, id, token, err, nil)
	}

	entry := historyEntry(cur, model.ActionPermanentlyDeleted, actor, s.now(), cur.StorageKey)
	mctx, cancel = s.metaCtx(ctx)
	ok, derr := s.repo.Delete(mctx, id, model.StateInRecycleBin, token, entry)
	cancel()
	if derr == nil && !ok {
		derr = errClaimLost
	}
	if derr != nil {
		// The blob is gone; the record can only be reconciled by hand.
		comp := Compensation{}
		s.opts.Metrics.compensated(opPurge, comp)
		return s.metadataFailed(ctx, opPurge, id, token, derr, comp, nil, zap.String("deleted_key", cur.StorageKey))
	}

	for _, key := range superseded {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.BlobTimeout)
		if err := s.store.Delete(dctx, key); err != nil {
			s.log.Warn("archived_version_left", zap.Int64("file_id", id), zap.String("key", key), zap.Error(err))
		}
		cancel()
	}

	s.log.Info("file_purged", zap.Int64("file_id", id), zap.String("key", cur.StorageKey), zap.Int("archived_versions", len(superseded)), zap.String("actor", actor))
	return nil
}

func (s *fileService) Get(ctx context.Context, id int64) (*model.FileRecord, error) {
	if id <= 0 {
		return nil, newError(KindValidation, "Get", id, errors.New("id must be positive"))
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, "Get", id, err)
		}
		return nil, fmt.Errorf("get file %d: %w", id, err)
	}
	return rec, nil
}

func (s *fileService) List(ctx context.Context, q ListQuery) (*FileListResult, error) {
	if q.State != "" && !q.State.Valid() {
		return nil, newError(KindValidation, "List", 0, fmt.Errorf("unknown state %q", q.State))
	}
	limit, offset := pageBounds(q.Limit, q.Offset)
	res, err := s.repo.List(ctx, repository.FileFilter{
		OwnerID:  q.OwnerID,
		Category: q.Category,
		State:    q.State,
	}, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &FileListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *fileService) History(ctx context.Context, id int64) ([]model.HistoryEntry, error) {
	if id <= 0 {
		return nil, newError(KindValidation, "History", id, errors.New("id must be positive"))
	}
	entries, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, newError(KindNotFound, "History", id, nil)
	}
	return entries, nil
}

func (s *fileService) RecycleBin(ctx context.Context, limit, offset int) (*RecycleBinResult, error) {
	limit, offset = pageBounds(limit, offset)
	res, err := s.repo.ListRecycleBin(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &RecycleBinResult{Items: res.Items, Total: res.Total}, nil
}

func (s *fileService) Open(ctx context.Context, id int64) (io.ReadCloser, *model.FileRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, rec.StorageKey)
	if err != nil {
		return nil, nil, newError(KindBlobOperation, opOpen, id, err)
	}
	return rc, rec, nil
}

// begin loads the record, checks its state and claims it for one transition.
func (s *fileService) begin(ctx context.Context, op string, id int64, from model.LifecycleState) (*model.FileRecord, string, error) {
	if id <= 0 {
		return nil, "", newError(KindValidation, op, id, errors.New("id must be positive"))
	}
	mctx, cancel := s.metaCtx(ctx)
	defer cancel()

	cur, err := s.repo.FindByID(mctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", newError(KindNotFound, op, id, err)
		}
		return nil, "", fmt.Errorf("%s file %d: load: %w", op, id, err)
	}
	if cur.State != from {
		return nil, "", newError(KindInvalidTransition, op, id, fmt.Errorf("file is %s, want %s", cur.State, from))
	}

	token := s.newToken()
	ok, err := s.repo.Claim(mctx, id, from, token, s.opts.ClaimTTL)
	if err != nil {
		return nil, "", fmt.Errorf("%s file %d: claim: %w", op, id, err)
	}
	if !ok {
		return nil, "", newError(KindInvalidTransition, op, id, errors.New("file changed state or is in another transition"))
	}
	return cur, token, nil
}

func (s *fileService) commit(ctx context.Context, id int64, from model.LifecycleState, token string, patch repository.FilePatch, entry *model.HistoryEntry) error {
	mctx, cancel := s.metaCtx(ctx)
	defer cancel()
	ok, err := s.repo.UpdateConditional(mctx, id, from, token, patch, entry)
	if err != nil {
		return err
	}
	if !ok {
		return errClaimLost
	}
	return nil
}

// putNew writes content under a fresh active key, moving the timestamp forward when the
// generated name is already taken.
func (s *fileService) putNew(ctx context.Context, ownerID, category, original string, at time.Time, r io.Reader, size int64, ct string) (string, string, storage.ObjectInfo, error) {
	var (
		name, key string
		info      storage.ObjectInfo
		err       error
	)
	for i := 0; i < maxNameAttempts; i++ {
		name = FileName(ownerID, category, at.Add(time.Duration(i)*time.Millisecond), original)
		key = storage.ActiveKey(name)

		bctx, cancel := s.blobCtx(ctx)
		info, err = s.store.Put(bctx, key, r, storage.PutObjectOptions{
			Size:        size,
			ContentType: ct,
			Metadata:    map[string]string{"original-filename": original},
		})
		cancel()
		if !errors.Is(err, storage.ErrObjectExists) {
			break
		}
	}
	return name, key, info, err
}

func (s *fileService) blobFailed(ctx context.Context, op string, id int64, token string, err error, comp *Compensation) error {
	e := &Error{Kind: KindBlobOperation, Op: op, FileID: id, Err: err, Compensation: comp}
	e.ClaimStuck = !s.release(ctx, op, id, token)
	s.log.Warn("blob_operation_failed", zap.String("op", op), zap.Int64("file_id", id), zap.Error(err))
	return e
}

func (s *fileService) metadataFailed(ctx context.Context, op string, id int64, token string, err error, comp Compensation, undoErr error, fields ...zap.Field) error {
	e := &Error{Kind: KindMetadataWrite, Op: op, FileID: id, Err: err, Compensation: &comp}
	if token != "" {
		e.ClaimStuck = !s.release(ctx, op, id, token)
	}
	fields = append(fields,
		zap.String("op", op),
		zap.Int64("file_id", id),
		zap.Error(err),
		zap.Bool("compensation_attempted", comp.Attempted),
		zap.Bool("compensation_succeeded", comp.Succeeded),
	)
	if undoErr != nil {
		fields = append(fields, zap.NamedError("compensation_error", undoErr))
	}
	s.log.Error("metadata_write_failed", fields...)
	return e
}

// compensate runs undo even when the request context is already done.
func (s *fileService) compensate(ctx context.Context, op string, undo func(context.Context) error) (Compensation, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.BlobTimeout)
	defer cancel()
	err := undo(cctx)
	c := Compensation{Attempted: true, Succeeded: err == nil}
	s.opts.Metrics.compensated(op, c)
	return c, err
}

func (s *fileService) release(ctx context.Context, op string, id int64, token string) bool {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.MetadataTimeout)
	defer cancel()
	if err := s.repo.Release(rctx, id, token); err != nil {
		s.log.Warn("claim_release_failed", zap.String("op", op), zap.Int64("file_id", id), zap.Error(err))
		return false
	}
	return true
}

func (s *fileService) start(ctx context.Context, op string, id int64) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "FileService."+op)
	if id != 0 {
		span.SetAttributes(attribute.Int64("file.id", id))
	}
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.opts.Metrics.observe(op, err)
	}
}

// minClaimTTL is the longest a transition can hold its claim: the load and claim, every
// name attempt of a Replace, the archive move and the commit.
func minClaimTTL(blob, meta time.Duration) time.Duration {
	return time.Duration(maxNameAttempts+1)*blob + 2*meta
}

func (s *fileService) blobCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.BlobTimeout)
}

func (s *fileService) metaCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.MetadataTimeout)
}

func (s *fileService) now() time.Time {
	return s.opts.Now().UTC()
}

func validateInput(op string, id int64, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return newError(KindValidation, op, id, fmt.Errorf("%s failed on %q", ve[0].Field(), ve[0].Tag()))
	}
	return newError(KindValidation, op, id, err)
}

func requireActor(op string, id int64, actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", newError(KindValidation, op, id, errors.New("actor is required"))
	}
	return actor, nil
}

func contentType(given, name string) string {
	if given != "" {
		return given
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func historyEntry(rec *model.FileRecord, action model.HistoryAction, actor string, at time.Time, key string) *model.HistoryEntry {
	return &model.HistoryEntry{
		FileID:             rec.ID,
		OwnerID:            rec.OwnerID,
		Action:             action,
		Actor:              actor,
		Timestamp:          at,
		FileNameSnapshot:   rec.FileName,
		CategorySnapshot:   rec.Category,
		StorageKeySnapshot: key,
	}
}

// applyPatch mirrors a committed patch onto the record returned to the caller.
func applyPatch(rec model.FileRecord, p repository.FilePatch) *model.FileRecord {
	if p.State != nil {
		rec.State = *p.State
	}
	if p.FileName != nil {
		rec.FileName = *p.FileName
	}
	if p.StorageKey != nil {
		rec.StorageKey = *p.StorageKey
	}
	if p.ContentType != nil {
		rec.ContentType = *p.ContentType
	}
	if p.Size != nil {
		rec.Size = *p.Size
	}
	if p.UpdatedBy != nil {
		rec.UpdatedBy = *p.UpdatedBy
	}
	if !p.UpdatedAt.IsZero() {
		rec.UpdatedAt = p.UpdatedAt
	}
	switch {
	case p.SetDeleted != nil:
		by, at := p.SetDeleted.By, p.SetDeleted.At
		rec.DeletedBy, rec.DeletedAt = &by, &at
	case p.ClearDeleted:
		rec.DeletedBy, rec.DeletedAt = nil, nil
	}
	return &rec
}
