package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinicfiles/internal/model"
	"clinicfiles/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no lifecycle rules.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

const fileColumns = `id, file_name, storage_key, owner_id, category, content_type, size,
		uploaded_by, updated_by, deleted_by, lifecycle_state, created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*model.FileRecord, error) {
	var (
		f         model.FileRecord
		deletedBy sql.NullString
		deletedAt sql.NullTime
		state     string
	)
	if err := s.Scan(
		&f.ID,
		&f.FileName,
		&f.StorageKey,
		&f.OwnerID,
		&f.Category,
		&f.ContentType,
		&f.Size,
		&f.UploadedBy,
		&f.UpdatedBy,
		&deletedBy,
		&state,
		&f.CreatedAt,
		&f.UpdatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	f.State = model.LifecycleState(state)
	if deletedBy.Valid {
		f.DeletedBy = &deletedBy.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		f.DeletedAt = &t
	}
	return &f, nil
}

// Insert stores the record and its history entry in one transaction.
func (r *FilePostgres) Insert(ctx context.Context, rec *model.FileRecord, entry *model.HistoryEntry) (*model.FileRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO files (file_name, storage_key, owner_id, category, content_type, size,
			uploaded_by, updated_by, lifecycle_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + fileColumns
	row := tx.QueryRowContext(ctx, q,
		rec.FileName,
		rec.StorageKey,
		rec.OwnerID,
		rec.Category,
		rec.ContentType,
		rec.Size,
		rec.UploadedBy,
		rec.UpdatedBy,
		string(rec.State),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	out, err := scanFile(row)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}

	if entry != nil {
		entry.FileID = out.ID
		if err := insertHistory(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// FindByID fetches a single record by its id.
func (r *FilePostgres) FindByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	f, err := scanFile(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func buildFileWhere(f repository.FileFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.State != "" {
		args = append(args, string(f.State))
		conds = append(conds, fmt.Sprintf("lifecycle_state = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns records using LIMIT/OFFSET pagination and a total count.
func (r *FilePostgres) List(ctx context.Context, f repository.FileFilter, pq repository.PageQuery) (*repository.PageResult[model.FileRecord], error) {
	where, args := buildFileWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT %s FROM files%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		fileColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.FileRecord, 0)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.FileRecord]{Items: items, Total: total}, nil
}

// Claim sets the transition token when the row is in the expected state and unclaimed
// (or its previous claim expired).
func (r *FilePostgres) Claim(ctx context.Context, id int64, expected model.LifecycleState, token string, ttl time.Duration) (bool, error) {
	const q = `
		UPDATE files
		SET transition_token = $3, transition_expires_at = now() + ($4 * interval '1 millisecond')
		WHERE id = $1 AND lifecycle_state = $2
		  AND (transition_token IS NULL OR transition_expires_at < now())
	`
	res, err := r.db.ExecContext(ctx, q, id, string(expected), token, ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return n == 1, nil
}

// Release clears a claim held under token. Releasing a claim that is no longer held is a no-op.
func (r *FilePostgres) Release(ctx context.Context, id int64, token string) error {
	const q = `
		UPDATE files SET transition_token = NULL, transition_expires_at = NULL
		WHERE id = $1 AND transition_token = $2
	`
	if _, err := r.db.ExecContext(ctx, q, id, token); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}

// UpdateConditional applies patch when the row is in the expected state and claimed under token.
func (r *FilePostgres) UpdateConditional(ctx context.Context, id int64, expected model.LifecycleState, token string, patch repository.FilePatch, entry *model.HistoryEntry) (bool, error) {
	sets := []string{"transition_token = NULL", "transition_expires_at = NULL"}
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.State != nil {
		set("lifecycle_state", string(*patch.State))
	}
	if patch.FileName != nil {
		set("file_name", *patch.FileName)
	}
	if patch.StorageKey != nil {
		set("storage_key", *patch.StorageKey)
	}
	if patch.ContentType != nil {
		set("content_type", *patch.ContentType)
	}
	if patch.Size != nil {
		set("size", *patch.Size)
	}
	if patch.UpdatedBy != nil {
		set("updated_by", *patch.UpdatedBy)
	}
	if !patch.UpdatedAt.IsZero() {
		set("updated_at", patch.UpdatedAt)
	}
	switch {
	case patch.SetDeleted != nil:
		set("deleted_by", patch.SetDeleted.By)
		set("deleted_at", patch.SetDeleted.At)
	case patch.ClearDeleted:
		sets = append(sets, "deleted_by = NULL", "deleted_at = NULL")
	}

	args = append(args, id, string(expected), token)
	q := fmt.Sprintf(`UPDATE files SET %s WHERE id = $%d AND lifecycle_state = $%d AND transition_token = $%d`,
		strings.Join(sets, ", "), len(args)-2, len(args)-1, len(args))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("update file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update rows affected: %w", err)
	}
	if n != 1 {
		return false, nil
	}

	if patch.DropRecycle != "" {
		const qDrop = `DELETE FROM recycle_bin WHERE file_id = $1 AND reason = $2`
		if _, err := tx.ExecContext(ctx, qDrop, id, string(patch.DropRecycle)); err != nil {
			return false, fmt.Errorf("drop recycle entry: %w", err)
		}
	}
	if e := patch.AddRecycle; e != nil {
		const qAdd = `
			INSERT INTO recycle_bin (file_id, blob_key, original_key, reason, deleted_by, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, qAdd, id, e.BlobKey, e.OriginalKey, string(e.Reason), e.DeletedBy, e.DeletedAt); err != nil {
			return false, fmt.Errorf("add recycle entry: %w", err)
		}
	}
	if entry != nil {
		entry.FileID = id
		if err := insertHistory(ctx, tx, entry); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Delete removes the row (its recycle_bin rows cascade) and appends entry.
func (r *FilePostgres) Delete(ctx context.Context, id int64, expected model.LifecycleState, token string, entry *model.HistoryEntry) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `DELETE FROM files WHERE id = $1 AND lifecycle_state = $2 AND transition_token = $3`
	res, err := tx.ExecContext(ctx, q, id, string(expected), token)
	if err != nil {
		return false, fmt.Errorf("delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows affected: %w", err)
	}
	if n != 1 {
		return false, nil
	}

	if entry != nil {
		entry.FileID = id
		if err := insertHistory(ctx, tx, entry); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, e *model.HistoryEntry) error {
	const q = `
		INSERT INTO file_history (file_id, owner_id, action, actor, timestamp, file_name, category, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, q,
		e.FileID,
		e.OwnerID,
		string(e.Action),
		e.Actor,
		e.Timestamp,
		e.FileNameSnapshot,
		e.CategorySnapshot,
		e.StorageKeySnapshot,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// ListHistory returns the ledger of a file in transition order.
func (r *FilePostgres) ListHistory(ctx context.Context, fileID int64) ([]model.HistoryEntry, error) {
	const q = `
		SELECT id, file_id, owner_id, action, actor, timestamp, file_name, category, storage_key
		FROM file_history
		WHERE file_id = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var (
			e      model.HistoryEntry
			action string
		)
		if err := rows.Scan(
			&e.ID,
			&e.FileID,
			&e.OwnerID,
			&action,
			&e.Actor,
			&e.Timestamp,
			&e.FileNameSnapshot,
			&e.CategorySnapshot,
			&e.StorageKeySnapshot,
		); err != nil {
			return nil, err
		}
		e.Action = model.HistoryAction(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRecycleBin returns recycle-bin index rows joined with their file, newest first.
func (r *FilePostgres) ListRecycleBin(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.RecycleBinEntry], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recycle_bin`).Scan(&total); err != nil {
		return nil, err
	}

	const q = `
		SELECT r.id, r.file_id, f.owner_id, f.file_name, r.blob_key, r.original_key, r.reason, r.deleted_by, r.deleted_at
		FROM recycle_bin r
		JOIN files f ON f.id = r.file_id
		ORDER BY r.deleted_at DESC, r.id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, q, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.RecycleBinEntry, 0)
	for rows.Next() {
		var (
			e      model.RecycleBinEntry
			reason string
		)
		if err := rows.Scan(
			&e.ID,
			&e.FileID,
			&e.OwnerID,
			&e.FileName,
			&e.BlobKey,
			&e.OriginalKey,
			&reason,
			&e.DeletedBy,
			&e.DeletedAt,
		); err != nil {
			return nil, err
		}
		e.Reason = model.RecycleReason(reason)
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.RecycleBinEntry]{Items: items, Total: total}, nil
}

// ArchivedKeys lists superseded blob keys recorded by replaces of a file.
func (r *FilePostgres) ArchivedKeys(ctx context.Context, fileID int64) ([]string, error) {
	const q = `SELECT blob_key FROM recycle_bin WHERE file_id = $1 AND reason = $2 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, fileID, string(model.RecycleReplaced))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
