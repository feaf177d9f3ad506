// Package memory is an in-process FileRepository with the same conditional-write
// semantics as the PostgreSQL store. It backs lifecycle tests and local experiments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"clinicfiles/internal/model"
	"clinicfiles/internal/repository"
)

var errDuplicateKey = errors.New("memory: duplicate storage key")

type claim struct {
	token   string
	expires time.Time
}

// FileMemory is safe for concurrent use.
type FileMemory struct {
	mu      sync.Mutex
	now     func() time.Time
	nextID  int64
	nextHID int64
	nextRID int64
	files   map[int64]model.FileRecord
	claims  map[int64]claim
	history []model.HistoryEntry
	recycle []model.RecycleBinEntry
}

// NewFileMemory returns an empty store.
func NewFileMemory() *FileMemory {
	return &FileMemory{
		now:    time.Now,
		files:  make(map[int64]model.FileRecord),
		claims: make(map[int64]claim),
	}
}

var _ repository.FileRepository = (*FileMemory)(nil)

func (m *FileMemory) Insert(_ context.Context, rec *model.FileRecord, entry *model.HistoryEntry) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.files {
		if f.StorageKey == rec.StorageKey {
			return nil, errDuplicateKey
		}
	}

	m.nextID++
	out := *rec
	out.ID = m.nextID
	m.files[out.ID] = out

	if entry != nil {
		entry.FileID = out.ID
		m.appendHistory(entry)
	}
	return &out, nil
}

func (m *FileMemory) FindByID(_ context.Context, id int64) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (m *FileMemory) List(_ context.Context, f repository.FileFilter, pq repository.PageQuery) (*repository.PageResult[model.FileRecord], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]model.FileRecord, 0, len(m.files))
	for _, rec := range m.files {
		if f.OwnerID != "" && rec.OwnerID != f.OwnerID {
			continue
		}
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		if f.State != "" && rec.State != f.State {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return &repository.PageResult[model.FileRecord]{Items: page(matched, pq), Total: len(matched)}, nil
}

func (m *FileMemory) Claim(_ context.Context, id int64, expected model.LifecycleState, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[id]
	if !ok || f.State != expected {
		return false, nil
	}
	now := m.now()
	if c, held := m.claims[id]; held && !c.expires.Before(now) {
		return false, nil
	}
	m.claims[id] = claim{token: token, expires: now.Add(ttl)}
	return true, nil
}

func (m *FileMemory) Release(_ context.Context, id int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.claims[id]; ok && c.token == token {
		delete(m.claims, id)
	}
	return nil
}

func (m *FileMemory) holds(id int64, expected model.LifecycleState, token string) bool {
	f, ok := m.files[id]
	if !ok || f.State != expected {
		return false
	}
	c, ok := m.claims[id]
	return ok && c.token == token
}

func (m *FileMemory) UpdateConditional(_ context.Context, id int64, expected model.LifecycleState, token string, patch repository.FilePatch, entry *model.HistoryEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.holds(id, expected, token) {
		return false, nil
	}
	f := m.files[id]
	if patch.State != nil {
		f.State = *patch.State
	}
	if patch.FileName != nil {
		f.FileName = *patch.FileName
	}
	if patch.StorageKey != nil {
		f.StorageKey = *patch.StorageKey
	}
	if patch.ContentType != nil {
		f.ContentType = *patch.ContentType
	}
	if patch.Size != nil {
		f.Size = *patch.Size
	}
	if patch.UpdatedBy != nil {
		f.UpdatedBy = *patch.UpdatedBy
	}
	if !patch.UpdatedAt.IsZero() {
		f.UpdatedAt = patch.UpdatedAt
	}
	switch {
	case patch.SetDeleted != nil:
		by, at := patch.SetDeleted.By, patch.SetDeleted.At
		f.DeletedBy, f.DeletedAt = &by, &at
	case patch.ClearDeleted:
		f.DeletedBy, f.DeletedAt = nil, nil
	}
	m.files[id] = f
	delete(m.claims, id)

	if patch.DropRecycle != "" {
		kept := m.recycle[:0]
		for _, r := range m.recycle {
			if r.FileID == id && r.Reason == patch.DropRecycle {
				continue
			}
			kept = append(kept, r)
		}
		m.recycle = kept
	}
	if patch.AddRecycle != nil {
		m.nextRID++
		r := *patch.AddRecycle
		r.ID, r.FileID = m.nextRID, id
		m.recycle = append(m.recycle, r)
	}
	if entry != nil {
		entry.FileID = id
		m.appendHistory(entry)
	}
	return true, nil
}

func (m *FileMemory) Delete(_ context.Context, id int64, expected model.LifecycleState, token string, entry *model.HistoryEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.holds(id, expected, token) {
		return false, nil
	}
	delete(m.files, id)
	delete(m.claims, id)

	kept := m.recycle[:0]
	for _, r := range m.recycle {
		if r.FileID != id {
			kept = append(kept, r)
		}
	}
	m.recycle = kept

	if entry != nil {
		entry.FileID = id
		m.appendHistory(entry)
	}
	return true, nil
}

func (m *FileMemory) appendHistory(e *model.HistoryEntry) {
	m.nextHID++
	e.ID = m.nextHID
	m.history = append(m.history, *e)
}

func (m *FileMemory) ListHistory(_ context.Context, fileID int64) ([]model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.HistoryEntry, 0)
	for _, e := range m.history {
		if e.FileID == fileID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *FileMemory) ListRecycleBin(_ context.Context, pq repository.PageQuery) (*repository.PageResult[model.RecycleBinEntry], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]model.RecycleBinEntry, 0, len(m.recycle))
	for i := len(m.recycle) - 1; i >= 0; i-- {
		r := m.recycle[i]
		if f, ok := m.files[r.FileID]; ok {
			r.OwnerID, r.FileName = f.OwnerID, f.FileName
		}
		items = append(items, r)
	}
	return &repository.PageResult[model.RecycleBinEntry]{Items: page(items, pq), Total: len(items)}, nil
}

func (m *FileMemory) ArchivedKeys(_ context.Context, fileID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0)
	for _, r := range m.recycle {
		if r.FileID == fileID && r.Reason == model.RecycleReplaced {
			keys = append(keys, r.BlobKey)
		}
	}
	return keys, nil
}

func page[T any](items []T, pq repository.PageQuery) []T {
	if pq.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if pq.Limit > 0 && pq.Offset+pq.Limit < end {
		end = pq.Offset + pq.Limit
	}
	return items[pq.Offset:end]
}
