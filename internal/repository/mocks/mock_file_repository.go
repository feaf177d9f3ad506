package mocks

import (
	"context"
	"time"

	"clinicfiles/internal/model"
	"clinicfiles/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockFileRepository struct {
	mock.Mock
}

var _ repository.FileRepository = (*MockFileRepository)(nil)

func (m *MockFileRepository) Insert(ctx context.Context, rec *model.FileRecord, entry *model.HistoryEntry) (*model.FileRecord, error) {
	args := m.Called(ctx, rec, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileRepository) FindByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileRepository) List(ctx context.Context, f repository.FileFilter, pq repository.PageQuery) (*repository.PageResult[model.FileRecord], error) {
	args := m.Called(ctx, f, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.FileRecord]), args.Error(1)
}

func (m *MockFileRepository) Claim(ctx context.Context, id int64, expected model.LifecycleState, token string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, id, expected, token, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileRepository) Release(ctx context.Context, id int64, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *MockFileRepository) UpdateConditional(ctx context.Context, id int64, expected model.LifecycleState, token string, patch repository.FilePatch, entry *model.HistoryEntry) (bool, error) {
	args := m.Called(ctx, id, expected, token, patch, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileRepository) Delete(ctx context.Context, id int64, expected model.LifecycleState, token string, entry *model.HistoryEntry) (bool, error) {
	args := m.Called(ctx, id, expected, token, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileRepository) ListHistory(ctx context.Context, fileID int64) ([]model.HistoryEntry, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HistoryEntry), args.Error(1)
}

func (m *MockFileRepository) ListRecycleBin(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.RecycleBinEntry], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.RecycleBinEntry]), args.Error(1)
}

func (m *MockFileRepository) ArchivedKeys(ctx context.Context, fileID int64) ([]string, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
