package mocks

import (
	"context"

	"filemeta/internal/model"
	"filemeta/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) Upsert(ctx context.Context, rec *model.FileRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockFileRepository) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.FileRecord], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.FileRecord]), args.Error(1)
}

func (m *MockFileRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
