package mocks

import (
	"context"

	"filemeta/internal/model"
	"filemeta/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileService) List(ctx context.Context, page, pageSize int) (*service.FileListResult, error) {
	args := m.Called(ctx, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileListResult), args.Error(1)
}

func (m *MockFileService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
