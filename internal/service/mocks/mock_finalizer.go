package mocks

import (
	"context"

	"filemeta/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockFinalizer struct {
	mock.Mock
}

func (m *MockFinalizer) Finalize(ctx context.Context, c service.Completion) (*service.ResponseContract, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResponseContract), args.Error(1)
}
