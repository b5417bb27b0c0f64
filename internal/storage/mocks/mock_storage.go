package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Root() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockStorage) Path(id string) string {
	args := m.Called(id)
	return args.String(0)
}

func (m *MockStorage) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
