package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStorageBackend implements interfaces.CatalogStore for testing.
type MockStorageBackend struct {
	mock.Mock
	name string
}

// NewMockStorageBackend creates a mock store reporting name.
func NewMockStorageBackend(name string) *MockStorageBackend {
	return &MockStorageBackend{name: name}
}

func (m *MockStorageBackend) ListBundles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorageBackend) ReadFile(ctx context.Context, bundle, file string) ([]byte, error) {
	args := m.Called(ctx, bundle, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) ListFiles(ctx context.Context, bundle string) ([]string, error) {
	args := m.Called(ctx, bundle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorageBackend) WriteFile(ctx context.Context, bundle, file string, data []byte) error {
	args := m.Called(ctx, bundle, file, data)
	return args.Error(0)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.name
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock://" + m.name
}
