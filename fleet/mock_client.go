package fleet

import (
	"context"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockFleetClient implements interfaces.FleetClient for testing.
type MockFleetClient struct {
	mock.Mock
}

func (m *MockFleetClient) Authenticate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockFleetClient) ListNodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFleetClient) Submit(ctx context.Context, payload any) (*interfaces.SubmitResponse, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.SubmitResponse), args.Error(1)
}
