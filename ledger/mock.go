package ledger

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/docvault/docvault/interfaces"
)

// MockRegistrar mocks the LedgerRegistrar interface for tests.
type MockRegistrar struct {
	mock.Mock
}

var _ interfaces.LedgerRegistrar = (*MockRegistrar)(nil)

// Register mocks the Register method.
func (m *MockRegistrar) Register(ctx context.Context, params interfaces.RegisterParams) (interfaces.RecordRef, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(interfaces.RecordRef), args.Error(1)
}

// Resolve mocks the Resolve method.
func (m *MockRegistrar) Resolve(ctx context.Context, ref interfaces.RecordRef) (*interfaces.LedgerRecord, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.LedgerRecord), args.Error(1)
}

// Verify mocks the Verify method.
func (m *MockRegistrar) Verify(ctx context.Context, ref interfaces.RecordRef, expected interfaces.ContentID) (bool, error) {
	args := m.Called(ctx, ref, expected)
	return args.Bool(0), args.Error(1)
}

// Sign mocks the Sign method.
func (m *MockRegistrar) Sign(ctx context.Context, ref interfaces.RecordRef, signatureHash interfaces.ContentID) error {
	args := m.Called(ctx, ref, signatureHash)
	return args.Error(0)
}
