package recents

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/otherjamesbrown/recents/pkg/workers"
)

// MockRecordSource implements RecordSource for testing.
type MockRecordSource struct {
	mock.Mock
}

func (m *MockRecordSource) Query(ctx context.Context, q RecordQuery) ([]RawRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]RawRecord), args.Error(1)
}

func (m *MockRecordSource) Delete(ctx context.Context, ids []int64) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockRecordSource) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRecordSource) InsertBatch(ctx context.Context, records []RawRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

// MockContactDirectory implements ContactDirectory for testing.
type MockContactDirectory struct {
	mock.Mock
}

func (m *MockContactDirectory) ListContacts(ctx context.Context, withNumbersOnly bool) ([]Contact, error) {
	args := m.Called(ctx, withNumbersOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Contact), args.Error(1)
}

func (m *MockContactDirectory) ListPrivateContacts(ctx context.Context) ([]Contact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Contact), args.Error(1)
}

// MockSimRegistry implements SimAccountRegistry for testing.
type MockSimRegistry struct {
	mock.Mock
}

func (m *MockSimRegistry) ListAccounts(ctx context.Context) ([]SimAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SimAccount), args.Error(1)
}

// MockBlockedRegistry implements BlockedNumberRegistry for testing.
type MockBlockedRegistry struct {
	mock.Mock
}

func (m *MockBlockedRegistry) IsBlocked(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

// MockNotifier implements Notifier for testing.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) CallsDeleted(ctx context.Context, ids []int64) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockNotifier) CallsCleared(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockNotifier) CallsRestored(ctx context.Context, count int) error {
	args := m.Called(ctx, count)
	return args.Error(0)
}

// inlineRunner runs tasks on the submitting goroutine.
type inlineRunner struct {
	submitted int
	err       error
}

func (r *inlineRunner) Submit(ctx context.Context, task workers.Task) error {
	if r.err != nil {
		return r.err
	}
	r.submitted++
	_ = task(ctx)
	return nil
}

func str(s string) *string { return &s }
