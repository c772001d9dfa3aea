// Package mocks provides test doubles for the run registry.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/jnsofini/auto-scorecard/internal/model"
	store "github.com/jnsofini/auto-scorecard/internal/store"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateRun provides a mock function with given fields: ctx, input
func (_m *MockStore) CreateRun(ctx context.Context, input model.RunInput) (*model.Run, error) {
	ret := _m.Called(ctx, input)

	if len(ret) == 0 {
		panic("no return value specified for CreateRun")
	}

	var r0 *model.Run
	if rf, ok := ret.Get(0).(func(context.Context, model.RunInput) *model.Run); ok {
		r0 = rf(ctx, input)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	return r0, ret.Error(1)
}

// UpdateRunStatus provides a mock function with given fields: ctx, runID, status
func (_m *MockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	ret := _m.Called(ctx, runID, status)

	if len(ret) == 0 {
		panic("no return value specified for UpdateRunStatus")
	}
	return ret.Error(0)
}

// CompleteRun provides a mock function with given fields: ctx, runID, result
func (_m *MockStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	ret := _m.Called(ctx, runID, result)

	if len(ret) == 0 {
		panic("no return value specified for CompleteRun")
	}
	return ret.Error(0)
}

// FailRun provides a mock function with given fields: ctx, runID, runErr
func (_m *MockStore) FailRun(ctx context.Context, runID string, runErr string) error {
	ret := _m.Called(ctx, runID, runErr)

	if len(ret) == 0 {
		panic("no return value specified for FailRun")
	}
	return ret.Error(0)
}

// GetRun provides a mock function with given fields: ctx, runID
func (_m *MockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for GetRun")
	}

	var r0 *model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	return r0, ret.Error(1)
}

// ListRuns provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListRuns")
	}

	var r0 []model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Run)
	}
	return r0, ret.Error(1)
}

// CreatePhase provides a mock function with given fields: ctx, runID, name
func (_m *MockStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	ret := _m.Called(ctx, runID, name)

	if len(ret) == 0 {
		panic("no return value specified for CreatePhase")
	}

	var r0 *model.RunPhase
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *model.RunPhase); ok {
		r0 = rf(ctx, runID, name)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.RunPhase)
	}
	return r0, ret.Error(1)
}

// CompletePhase provides a mock function with given fields: ctx, phaseID, result
func (_m *MockStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	ret := _m.Called(ctx, phaseID, result)

	if len(ret) == 0 {
		panic("no return value specified for CompletePhase")
	}
	return ret.Error(0)
}

// ListPhases provides a mock function with given fields: ctx, runID
func (_m *MockStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for ListPhases")
	}

	var r0 []model.RunPhase
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.RunPhase)
	}
	return r0, ret.Error(1)
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ store.Store = (*MockStore)(nil)
