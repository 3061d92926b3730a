package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/umputun/workdb/app/persistence"
)

// Runner is a testify mock of dispatch.Runner, Run accepts a func(ctx, item) error as return value
type Runner struct {
	mock.Mock
}

// Run mocks Runner.Run
func (m *Runner) Run(ctx context.Context, item persistence.WorkItem) error {
	ret := m.Called(ctx, item)
	if rf, ok := ret.Get(0).(func(context.Context, persistence.WorkItem) error); ok {
		return rf(ctx, item)
	}
	return ret.Error(0)
}
