// Package mocks has testify mocks for dispatcher collaborators
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/umputun/workdb/app/enums"
	"github.com/umputun/workdb/app/persistence"
)

// Store is a testify mock of dispatch.Store
type Store struct {
	mock.Mock
}

// Claim mocks Store.Claim
func (m *Store) Claim(ctx context.Context, id string) error {
	ret := m.Called(ctx, id)
	return ret.Error(0)
}

// Complete mocks Store.Complete
func (m *Store) Complete(ctx context.Context, id string, outcome enums.WorkStatus) error {
	ret := m.Called(ctx, id, outcome)
	return ret.Error(0)
}

// GetByID mocks Store.GetByID
func (m *Store) GetByID(ctx context.Context, id string) (persistence.WorkItem, error) {
	ret := m.Called(ctx, id)
	return ret.Get(0).(persistence.WorkItem), ret.Error(1)
}

// QueryReadyWork mocks Store.QueryReadyWork
func (m *Store) QueryReadyWork(ctx context.Context) ([]string, error) {
	ret := m.Called(ctx)
	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}
