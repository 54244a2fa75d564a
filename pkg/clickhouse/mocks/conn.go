// Package mocks provides testify mocks for the ClickHouse driver interfaces.
package mocks

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

// MockConn is a mock implementation of driver.Conn.
type MockConn struct {
	mock.Mock
}

var _ driver.Conn = (*MockConn)(nil)

func (m *MockConn) Contributors() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockConn) ServerVersion() (*driver.ServerVersion, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.ServerVersion), args.Error(1)
}

func (m *MockConn) Select(ctx context.Context, dest any, query string, queryArgs ...any) error {
	callArgs := append([]any{ctx, dest, query}, queryArgs...)
	args := m.Called(callArgs...)
	return args.Error(0)
}

func (m *MockConn) Query(ctx context.Context, query string, queryArgs ...any) (driver.Rows, error) {
	callArgs := append([]any{ctx, query}, queryArgs...)
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(driver.Rows), args.Error(1)
}

func (m *MockConn) QueryRow(ctx context.Context, query string, queryArgs ...any) driver.Row {
	callArgs := append([]any{ctx, query}, queryArgs...)
	args := m.Called(callArgs...)
	return args.Get(0).(driver.Row)
}

func (m *MockConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	callArgs := append([]any{ctx, query}, toAnySlice(opts)...)
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(driver.Batch), args.Error(1)
}

func (m *MockConn) Exec(ctx context.Context, query string, queryArgs ...any) error {
	callArgs := append([]any{ctx, query}, queryArgs...)
	args := m.Called(callArgs...)
	return args.Error(0)
}

func (m *MockConn) AsyncInsert(ctx context.Context, query string, wait bool, queryArgs ...any) error {
	callArgs := append([]any{ctx, query, wait}, queryArgs...)
	args := m.Called(callArgs...)
	return args.Error(0)
}

func (m *MockConn) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConn) Stats() driver.Stats {
	args := m.Called()
	return args.Get(0).(driver.Stats)
}

func (m *MockConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func toAnySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
