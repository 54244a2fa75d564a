package mocks

import (
	"github.com/ClickHouse/clickhouse-go/v2/lib/column"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

// MockBatch is a mock implementation of driver.Batch.
type MockBatch struct {
	mock.Mock
}

var _ driver.Batch = (*MockBatch)(nil)

func (m *MockBatch) Abort() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockBatch) Append(v ...any) error {
	args := m.Called(v...)
	return args.Error(0)
}

func (m *MockBatch) AppendStruct(v any) error {
	args := m.Called(v)
	return args.Error(0)
}

func (m *MockBatch) Column(idx int) driver.BatchColumn {
	args := m.Called(idx)
	return args.Get(0).(driver.BatchColumn)
}

func (m *MockBatch) Flush() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockBatch) Send() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockBatch) IsSent() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockBatch) Rows() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockBatch) Columns() []column.Interface {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]column.Interface)
}

func (m *MockBatch) Close() error {
	args := m.Called()
	return args.Error(0)
}
