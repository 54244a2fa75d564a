package checkpoint

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/deploytrack/deploytrack/pkg/clickhouse/mocks"
	"github.com/deploytrack/deploytrack/pkg/clickhouse/testutils"
)

// rowMock is a minimal driver.Row implementation that populates provided destinations.
type rowMock struct {
	chainID                uint64
	lowestUnprocessedBlock uint64
	timestamp              int64
}

func (r rowMock) Scan(dest ...any) error {
	if len(dest) != 3 {
		return errors.New("unexpected dest len")
	}
	if p, ok := dest[0].(*uint64); ok && p != nil {
		*p = r.chainID
	}
	if p, ok := dest[1].(*uint64); ok && p != nil {
		*p = r.lowestUnprocessedBlock
	}
	if p, ok := dest[2].(*int64); ok && p != nil {
		*p = r.timestamp
	}
	return nil
}

func (r rowMock) Err() error { return nil }

func (r rowMock) ScanStruct(dest any) error { return r.Scan(dest) }

// rowErrMock returns a scan error.
type rowErrMock struct{ err error }

func (r rowErrMock) Scan(dest ...any) error { return r.err }

func (r rowErrMock) Err() error { return r.err }

func (r rowErrMock) ScanStruct(dest any) error { return r.err }

func expectCreateTable(conn *mocks.MockConn) {
	conn.
		On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
			return strings.Contains(q, "CREATE TABLE IF NOT EXISTS") && strings.Contains(q, "checkpoints")
		})).
		Return(nil)
}

func TestNewRepository_CreateTableError(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	createErr := errors.New("table creation failed")
	conn.On("Exec", mock.Anything, mock.Anything).Return(createErr)

	repo, err := NewRepository(testutils.NewTestClient(conn), "default", "checkpoints")
	require.Nil(t, repo)
	require.ErrorIs(t, err, createErr)
	conn.AssertExpectations(t)
}

func TestRepository_Write(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	expectCreateTable(conn)
	conn.
		On("Exec", mock.Anything, "INSERT INTO default.checkpoints (chain_id, lowest_unprocessed_block, timestamp) VALUES (?, ?, ?)\n",
			uint64(1), uint64(123), mock.Anything).
		Return(nil)

	repo, err := NewRepository(testutils.NewTestClient(conn), "default", "checkpoints")
	require.NoError(t, err)
	require.NoError(t, repo.Write(t.Context(), 1, 123))
	conn.AssertExpectations(t)
}

func TestRepository_Write_Error(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	execErr := errors.New("exec failed")
	expectCreateTable(conn)
	conn.
		On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
			return strings.Contains(q, "INSERT INTO")
		}), mock.Anything, mock.Anything, mock.Anything).
		Return(execErr)

	repo, err := NewRepository(testutils.NewTestClient(conn), "default", "checkpoints")
	require.NoError(t, err)
	require.ErrorIs(t, repo.Write(t.Context(), 1, 2), execErr)
	conn.AssertExpectations(t)
}

func TestRepository_Read(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	expectCreateTable(conn)
	conn.
		On("QueryRow", mock.Anything, mock.MatchedBy(func(q string) bool {
			return strings.Contains(q, "SELECT") && strings.Contains(q, "FINAL")
		}), uint64(1)).
		Return(rowMock{chainID: 1, lowestUnprocessedBlock: 777, timestamp: 1700000000})

	repo, err := NewRepository(testutils.NewTestClient(conn), "default", "checkpoints")
	require.NoError(t, err)
	lowest, exists, err := repo.Read(t.Context(), 1)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, uint64(777), lowest)
	conn.AssertExpectations(t)
}

func TestRepository_Read_NoCheckpoint(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	expectCreateTable(conn)
	conn.
		On("QueryRow", mock.Anything, mock.Anything, uint64(1)).
		Return(rowErrMock{err: sql.ErrNoRows})

	repo, err := NewRepository(testutils.NewTestClient(conn), "default", "checkpoints")
	require.NoError(t, err)
	lowest, exists, err := repo.Read(t.Context(), 1)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, lowest)
	conn.AssertExpectations(t)
}

func TestRepository_Read_ScanError(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	scanErr := errors.New("scan failed")
	expectCreateTable(conn)
	conn.
		On("QueryRow", mock.Anything, mock.Anything, uint64(1)).
		Return(rowErrMock{err: scanErr})

	repo, err := NewRepository(testutils.NewTestClient(conn), "default", "checkpoints")
	require.NoError(t, err)
	_, exists, err := repo.Read(t.Context(), 1)
	assert.False(t, exists)
	require.ErrorIs(t, err, scanErr)
	conn.AssertExpectations(t)
}

func TestRepository_DeleteCheckpoints(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	expectCreateTable(conn)
	conn.
		On("Exec", mock.Anything, "ALTER TABLE default.checkpoints DELETE WHERE chain_id = ?\n", uint64(5)).
		Return(nil)

	repo, err := NewRepository(testutils.NewTestClient(conn), "default", "checkpoints")
	require.NoError(t, err)
	require.NoError(t, repo.DeleteCheckpoints(t.Context(), 5))
	conn.AssertExpectations(t)
}
