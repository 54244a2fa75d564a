package clickhouse_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/deploytrack/deploytrack/pkg/clickhouse"
	"github.com/deploytrack/deploytrack/pkg/clickhouse/mocks"
	"github.com/deploytrack/deploytrack/pkg/clickhouse/testutils"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := clickhouse.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9000"}, cfg.Hosts)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "default", cfg.Username)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 60, cfg.MaxExecutionTime)
	assert.Equal(t, 1000, cfg.MaxBlockSize)
	assert.Equal(t, "deploytrack", cfg.ClientName)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOSTS", "ch-1:9000,ch-2:9000")
	t.Setenv("CLICKHOUSE_DATABASE", "deployments")
	t.Setenv("CLICKHOUSE_MAX_OPEN_CONNS", "20")

	cfg, err := clickhouse.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"ch-1:9000", "ch-2:9000"}, cfg.Hosts)
	assert.Equal(t, "deployments", cfg.Database)
	assert.Equal(t, 20, cfg.MaxOpenConns)
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	conn := &mocks.MockConn{}
	conn.On("Ping", mock.Anything).Return(nil)

	client := testutils.NewTestClient(conn)
	require.NoError(t, client.Ping(t.Context()))
	conn.AssertExpectations(t)
}

func TestClient_PingError(t *testing.T) {
	t.Parallel()

	pingErr := errors.New("connection refused")
	conn := &mocks.MockConn{}
	conn.On("Ping", mock.Anything).Return(pingErr)

	client := testutils.NewTestClient(conn)
	require.ErrorIs(t, client.Ping(t.Context()), pingErr)
	conn.AssertExpectations(t)
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	conn := &mocks.MockConn{}
	conn.On("Close").Return(nil)

	client := testutils.NewTestClient(conn)
	require.NoError(t, client.Close())
	assert.Same(t, conn, client.Conn())
	conn.AssertExpectations(t)
}
