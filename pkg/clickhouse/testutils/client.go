// Package testutils provides helpers for testing code that depends on the
// ClickHouse client without a real ClickHouse connection.
package testutils

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/deploytrack/deploytrack/pkg/clickhouse"
)

// NewTestClient wraps a driver connection (typically a mock) in a
// clickhouse.Client so unit tests can exercise repositories without
// dialing a real server.
func NewTestClient(conn driver.Conn) clickhouse.Client {
	return &testClient{conn: conn}
}

type testClient struct {
	conn driver.Conn
}

func (c *testClient) Conn() driver.Conn {
	return c.conn
}

func (c *testClient) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *testClient) Close() error {
	return c.conn.Close()
}
