package main

import (
	"context"
	"testing"
	"time"

	ethereumapi "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zaptest"
)

// parseConfig runs buildConfig through a real CLI parse so flag defaults apply.
func parseConfig(t *testing.T, flags []cli.Flag, args ...string) (*Config, error) {
	t.Helper()

	var cfg *Config
	var buildErr error
	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Flags: flags,
				Action: func(c *cli.Context) error {
					cfg, buildErr = buildConfig(c)
					return nil
				},
			},
		},
	}
	require.NoError(t, app.Run(append([]string{"deploytrack", "scan"}, args...)))
	return cfg, buildErr
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(t, scanFlags(),
		"--chain-id", "1",
		"--rpc-url", "http://localhost:8545",
	)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), cfg.ChainID)
	assert.Equal(t, uint64(8), cfg.Concurrency)
	assert.Equal(t, uint64(4), cfg.Backfill)
	assert.Equal(t, 100, cfg.HeightsCap)
	assert.Equal(t, 3, cfg.MaxFailures)
	assert.Equal(t, 10*time.Second, cfg.ReceiptTimeout)
	assert.Equal(t, []string{"console"}, cfg.Sinks)
	assert.Equal(t, "deployments", cfg.KafkaTopic)
	assert.Equal(t, "checkpoints", cfg.CheckpointTableName)
	assert.Equal(t, []string{"localhost:9000"}, cfg.ClickHouse.Hosts)
	assert.Equal(t, ":9090", cfg.MetricsAddr())
	assert.True(t, cfg.Progress)
}

func TestBuildConfig_UnknownSink(t *testing.T) {
	_, err := parseConfig(t, scanFlags(),
		"--chain-id", "1",
		"--rpc-url", "http://localhost:8545",
		"--sinks", "postgres",
	)
	require.ErrorContains(t, err, "unknown sink")
}

func TestBuildConfig_BlockBufferSizeOutOfRange(t *testing.T) {
	_, err := parseConfig(t, scanFlags(),
		"--chain-id", "1",
		"--rpc-url", "http://localhost:8545",
		"--clickhouse-block-buffer-size", "300",
	)
	require.ErrorContains(t, err, "clickhouse-block-buffer-size")
}

func TestBuildConfig_SplitsCommaSeparatedClickHouseHosts(t *testing.T) {
	cfg, err := parseConfig(t, scanFlags(),
		"--chain-id", "1",
		"--rpc-url", "http://localhost:8545",
		"--clickhouse-hosts", "ch-1:9000, ch-2:9000",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"ch-1:9000", "ch-2:9000"}, cfg.ClickHouse.Hosts)
}

func TestConfig_WantsSink(t *testing.T) {
	cfg := &Config{Sinks: []string{"Console", " kafka "}}

	assert.True(t, cfg.WantsSink(sinkConsole))
	assert.True(t, cfg.WantsSink(sinkKafka))
	assert.False(t, cfg.WantsSink(sinkClickHouse))
	assert.True(t, cfg.NeedsKafka())
}

func TestConfig_KafkaProducerConfig(t *testing.T) {
	cfg := &Config{
		KafkaBrokers:  "broker-1:9092",
		KafkaClientID: "deploytrack",
	}
	cm := cfg.KafkaProducerConfig()

	v, err := cm.Get("bootstrap.servers", "")
	require.NoError(t, err)
	assert.Equal(t, "broker-1:9092", v)

	v, err = cm.Get("acks", "")
	require.NoError(t, err)
	assert.Equal(t, "all", v)
}

type stubChainClient struct {
	tip    uint64
	tipErr error
}

func (c *stubChainClient) BlockByNumber(context.Context, uint64) (*types.Block, error) {
	return nil, nil
}

func (c *stubChainClient) BlockReceipts(context.Context, *types.Block) ([]*types.Receipt, error) {
	return nil, nil
}

func (c *stubChainClient) BlockNumber(context.Context) (uint64, error) {
	return c.tip, c.tipErr
}

func (c *stubChainClient) SubscribeNewHead(context.Context, chan<- *types.Header) (ethereumapi.Subscription, error) {
	return nil, nil
}

func (c *stubChainClient) Close() {}

func TestResolveWindow(t *testing.T) {
	sugar := zaptest.NewLogger(t).Sugar()
	client := &stubChainClient{tip: 1000}

	tests := []struct {
		name      string
		cfg       *Config
		mode      runMode
		wantStart uint64
		wantEnd   uint64
	}{
		{
			name:      "scan with explicit range",
			cfg:       &Config{Start: 10, End: 20},
			mode:      modeScan,
			wantStart: 10,
			wantEnd:   20,
		},
		{
			name:      "scan without end uses tip",
			cfg:       &Config{Start: 10},
			mode:      modeScan,
			wantStart: 10,
			wantEnd:   1000,
		},
		{
			name:      "watch trails tip by confirmations",
			cfg:       &Config{Start: 10, Confirmations: 12},
			mode:      modeWatch,
			wantStart: 10,
			wantEnd:   988,
		},
		{
			name:      "watch clamps window when start is ahead of confirmed tip",
			cfg:       &Config{Start: 995, Confirmations: 12},
			mode:      modeWatch,
			wantStart: 995,
			wantEnd:   994,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := resolveWindow(t.Context(), tt.cfg, tt.mode, client, sugar)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestResolveWindow_EndBelowStart(t *testing.T) {
	sugar := zaptest.NewLogger(t).Sugar()
	_, _, err := resolveWindow(t.Context(), &Config{Start: 20, End: 10}, modeScan, &stubChainClient{}, sugar)
	require.ErrorContains(t, err, "below start height")
}
