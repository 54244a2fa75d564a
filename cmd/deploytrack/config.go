package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/deploytrack/deploytrack/pkg/clickhouse"
	"github.com/deploytrack/deploytrack/pkg/kafka"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	// BlockBufferSize is carried as uint8 by the ClickHouse driver.
	minBlockBufferSize = 0
	maxBlockBufferSize = 255
)

// Sink names accepted by the --sinks flag.
const (
	sinkConsole    = "console"
	sinkKafka      = "kafka"
	sinkClickHouse = "clickhouse"
)

// Config holds all configuration for the deploytrack commands.
type Config struct {
	// Application settings
	Verbose bool

	// Chain settings
	ChainID uint64
	RPCURL  string
	Start   uint64
	End     uint64

	// Worker settings
	Concurrency    uint64
	Backfill       uint64
	HeightsCap     int
	MaxFailures    int
	ReceiptTimeout time.Duration

	// Watch settings
	Confirmations uint64
	PollInterval  time.Duration

	// Sink selection
	Sinks []string

	// Kafka settings
	KafkaBrokers                string
	KafkaTopic                  string
	KafkaEnableLogs             bool
	KafkaClientID               string
	KafkaTopicNumPartitions     int
	KafkaTopicReplicationFactor int
	KafkaSASL                   kafka.SASLConfig

	// ClickHouse settings
	ClickHouse           clickhouse.Config
	CheckpointTableName  string
	DeploymentsTableName string
	CheckpointInterval   time.Duration
	GapWatchdogInterval  time.Duration
	GapWatchdogMaxGap    uint64

	// Metrics settings
	MetricsHost string
	MetricsPort int
	Environment string

	// Scan settings
	Progress bool
}

// MetricsAddr returns the formatted metrics address.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// WantsSink reports whether the named sink was requested.
func (c *Config) WantsSink(name string) bool {
	for _, s := range c.Sinks {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// NeedsKafka reports whether a Kafka producer must be created.
func (c *Config) NeedsKafka() bool {
	return c.WantsSink(sinkKafka)
}

// KafkaProducerConfig builds a Kafka producer ConfigMap from the config.
func (c *Config) KafkaProducerConfig() *confluentKafka.ConfigMap {
	cfg := &confluentKafka.ConfigMap{
		"bootstrap.servers": c.KafkaBrokers,
		"client.id":         c.KafkaClientID,

		// Wait for all replicas to acknowledge
		"acks": "all",

		"linger.ms":        5,
		"batch.size":       16384,
		"compression.type": "lz4",

		"enable.idempotence": true,

		"go.logs.channel.enable": c.KafkaEnableLogs,
	}
	c.KafkaSASL.ApplyToConfigMap(cfg)
	return cfg
}

// buildConfig builds a Config from CLI context flags.
func buildConfig(c *cli.Context) (*Config, error) {
	chCfg, err := buildClickHouseConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build ClickHouse config: %w", err)
	}

	cfg := &Config{
		Verbose:                     c.Bool("verbose"),
		ChainID:                     c.Uint64("chain-id"),
		RPCURL:                      c.String("rpc-url"),
		Start:                       c.Uint64("start-height"),
		End:                         c.Uint64("end-height"),
		Concurrency:                 c.Uint64("concurrency"),
		Backfill:                    c.Uint64("backfill-priority"),
		HeightsCap:                  c.Int("heights-ch-capacity"),
		MaxFailures:                 c.Int("max-failures"),
		ReceiptTimeout:              c.Duration("receipt-timeout"),
		Confirmations:               c.Uint64("confirmations"),
		PollInterval:                c.Duration("poll-interval"),
		Sinks:                       c.StringSlice("sinks"),
		KafkaBrokers:                c.String("kafka-brokers"),
		KafkaTopic:                  c.String("kafka-topic"),
		KafkaEnableLogs:             c.Bool("kafka-enable-logs"),
		KafkaClientID:               c.String("kafka-client-id"),
		KafkaTopicNumPartitions:     c.Int("kafka-topic-num-partitions"),
		KafkaTopicReplicationFactor: c.Int("kafka-topic-replication-factor"),
		KafkaSASL: kafka.SASLConfig{
			Username:         c.String("kafka-sasl-username"),
			Password:         c.String("kafka-sasl-password"),
			Mechanism:        c.String("kafka-sasl-mechanism"),
			SecurityProtocol: c.String("kafka-security-protocol"),
		},
		ClickHouse:           chCfg,
		CheckpointTableName:  c.String("checkpoint-table-name"),
		DeploymentsTableName: c.String("deployments-table-name"),
		CheckpointInterval:   c.Duration("checkpoint-interval"),
		GapWatchdogInterval:  c.Duration("gap-watchdog-interval"),
		GapWatchdogMaxGap:    c.Uint64("gap-watchdog-max-gap"),
		MetricsHost:          c.String("metrics-host"),
		MetricsPort:          c.Int("metrics-port"),
		Environment:          c.String("environment"),
		Progress:             c.Bool("progress"),
	}

	for _, s := range cfg.Sinks {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case sinkConsole, sinkKafka, sinkClickHouse:
		default:
			return nil, fmt.Errorf("unknown sink: %q (expected console, kafka, or clickhouse)", s)
		}
	}
	if len(cfg.Sinks) == 0 {
		return nil, fmt.Errorf("at least one sink is required")
	}

	return cfg, nil
}

// buildClickHouseConfig builds a clickhouse.Config from CLI context flags.
func buildClickHouseConfig(c *cli.Context) (clickhouse.Config, error) {
	hosts := c.StringSlice("clickhouse-hosts")
	// A single comma-separated value arrives as one element
	if len(hosts) == 1 && strings.Contains(hosts[0], ",") {
		hosts = strings.Split(hosts[0], ",")
		for i, host := range hosts {
			hosts[i] = strings.TrimSpace(host)
		}
	}

	blockBufferSize := c.Int("clickhouse-block-buffer-size")
	if blockBufferSize < minBlockBufferSize || blockBufferSize > maxBlockBufferSize {
		return clickhouse.Config{}, fmt.Errorf(
			"clickhouse-block-buffer-size must be between %d and %d, got %d",
			minBlockBufferSize, maxBlockBufferSize, blockBufferSize,
		)
	}

	return clickhouse.Config{
		Hosts:                hosts,
		Database:             c.String("clickhouse-database"),
		Username:             c.String("clickhouse-username"),
		Password:             c.String("clickhouse-password"),
		Debug:                c.Bool("clickhouse-debug"),
		InsecureSkipVerify:   c.Bool("clickhouse-insecure-skip-verify"),
		MaxExecutionTime:     c.Int("clickhouse-max-execution-time"),
		DialTimeout:          c.Int("clickhouse-dial-timeout"),
		MaxOpenConns:         c.Int("clickhouse-max-open-conns"),
		MaxIdleConns:         c.Int("clickhouse-max-idle-conns"),
		ConnMaxLifetime:      c.Int("clickhouse-conn-max-lifetime"),
		BlockBufferSize:      blockBufferSize,
		MaxBlockSize:         c.Int("clickhouse-max-block-size"),
		MaxCompressionBuffer: c.Int("clickhouse-max-compression-buffer"),
		ClientName:           c.String("clickhouse-client-name"),
		ClientVersion:        c.String("clickhouse-client-version"),
	}, nil
}
