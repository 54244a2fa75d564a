package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

// commonFlags are shared by the scan and watch commands.
func commonFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.Uint64Flag{
			Name:     "chain-id",
			Aliases:  []string{"C"},
			Usage:    "The EVM chain ID of the chain being scanned",
			EnvVars:  []string{"CHAIN_ID"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "rpc-url",
			Aliases:  []string{"r"},
			Usage:    "The RPC URL to fetch blocks from (ws:// enables head subscription)",
			EnvVars:  []string{"RPC_URL"},
			Required: true,
		},
		&cli.Uint64Flag{
			Name:    "start-height",
			Aliases: []string{"s"},
			Usage:   "The start height to scan from. If not specified, resumes from the latest checkpoint",
			EnvVars: []string{"START_HEIGHT"},
		},
		&cli.Uint64Flag{
			Name:    "concurrency",
			Aliases: []string{"c"},
			Usage:   "The number of concurrent workers to use",
			EnvVars: []string{"CONCURRENCY"},
			Value:   8,
		},
		&cli.Uint64Flag{
			Name:    "backfill-priority",
			Aliases: []string{"b"},
			Usage:   "The number of workers reserved for backfill (must not exceed concurrency)",
			EnvVars: []string{"BACKFILL_PRIORITY"},
			Value:   4,
		},
		&cli.IntFlag{
			Name:    "heights-ch-capacity",
			Aliases: []string{"B"},
			Usage:   "The capacity of the submitted heights channel",
			EnvVars: []string{"HEIGHTS_CH_CAPACITY"},
			Value:   100,
		},
		&cli.IntFlag{
			Name:    "max-failures",
			Aliases: []string{"f"},
			Usage:   "The maximum number of block processing failures before stopping",
			EnvVars: []string{"MAX_FAILURES"},
			Value:   3,
		},
		&cli.DurationFlag{
			Name:    "receipt-timeout",
			Aliases: []string{"rt"},
			Usage:   "The timeout for fetching a block's receipts",
			EnvVars: []string{"RECEIPT_TIMEOUT"},
			Value:   10 * time.Second,
		},
		&cli.StringSliceFlag{
			Name:    "sinks",
			Usage:   "Deployment sinks to write to (console, kafka, clickhouse)",
			EnvVars: []string{"SINKS"},
			Value:   cli.NewStringSlice("console"),
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"E"},
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "The Kafka brokers to use (comma-separated list)",
			EnvVars: []string{"KAFKA_BROKERS"},
			Value:   "localhost:9092",
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Aliases: []string{"t"},
			Usage:   "The Kafka topic to write deployments to",
			EnvVars: []string{"KAFKA_TOPIC"},
			Value:   "deployments",
		},
		&cli.BoolFlag{
			Name:    "kafka-enable-logs",
			Aliases: []string{"l"},
			Usage:   "Enable Kafka client logs",
			EnvVars: []string{"KAFKA_ENABLE_LOGS"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "kafka-client-id",
			Usage:   "The Kafka client ID to use",
			EnvVars: []string{"KAFKA_CLIENT_ID"},
			Value:   "deploytrack",
		},
		&cli.IntFlag{
			Name:    "kafka-topic-num-partitions",
			Usage:   "The number of partitions to use for the Kafka topic (must be greater than 0)",
			EnvVars: []string{"KAFKA_TOPIC_NUM_PARTITIONS"},
			Value:   1,
		},
		&cli.IntFlag{
			Name:    "kafka-topic-replication-factor",
			Usage:   "The replication factor to use for the Kafka topic (must be greater than 0)",
			EnvVars: []string{"KAFKA_TOPIC_REPLICATION_FACTOR"},
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-username",
			Usage:   "SASL username for Kafka authentication",
			EnvVars: []string{"KAFKA_SASL_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-password",
			Usage:   "SASL password for Kafka authentication",
			EnvVars: []string{"KAFKA_SASL_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-mechanism",
			Usage:   "SASL mechanism (SCRAM-SHA-256, SCRAM-SHA-512, or PLAIN)",
			EnvVars: []string{"KAFKA_SASL_MECHANISM"},
			Value:   "SCRAM-SHA-512",
		},
		&cli.StringFlag{
			Name:    "kafka-security-protocol",
			Usage:   "Security protocol (SASL_SSL or SASL_PLAINTEXT)",
			EnvVars: []string{"KAFKA_SECURITY_PROTOCOL"},
			Value:   "SASL_SSL",
		},
		&cli.StringFlag{
			Name:    "checkpoint-table-name",
			Aliases: []string{"T"},
			Usage:   "The name of the table to write checkpoints to",
			EnvVars: []string{"CHECKPOINT_TABLE_NAME"},
			Value:   "checkpoints",
		},
		&cli.StringFlag{
			Name:    "deployments-table-name",
			Usage:   "The name of the table to write deployments to",
			EnvVars: []string{"DEPLOYMENTS_TABLE_NAME"},
			Value:   "deployments",
		},
		&cli.DurationFlag{
			Name:    "checkpoint-interval",
			Aliases: []string{"i"},
			Usage:   "The interval to write checkpoints to the repository. 0 disables checkpointing",
			EnvVars: []string{"CHECKPOINT_INTERVAL"},
			Value:   30 * time.Second,
		},
		&cli.DurationFlag{
			Name:    "gap-watchdog-interval",
			Aliases: []string{"g"},
			Usage:   "The interval to check the gap between the lowest and highest block heights",
			EnvVars: []string{"GAP_WATCHDOG_INTERVAL"},
			Value:   15 * time.Minute,
		},
		&cli.Uint64Flag{
			Name:    "gap-watchdog-max-gap",
			Aliases: []string{"G"},
			Usage:   "The maximum gap between the lowest and highest block heights before a warning is logged",
			EnvVars: []string{"GAP_WATCHDOG_MAX_GAP"},
			Value:   100,
		},
	}
	return append(flags, clickhouseFlags()...)
}

func scanFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.Uint64Flag{
			Name:    "end-height",
			Aliases: []string{"e"},
			Usage:   "The end height to scan to. If not specified, scans to the latest block height",
			EnvVars: []string{"END_HEIGHT"},
		},
		&cli.BoolFlag{
			Name:    "progress",
			Aliases: []string{"p"},
			Usage:   "Display a progress bar for the bounded scan",
			EnvVars: []string{"PROGRESS"},
			Value:   true,
		},
	)
}

func watchFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.Uint64Flag{
			Name:    "confirmations",
			Usage:   "The number of confirmations to trail the chain head by",
			EnvVars: []string{"CONFIRMATIONS"},
			Value:   12,
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "The tip polling interval for HTTP-only endpoints",
			EnvVars: []string{"POLL_INTERVAL"},
			Value:   1 * time.Second,
		},
	)
}

func removeFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.Uint64Flag{
			Name:     "chain-id",
			Aliases:  []string{"C"},
			Usage:    "The EVM chain ID of the resources being removed",
			EnvVars:  []string{"CHAIN_ID"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "checkpoint-table-name",
			Aliases: []string{"T"},
			Usage:   "The name of the checkpoints table",
			EnvVars: []string{"CHECKPOINT_TABLE_NAME"},
			Value:   "checkpoints",
		},
		&cli.StringFlag{
			Name:    "deployments-table-name",
			Usage:   "The name of the deployments table",
			EnvVars: []string{"DEPLOYMENTS_TABLE_NAME"},
			Value:   "deployments",
		},
	}
	return append(flags, clickhouseFlags()...)
}

// clickhouseFlags override the CLICKHOUSE_* environment defaults per command.
func clickhouseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "clickhouse-hosts",
			Usage:   "ClickHouse server hosts (comma-separated)",
			EnvVars: []string{"CLICKHOUSE_HOSTS"},
			Value:   cli.NewStringSlice("localhost:9000"),
		},
		&cli.StringFlag{
			Name:    "clickhouse-database",
			Usage:   "ClickHouse database name",
			EnvVars: []string{"CLICKHOUSE_DATABASE"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "clickhouse-username",
			Usage:   "ClickHouse username",
			EnvVars: []string{"CLICKHOUSE_USERNAME"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "clickhouse-password",
			Usage:   "ClickHouse password",
			EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			Value:   "",
		},
		&cli.BoolFlag{
			Name:    "clickhouse-debug",
			Usage:   "Enable ClickHouse debug logging",
			EnvVars: []string{"CLICKHOUSE_DEBUG"},
		},
		&cli.BoolFlag{
			Name:    "clickhouse-insecure-skip-verify",
			Usage:   "Skip TLS certificate verification for ClickHouse",
			EnvVars: []string{"CLICKHOUSE_INSECURE_SKIP_VERIFY"},
			Value:   true,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-execution-time",
			Usage:   "ClickHouse max execution time in seconds",
			EnvVars: []string{"CLICKHOUSE_MAX_EXECUTION_TIME"},
			Value:   60,
		},
		&cli.IntFlag{
			Name:    "clickhouse-dial-timeout",
			Usage:   "ClickHouse dial timeout in seconds",
			EnvVars: []string{"CLICKHOUSE_DIAL_TIMEOUT"},
			Value:   30,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-open-conns",
			Usage:   "ClickHouse maximum open connections",
			EnvVars: []string{"CLICKHOUSE_MAX_OPEN_CONNS"},
			Value:   5,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-idle-conns",
			Usage:   "ClickHouse maximum idle connections",
			EnvVars: []string{"CLICKHOUSE_MAX_IDLE_CONNS"},
			Value:   5,
		},
		&cli.IntFlag{
			Name:    "clickhouse-conn-max-lifetime",
			Usage:   "ClickHouse connection max lifetime in minutes",
			EnvVars: []string{"CLICKHOUSE_CONN_MAX_LIFETIME"},
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "clickhouse-block-buffer-size",
			Usage:   "ClickHouse block buffer size",
			EnvVars: []string{"CLICKHOUSE_BLOCK_BUFFER_SIZE"},
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-block-size",
			Usage:   "ClickHouse max block size (recommended maximum number of rows in a single block)",
			EnvVars: []string{"CLICKHOUSE_MAX_BLOCK_SIZE"},
			Value:   1000,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-compression-buffer",
			Usage:   "ClickHouse max compression buffer in bytes",
			EnvVars: []string{"CLICKHOUSE_MAX_COMPRESSION_BUFFER"},
			Value:   10240,
		},
		&cli.StringFlag{
			Name:    "clickhouse-client-name",
			Usage:   "ClickHouse client name for ClientInfo",
			EnvVars: []string{"CLICKHOUSE_CLIENT_NAME"},
			Value:   "deploytrack",
		},
		&cli.StringFlag{
			Name:    "clickhouse-client-version",
			Usage:   "ClickHouse client version for ClientInfo",
			EnvVars: []string{"CLICKHOUSE_CLIENT_VERSION"},
			Value:   "1.0",
		},
	}
}
