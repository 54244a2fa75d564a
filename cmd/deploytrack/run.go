package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deploytrack/deploytrack/internal/chainclient"
	chainethereum "github.com/deploytrack/deploytrack/internal/chainclient/ethereum"
	"github.com/deploytrack/deploytrack/pkg/checkpointer"
	"github.com/deploytrack/deploytrack/pkg/clickhouse"
	"github.com/deploytrack/deploytrack/pkg/data/clickhouse/checkpoint"
	"github.com/deploytrack/deploytrack/pkg/data/clickhouse/deployments"
	"github.com/deploytrack/deploytrack/pkg/kafka"
	"github.com/deploytrack/deploytrack/pkg/metrics"
	"github.com/deploytrack/deploytrack/pkg/scan/subscriber"
	"github.com/deploytrack/deploytrack/pkg/scan/worker"
	"github.com/deploytrack/deploytrack/pkg/sink"
	"github.com/deploytrack/deploytrack/pkg/utils"
	"github.com/deploytrack/deploytrack/pkg/window"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	flushTimeoutOnClose = kafka.DefaultFlushTimeout
	shutdownTimeout     = 5 * time.Second
)

type runMode int

const (
	modeScan runMode = iota
	modeWatch
)

func scan(c *cli.Context) error {
	return run(c, modeScan)
}

func watch(c *cli.Context) error {
	return run(c, modeWatch)
}

func run(c *cli.Context, mode runMode) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"chainID", cfg.ChainID,
		"rpcURL", cfg.RPCURL,
		"start", cfg.Start,
		"end", cfg.End,
		"concurrency", cfg.Concurrency,
		"backfill", cfg.Backfill,
		"heightsCap", cfg.HeightsCap,
		"maxFailures", cfg.MaxFailures,
		"receiptTimeout", cfg.ReceiptTimeout,
		"confirmations", cfg.Confirmations,
		"pollInterval", cfg.PollInterval,
		"sinks", cfg.Sinks,
		"checkpointTableName", cfg.CheckpointTableName,
		"deploymentsTableName", cfg.DeploymentsTableName,
		"checkpointInterval", cfg.CheckpointInterval,
		"clickhouseDatabase", cfg.ClickHouse.Database,
	)

	// Prometheus metrics with constant labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		ChainID:     cfg.ChainID,
		Environment: cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry)
	metricsErrCh := metricsServer.Start()
	sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chainethereum.New(ctx, cfg.RPCURL, chainethereum.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create chain client: %w", err)
	}
	defer client.Close()

	// ClickHouse only comes up when something uses it: the clickhouse sink or
	// checkpointing (disabled with --checkpoint-interval 0).
	var chClient clickhouse.Client
	if cfg.WantsSink(sinkClickHouse) || cfg.CheckpointInterval > 0 {
		chClient, err = clickhouse.New(cfg.ClickHouse, sugar)
		if err != nil {
			return fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		defer chClient.Close()
	}

	var checkpointRepo checkpoint.Repository
	if cfg.CheckpointInterval > 0 {
		checkpointRepo, err = checkpoint.NewRepository(chClient, cfg.ClickHouse.Database, cfg.CheckpointTableName)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint repository: %w", err)
		}

		if cfg.Start == 0 {
			lowest, exists, err := checkpointRepo.Read(ctx, cfg.ChainID)
			if err != nil {
				return fmt.Errorf("failed to read checkpoint: %w", err)
			}
			if exists {
				cfg.Start = lowest
				sugar.Infof("resuming from checkpoint: start block height %d", lowest)
			} else {
				sugar.Info("checkpoint not found, starting from block height 0")
			}
		}
	}

	start, end, err := resolveWindow(ctx, cfg, mode, client, sugar)
	if err != nil {
		return err
	}

	snk, producer, err := buildSinks(ctx, cfg, chClient, sugar, m)
	if err != nil {
		return fmt.Errorf("failed to build sinks: %w", err)
	}
	defer snk.Close() //nolint:errcheck // flushes on close; errors already surfaced per write

	s, err := window.NewState(start, end)
	if err != nil {
		return fmt.Errorf("failed to create window state: %w", err)
	}

	w, err := worker.NewEVMWorker(client, snk, cfg.ChainID, sugar,
		worker.WithMetrics(m),
		worker.WithReceiptTimeout(cfg.ReceiptTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	opts := []window.Option{window.WithMetrics(m)}
	if mode == modeScan {
		opts = append(opts, window.WithExitWhenComplete())
	}
	mgr, err := window.NewManager(sugar, s, w, cfg.Concurrency, cfg.Backfill, cfg.HeightsCap, cfg.MaxFailures, opts...)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	m.UpdateWindowMetrics(start, end, 0)

	// runCtx lets a completed bounded scan unwind the rest of the group.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		err := mgr.Run(gctx)
		if mode == modeScan {
			cancelRun()
		}
		return err
	})

	if mode == modeWatch {
		sub := newSubscriber(cfg, client, sugar)
		g.Go(func() error {
			return sub.Subscribe(gctx, cfg.HeightsCap, mgr)
		})
	}

	if mode == modeScan && cfg.Progress {
		g.Go(func() error {
			trackProgress(gctx, s, start, end)
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-metricsErrCh:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		}
	})

	if producer != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case err := <-producer.Errors():
				return err
			}
		})
	}

	if checkpointRepo != nil {
		g.Go(func() error {
			checkpointCfg := checkpointer.DefaultConfig()
			checkpointCfg.Interval = cfg.CheckpointInterval
			return checkpointer.Start(gctx, sugar, s, checkpointRepo, checkpointCfg, cfg.ChainID)
		})
	}

	go window.StartGapWatchdog(gctx, sugar, s, m, cfg.GapWatchdogInterval, cfg.GapWatchdogMaxGap)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	sugar.Info("shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
		sugar.Warnw("metrics server shutdown error", "error", shutdownErr)
	}

	sugar.Info("shutdown complete")
	return err
}

// resolveWindow determines the initial [start, end] watermarks for the window.
// In scan mode a missing end height means the current chain tip. In watch mode
// the window opens at the confirmed tip and grows as heads arrive.
func resolveWindow(
	ctx context.Context,
	cfg *Config,
	mode runMode,
	client chainclient.ChainClient,
	sugar *zap.SugaredLogger,
) (start, end uint64, err error) {
	start = cfg.Start
	end = cfg.End

	if mode == modeScan && end != 0 {
		if end < start {
			return 0, 0, fmt.Errorf("end height %d is below start height %d", end, start)
		}
		return start, end, nil
	}

	tip, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get latest block height: %w", err)
	}
	sugar.Infof("latest block height: %d", tip)

	switch mode {
	case modeScan:
		end = tip
	case modeWatch:
		if tip >= cfg.Confirmations {
			end = tip - cfg.Confirmations
		}
	}

	// Keep the window valid (empty at rest) when a checkpoint resume is ahead
	// of the tip already.
	if end+1 < start {
		end = start - 1
	}
	return start, end, nil
}

// newSubscriber picks the head subscription for websocket endpoints and falls
// back to tip polling for HTTP-only endpoints.
func newSubscriber(cfg *Config, client chainclient.ChainClient, sugar *zap.SugaredLogger) subscriber.Subscriber {
	if strings.HasPrefix(cfg.RPCURL, "ws://") || strings.HasPrefix(cfg.RPCURL, "wss://") {
		sugar.Info("following chain head via websocket subscription")
		return subscriber.NewHead(sugar, client, cfg.Confirmations)
	}
	sugar.Infow("following chain head via tip polling", "interval", cfg.PollInterval)
	return subscriber.NewPoller(sugar, client, cfg.PollInterval, cfg.Confirmations)
}

// buildSinks assembles the requested sinks. The returned producer is non-nil
// only when the kafka sink was requested; its error channel must be watched.
func buildSinks(
	ctx context.Context,
	cfg *Config,
	chClient clickhouse.Client,
	sugar *zap.SugaredLogger,
	m *metrics.Metrics,
) (sink.Sink, *kafka.Producer, error) {
	var sinks []sink.Sink

	if cfg.WantsSink(sinkConsole) {
		sinks = append(sinks, sink.NewConsole(os.Stdout, m))
	}

	var producer *kafka.Producer
	if cfg.WantsSink(sinkKafka) {
		adminConfig := confluentKafka.ConfigMap{"bootstrap.servers": cfg.KafkaBrokers}
		cfg.KafkaSASL.ApplyToConfigMap(&adminConfig)
		admin, err := confluentKafka.NewAdminClient(&adminConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka admin client: %w", err)
		}
		defer admin.Close()

		err = kafka.EnsureTopic(ctx, admin, kafka.TopicConfig{
			Name:              cfg.KafkaTopic,
			NumPartitions:     cfg.KafkaTopicNumPartitions,
			ReplicationFactor: cfg.KafkaTopicReplicationFactor,
		}, sugar)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to ensure kafka topic exists: %w", err)
		}

		producer, err = kafka.NewProducer(ctx, cfg.KafkaProducerConfig(), sugar)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		sinks = append(sinks, sink.NewKafka(producer, cfg.KafkaTopic, flushTimeoutOnClose, m))
	}

	if cfg.WantsSink(sinkClickHouse) {
		repo, err := deployments.NewRepository(chClient, cfg.ClickHouse.Database, cfg.DeploymentsTableName)
		if err != nil {
			if producer != nil {
				producer.Close(flushTimeoutOnClose)
			}
			return nil, nil, fmt.Errorf("failed to create deployments repository: %w", err)
		}
		sinks = append(sinks, sink.NewClickHouse(repo, nil, m))
	}

	return sink.NewMulti(sinks...), producer, nil
}
