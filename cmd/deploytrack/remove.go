package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/deploytrack/deploytrack/pkg/clickhouse"
	"github.com/deploytrack/deploytrack/pkg/data/clickhouse/checkpoint"
	"github.com/deploytrack/deploytrack/pkg/data/clickhouse/deployments"
	"github.com/deploytrack/deploytrack/pkg/utils"
)

func remove(c *cli.Context) error {
	ctx := context.Background()
	sugar, err := utils.NewSugaredLogger(true)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	chainID := c.Uint64("chain-id")
	checkpointTableName := c.String("checkpoint-table-name")
	deploymentsTableName := c.String("deployments-table-name")

	chCfg, err := buildClickHouseConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build ClickHouse config: %w", err)
	}

	chClient, err := clickhouse.New(chCfg, sugar)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	defer chClient.Close()

	checkpointRepo, err := checkpoint.NewRepository(chClient, chCfg.Database, checkpointTableName)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint repository: %w", err)
	}
	if err := checkpointRepo.DeleteCheckpoints(ctx, chainID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	sugar.Infof("checkpoints removed for chain ID %d", chainID)

	deploymentsRepo, err := deployments.NewRepository(chClient, chCfg.Database, deploymentsTableName)
	if err != nil {
		return fmt.Errorf("failed to create deployments repository: %w", err)
	}
	if err := deploymentsRepo.DeleteDeployments(ctx, chainID); err != nil {
		return fmt.Errorf("failed to delete deployments: %w", err)
	}
	sugar.Infof("deployments removed for chain ID %d", chainID)

	return nil
}
