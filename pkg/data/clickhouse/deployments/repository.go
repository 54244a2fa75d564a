// Package deployments persists contract deployment records to ClickHouse.
package deployments

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/deploytrack/deploytrack/pkg/clickhouse"
	"github.com/deploytrack/deploytrack/pkg/deployment"
)

// Repository writes and deletes deployment rows in ClickHouse. Rows are keyed by
// (chain_id, block_number, tx_hash) so re-scanning a range is idempotent.
type Repository interface {
	CreateTableIfNotExists(ctx context.Context) error
	WriteDeployments(ctx context.Context, deployments []*deployment.Deployment) error
	DeleteDeployments(ctx context.Context, chainID uint64) error
}

var _ Repository = (*repository)(nil)

//go:embed queries/create-table.sql
var createTableQuery string

//go:embed queries/insert-deployments.sql
var insertDeploymentsQuery string

//go:embed queries/delete-deployments.sql
var deleteDeploymentsQuery string

type repository struct {
	client    clickhouse.Client
	database  string
	tableName string
}

func NewRepository(client clickhouse.Client, database, tableName string) (Repository, error) {
	repo := &repository{client: client, database: database, tableName: tableName}
	if err := repo.CreateTableIfNotExists(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize deployments table: %w", err)
	}
	return repo, nil
}

// CreateTableIfNotExists creates the deployments table if it doesn't exist.
func (r *repository) CreateTableIfNotExists(ctx context.Context) error {
	query := fmt.Sprintf(createTableQuery, r.database, r.tableName)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create deployments table: %w", err)
	}
	return nil
}

// WriteDeployments inserts deployments in a single batch. An empty slice is a no-op.
func (r *repository) WriteDeployments(ctx context.Context, deployments []*deployment.Deployment) error {
	if len(deployments) == 0 {
		return nil
	}

	query := fmt.Sprintf(insertDeploymentsQuery, r.database, r.tableName)
	batch, err := r.client.Conn().PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare deployments batch: %w", err)
	}

	for _, d := range deployments {
		err := batch.Append(
			d.ChainID,
			d.BlockNumber,
			strings.ToLower(d.BlockHash.Hex()),
			d.BlockTime,
			strings.ToLower(d.TxHash.Hex()),
			strings.ToLower(d.Deployer.Hex()),
			strings.ToLower(d.ContractAddress.Hex()),
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append deployment for tx %s: %w", d.TxHash.Hex(), err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send deployments batch: %w", err)
	}
	return nil
}

// DeleteDeployments removes all deployments for a chain.
func (r *repository) DeleteDeployments(ctx context.Context, chainID uint64) error {
	query := fmt.Sprintf(deleteDeploymentsQuery, r.database, r.tableName)
	if err := r.client.Conn().Exec(ctx, query, chainID); err != nil {
		return fmt.Errorf("failed to delete deployments: %w", err)
	}
	return nil
}
