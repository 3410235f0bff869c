package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/suapp-supplychain/framework"
)

var _ framework.DeploymentStore = (*Repository)(nil)

const deploymentColumns = "chain_id, name, address, tx_hash, deployer, bytecode_hash, block_number, deployed_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeployment(row rowScanner) (*framework.Deployment, error) {
	var (
		d                                   framework.Deployment
		address, txHash, deployer, codeHash string
		deployedAt                          int64
	)
	if err := row.Scan(&d.ChainID, &d.Name, &address, &txHash, &deployer, &codeHash, &d.BlockNumber, &deployedAt); err != nil {
		return nil, err
	}
	d.Address = common.HexToAddress(address)
	d.TxHash = common.HexToHash(txHash)
	d.Deployer = common.HexToAddress(deployer)
	d.BytecodeHash = common.HexToHash(codeHash)
	d.DeployedAt = time.Unix(deployedAt, 0).UTC()
	return &d, nil
}

func (r *Repository) GetDeployment(ctx context.Context, chainID uint64, name string) (*framework.Deployment, error) {
	const opn = "repository.sqlite.GetDeployment"

	row := r.db.QueryRowContext(ctx,
		"SELECT "+deploymentColumns+" FROM deployments WHERE chain_id = ? AND name = ?", chainID, name)
	d, err := scanDeployment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, framework.ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("%s: failed to get deployment: %w", opn, err)
	}
	return d, nil
}

// SaveDeployment records d, replacing an earlier deployment of the same name
// on the same chain.
func (r *Repository) SaveDeployment(ctx context.Context, d *framework.Deployment) error {
	const opn = "repository.sqlite.SaveDeployment"

	_, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO deployments ("+deploymentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		d.ChainID, d.Name, d.Address.Hex(), d.TxHash.Hex(), d.Deployer.Hex(), d.BytecodeHash.Hex(),
		d.BlockNumber, d.DeployedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to save deployment %s: %w", opn, d.Name, err)
	}
	return nil
}

func (r *Repository) ListDeployments(ctx context.Context, chainID uint64) ([]framework.Deployment, error) {
	const opn = "repository.sqlite.ListDeployments"

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+deploymentColumns+" FROM deployments WHERE chain_id = ? ORDER BY name", chainID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list deployments: %w", opn, err)
	}
	defer rows.Close()

	var out []framework.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan deployment: %w", opn, err)
		}
		out = append(out, *d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", opn, err)
	}
	return out, nil
}
