package framework

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var ErrDeploymentNotFound = errors.New("deployment not found")

// Deployment records where a named contract lives on a given chain.
type Deployment struct {
	Name         string
	ChainID      uint64
	Address      common.Address
	TxHash       common.Hash
	Deployer     common.Address
	BytecodeHash common.Hash
	BlockNumber  uint64
	DeployedAt   time.Time
}

type DeploymentStore interface {
	GetDeployment(ctx context.Context, chainID uint64, name string) (*Deployment, error)
	SaveDeployment(ctx context.Context, d *Deployment) error
	ListDeployments(ctx context.Context, chainID uint64) ([]Deployment, error)
}

type DeployOptions struct {
	From *PrivKey
	Args []interface{}
	// Force redeploys even when an identical deployment is recorded.
	Force bool
}

type DeployResult struct {
	Deployment *Deployment
	Contract   *Contract
	// Reused is set when an existing deployment was returned instead of a new one.
	Reused bool
}

// Deploy makes sure a contract built from artifact is deployed under name.
// A recorded deployment is reused when its creation code matches artifact
// and code still exists at its address.
func (f *Framework) Deploy(ctx context.Context, store DeploymentStore, name string, artifact *Artifact, opts DeployOptions) (*DeployResult, error) {
	if opts.From == nil {
		return nil, ErrNoSigner
	}
	log := f.log.WithField("contract", name)
	chainID := f.chainID.Uint64()

	if !opts.Force {
		existing, err := store.GetDeployment(ctx, chainID, name)
		switch {
		case errors.Is(err, ErrDeploymentNotFound):
		case err != nil:
			return nil, fmt.Errorf("failed to look up deployment %s: %w", name, err)
		case existing.BytecodeHash == artifact.CodeHash():
			code, err := f.backend.CodeAt(ctx, existing.Address, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to read code at %s: %w", existing.Address.Hex(), err)
			}
			if len(code) > 0 {
				log.WithField("address", existing.Address.Hex()).Infof("reusing \"%s\" at %s", name, existing.Address.Hex())
				return &DeployResult{
					Deployment: existing,
					Contract:   f.ContractAt(existing.Address, artifact.Abi).Ref(opts.From),
					Reused:     true,
				}, nil
			}
			log.WithField("address", existing.Address.Hex()).Warn("recorded deployment has no code, redeploying")
		default:
			log.Info("bytecode changed, redeploying")
		}
	}

	contract, receipt, err := f.DeployContract(ctx, opts.From, artifact, opts.Args...)
	if err != nil {
		return nil, err
	}

	d := &Deployment{
		Name:         name,
		ChainID:      chainID,
		Address:      contract.Address(),
		TxHash:       receipt.TxHash,
		Deployer:     opts.From.Address(),
		BytecodeHash: artifact.CodeHash(),
		DeployedAt:   time.Now().UTC(),
	}
	if receipt.BlockNumber != nil {
		d.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if err := store.SaveDeployment(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to record deployment %s: %w", name, err)
	}

	log.WithField("tx", d.TxHash.Hex()).WithField("gas", receipt.GasUsed).
		Infof("deployed \"%s\" at %s", name, d.Address.Hex())

	return &DeployResult{Deployment: d, Contract: contract}, nil
}
