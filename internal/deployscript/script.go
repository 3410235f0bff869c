// Package deployscript deploys the SupplyChain contract and walks one product
// through its lifecycle.
package deployscript

import (
	"context"
	"errors"
	"fmt"

	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

const (
	DeployerAccount = "deployer"

	DefaultName        = "Pipsi"
	DefaultDescription = "a cold drink"
	DefaultPrice       = 1000
	DefaultShipPrice   = 1400

	unknownNetwork = "unknown"
)

var errNoArtifact = errors.New("no contract artifact")

type Params struct {
	Artifact    *framework.Artifact
	Name        string
	Description string
	Price       *uint256.Int
	ShipPrice   *uint256.Int
	// NetworkName maps a chain id to a configured network name.
	NetworkName func(chainID uint64) (string, bool)
	Force       bool
}

// DefaultParams seeds the lifecycle with the stock demo product.
func DefaultParams(artifact *framework.Artifact) Params {
	return Params{
		Artifact:    artifact,
		Name:        DefaultName,
		Description: DefaultDescription,
		Price:       uint256.NewInt(DefaultPrice),
		ShipPrice:   uint256.NewInt(DefaultShipPrice),
	}
}

type Result struct {
	Deployment *framework.Deployment
	Reused     bool
	Network    string
	Created    *supplychain.Product
	Shipped    *supplychain.Product
}

// Run deploys SupplyChain (or reuses the recorded deployment), creates a
// product, ships it and reads it back before and after. The first failure
// aborts the run.
func Run(ctx context.Context, log *logrus.Entry, fr *framework.Framework, store framework.DeploymentStore, params Params) (*Result, error) {
	if params.Artifact == nil {
		return nil, errNoArtifact
	}

	deployer, err := fr.NamedAccount(DeployerAccount)
	if err != nil {
		return nil, err
	}

	chainID, err := fr.Backend().ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	network := unknownNetwork
	if params.NetworkName != nil {
		if name, ok := params.NetworkName(chainID.Uint64()); ok {
			network = name
		}
	}
	log = log.WithField("network", network)

	deployed, err := fr.Deploy(ctx, store, supplychain.ContractName, params.Artifact, framework.DeployOptions{
		From:  deployer,
		Force: params.Force,
	})
	if err != nil {
		return nil, err
	}
	addr := deployed.Deployment.Address

	chain, err := supplychain.NewSupplyChain(fr, addr, fr.Signers()[0])
	if err != nil {
		return nil, err
	}

	log.Infof("verify with: npx hardhat verify --network %s %s", network, addr.Hex())

	id, receipt, err := chain.CreateProduct(ctx, params.Name, params.Description, params.Price)
	if err != nil {
		return nil, fmt.Errorf("createProduct: %w", err)
	}
	log.WithField("tx", receipt.TxHash.Hex()).WithField("id", id.String()).Info("product created")

	created, err := chain.FetchProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetchProduct %s: %w", id, err)
	}

	receipt, err = chain.ShipProduct(ctx, id, params.ShipPrice)
	if err != nil {
		return nil, fmt.Errorf("shipProduct %s: %w", id, err)
	}
	log.WithField("tx", receipt.TxHash.Hex()).WithField("id", id.String()).Info("product shipped")

	shipped, err := chain.FetchProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetchProduct %s: %w", id, err)
	}

	log.WithField("product", created.String()).Info("before shipping")
	log.WithField("product", shipped.String()).Info("after shipping")

	return &Result{
		Deployment: deployed.Deployment,
		Reused:     deployed.Reused,
		Network:    network,
		Created:    created,
		Shipped:    shipped,
	}, nil
}
