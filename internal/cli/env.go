package cli

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/flashbots/suapp-supplychain/internal/repository/sqlite"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/holiman/uint256"
)

var (
	errInvalidAmount  = errors.New("invalid amount")
	errInvalidAddress = errors.New("invalid address")
)

func newFramework(ctx context.Context) (*framework.Framework, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	frCfg, err := cfg.FrameworkConfig()
	if err != nil {
		return nil, err
	}
	return framework.New(ctx, log, frCfg)
}

func openStore(ctx context.Context) (*sqlite.Repository, error) {
	return sqlite.NewRepository(ctx, log.WithField("db", cfg.DBPath), cfg.DBPath)
}

// selectedChainID is the chain id configured for the selected network, for
// commands that read local state only.
func selectedChainID() (uint64, error) {
	n, err := cfg.SelectedNetwork()
	if err != nil {
		return 0, err
	}
	return n.ChainID, nil
}

// resolveSigner accepts a named account or an empty string for the first signer.
func resolveSigner(fr *framework.Framework, name string) (*framework.PrivKey, error) {
	if name != "" {
		return fr.NamedAccount(name)
	}
	signers := fr.Signers()
	if len(signers) == 0 {
		return nil, framework.ErrNoSigner
	}
	return signers[0], nil
}

// resolveAddress accepts a hex address or a named account.
func resolveAddress(fr *framework.Framework, s string) (common.Address, error) {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	key, err := fr.NamedAccount(s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s", errInvalidAddress, s)
	}
	return key.Address(), nil
}

// contractAddress is addr when given, otherwise the recorded SupplyChain
// deployment on the connected chain.
func contractAddress(ctx context.Context, store framework.DeploymentStore, chainID uint64, addr string) (common.Address, *framework.Deployment, error) {
	if addr != "" {
		if !common.IsHexAddress(addr) {
			return common.Address{}, nil, fmt.Errorf("%w: %s", errInvalidAddress, addr)
		}
		return common.HexToAddress(addr), nil, nil
	}
	d, err := store.GetDeployment(ctx, chainID, supplychain.ContractName)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%s on chain %d: %w (run deploy first or pass --address)", supplychain.ContractName, chainID, err)
	}
	return d.Address, d, nil
}

func parsePrice(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	return v, nil
}

// parseBigUint parses a non-negative base 10 integer such as a wei amount or
// a product id.
func parseBigUint(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	return v, nil
}
