package simulated

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
)

const evmGasLimit = 30_000_000

// EVMBackend executes deployed bytecode on go-ethereum's simulated chain.
// Every accepted transaction is mined into its own block right away.
type EVMBackend struct {
	*backends.SimulatedBackend

	mu sync.Mutex
}

// NewEVMBackend starts a chain whose genesis funds the given accounts.
func NewEVMBackend(funded map[common.Address]*big.Int) *EVMBackend {
	alloc := make(core.GenesisAlloc, len(funded))
	for addr, balance := range funded {
		alloc[addr] = core.GenesisAccount{Balance: balance}
	}
	return &EVMBackend{SimulatedBackend: backends.NewSimulatedBackend(alloc, evmGasLimit)}
}

func (b *EVMBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.Blockchain().Config().ChainID), nil
}

func (b *EVMBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.SimulatedBackend.SendTransaction(ctx, tx); err != nil {
		return err
	}
	b.Commit()
	return nil
}
