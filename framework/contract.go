package framework

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract is a handle to a deployed contract. Ref returns a copy that signs
// transactions with a different key.
type Contract struct {
	fr    *Framework
	addr  common.Address
	abi   *abi.ABI
	key   *PrivKey
	bound *bind.BoundContract
}

func (c *Contract) Address() common.Address {
	return c.addr
}

func (c *Contract) Abi() *abi.ABI {
	return c.abi
}

// Signer is nil for a read-only reference.
func (c *Contract) Signer() *PrivKey {
	return c.key
}

func (c *Contract) Ref(key *PrivKey) *Contract {
	cpy := *c
	cpy.key = key
	return &cpy
}

// Call executes a read-only method and returns its decoded outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	opts := &bind.CallOpts{Context: ctx}
	if c.key != nil {
		opts.From = c.key.Address()
	}

	var out []interface{}
	if err := c.bound.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

// SendTransaction invokes a mutating method and waits for its receipt.
func (c *Contract) SendTransaction(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	if c.key == nil {
		return nil, ErrNoSigner
	}

	opts, err := c.fr.TransactOpts(ctx, c.key)
	if err != nil {
		return nil, err
	}

	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s transaction: %w", method, err)
	}

	c.fr.log.WithField("method", method).WithField("tx", tx.Hash().Hex()).Debug("Transaction sent")
	return c.fr.WaitMined(ctx, tx)
}
