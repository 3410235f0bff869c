package simulated

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flashbots/suapp-supplychain/supplychain"
)

var errUnknownSelector = errors.New("execution reverted: unknown function selector")

type product struct {
	name        string
	description string
	price       *big.Int
	state       uint8
	owner       common.Address
}

// ledger is the storage of one deployed SupplyChain contract.
type ledger struct {
	products []product
}

func revert(reason string) error {
	return fmt.Errorf("execution reverted: %s", reason)
}

// execute runs input against the ledger. State changes and logs are only
// applied when commit is set.
func (l *ledger) execute(contractAbi *abi.ABI, from common.Address, input []byte, commit bool) ([]byte, []*types.Log, error) {
	if len(input) < 4 {
		return nil, nil, errUnknownSelector
	}
	method, err := contractAbi.MethodById(input[:4])
	if err != nil {
		return nil, nil, errUnknownSelector
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: bad calldata: %w", err)
	}

	switch method.Name {
	case supplychain.MethodCreateProduct:
		name, description, price := args[0].(string), args[1].(string), args[2].(*big.Int)
		if name == "" {
			return nil, nil, revert("empty name")
		}
		if price.Sign() == 0 {
			return nil, nil, revert("zero price")
		}
		id := big.NewInt(int64(len(l.products)))
		out, err := method.Outputs.Pack(id)
		if err != nil || !commit {
			return out, nil, err
		}
		l.products = append(l.products, product{
			name:        name,
			description: description,
			price:       new(big.Int).Set(price),
			owner:       from,
		})
		lg, err := eventLog(contractAbi, supplychain.EventProductCreated, id, from, name, description, price)
		if err != nil {
			return nil, nil, err
		}
		return out, []*types.Log{lg}, nil

	case supplychain.MethodFetchProduct:
		p, err := l.get(args[0].(*big.Int))
		if err != nil {
			return nil, nil, err
		}
		out, err := method.Outputs.Pack(new(big.Int).Set(args[0].(*big.Int)), p.name, p.description, p.price, p.state, p.owner)
		return out, nil, err

	case supplychain.MethodShipProduct:
		id, newPrice := args[0].(*big.Int), args[1].(*big.Int)
		p, err := l.get(id)
		if err != nil {
			return nil, nil, err
		}
		if p.owner != from {
			return nil, nil, revert("not owner")
		}
		if p.state != uint8(supplychain.StateCreated) {
			return nil, nil, revert("already shipped")
		}
		if newPrice.Sign() == 0 {
			return nil, nil, revert("zero price")
		}
		if !commit {
			return nil, nil, nil
		}
		p.state = uint8(supplychain.StateShipped)
		p.price = new(big.Int).Set(newPrice)
		lg, err := eventLog(contractAbi, supplychain.EventProductShipped, id, from, newPrice)
		if err != nil {
			return nil, nil, err
		}
		return nil, []*types.Log{lg}, nil

	case supplychain.MethodProductCount:
		out, err := method.Outputs.Pack(big.NewInt(int64(len(l.products))))
		return out, nil, err
	}
	return nil, nil, errUnknownSelector
}

func (l *ledger) get(id *big.Int) (*product, error) {
	if !id.IsInt64() || id.Int64() >= int64(len(l.products)) {
		return nil, revert("unknown product")
	}
	return &l.products[id.Int64()], nil
}

// eventLog builds a log whose first two event arguments are indexed.
func eventLog(contractAbi *abi.ABI, name string, id *big.Int, who common.Address, data ...interface{}) (*types.Log, error) {
	ev := contractAbi.Events[name]
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Topics: []common.Hash{ev.ID, common.BigToHash(id), common.BytesToHash(who.Bytes())},
		Data:   packed,
	}, nil
}
