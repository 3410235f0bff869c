package supplychain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

var (
	ErrUnknownEvent  = errors.New("unknown event")
	errMissingTopics = errors.New("log has too few topics")
)

type ProductCreatedEvent struct {
	ID          *big.Int
	Owner       common.Address
	Name        string
	Description string
	Price       *uint256.Int
	Raw         types.Log
}

func (e *ProductCreatedEvent) Unpack(log *types.Log) error {
	contractAbi, err := ABI()
	if err != nil {
		return err
	}
	if len(log.Topics) < 3 {
		return errMissingTopics
	}

	unpacked, err := contractAbi.Events[EventProductCreated].Inputs.Unpack(log.Data)
	if err != nil {
		return err
	}
	price, err := toUint256(unpacked[2])
	if err != nil {
		return err
	}

	e.ID = new(big.Int).SetBytes(log.Topics[1].Bytes())
	e.Owner = common.BytesToAddress(log.Topics[2].Bytes())
	e.Name = unpacked[0].(string)
	e.Description = unpacked[1].(string)
	e.Price = price
	e.Raw = *log
	return nil
}

type ProductShippedEvent struct {
	ID      *big.Int
	Shipper common.Address
	Price   *uint256.Int
	Raw     types.Log
}

func (e *ProductShippedEvent) Unpack(log *types.Log) error {
	contractAbi, err := ABI()
	if err != nil {
		return err
	}
	if len(log.Topics) < 3 {
		return errMissingTopics
	}

	unpacked, err := contractAbi.Events[EventProductShipped].Inputs.Unpack(log.Data)
	if err != nil {
		return err
	}
	price, err := toUint256(unpacked[0])
	if err != nil {
		return err
	}

	e.ID = new(big.Int).SetBytes(log.Topics[1].Bytes())
	e.Shipper = common.BytesToAddress(log.Topics[2].Bytes())
	e.Price = price
	e.Raw = *log
	return nil
}

// ParseEvent decodes a SupplyChain log into *ProductCreatedEvent or
// *ProductShippedEvent.
func ParseEvent(log *types.Log) (interface{}, error) {
	contractAbi, err := ABI()
	if err != nil {
		return nil, err
	}
	if len(log.Topics) == 0 {
		return nil, errMissingTopics
	}

	switch log.Topics[0] {
	case contractAbi.Events[EventProductCreated].ID:
		ev := &ProductCreatedEvent{}
		if err := ev.Unpack(log); err != nil {
			return nil, fmt.Errorf("unpack %s: %w", EventProductCreated, err)
		}
		return ev, nil
	case contractAbi.Events[EventProductShipped].ID:
		ev := &ProductShippedEvent{}
		if err := ev.Unpack(log); err != nil {
			return nil, fmt.Errorf("unpack %s: %w", EventProductShipped, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, log.Topics[0].Hex())
	}
}

// EventTopics lists the topic ids of every event the contract emits, for use
// in log filters.
func EventTopics() ([]common.Hash, error) {
	contractAbi, err := ABI()
	if err != nil {
		return nil, err
	}
	return []common.Hash{
		contractAbi.Events[EventProductCreated].ID,
		contractAbi.Events[EventProductShipped].ID,
	}, nil
}

func toUint256(v interface{}) (*uint256.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errUnexpectedType, v)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: value overflows uint256", errUnexpectedType)
	}
	return u, nil
}
