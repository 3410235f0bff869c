package models

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/suapp-supplychain/supplychain"
)

type EventKind string

const (
	EventCreated EventKind = "created"
	EventShipped EventKind = "shipped"
)

// ProductEvent is one indexed contract log about a product.
type ProductEvent struct {
	ChainID     uint64         `json:"chainId"`
	Contract    common.Address `json:"contract"`
	ProductID   *big.Int       `json:"productId"`
	Kind        EventKind      `json:"kind"`
	Actor       common.Address `json:"actor"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Price       string         `json:"price"`
	BlockNumber uint64         `json:"blockNumber"`
	TxHash      common.Hash    `json:"txHash"`
	LogIndex    uint           `json:"logIndex"`
}

// NewProductEvent flattens a decoded supplychain event.
func NewProductEvent(chainID uint64, ev interface{}) (*ProductEvent, error) {
	switch e := ev.(type) {
	case *supplychain.ProductCreatedEvent:
		return &ProductEvent{
			ChainID:     chainID,
			Contract:    e.Raw.Address,
			ProductID:   e.ID,
			Kind:        EventCreated,
			Actor:       e.Owner,
			Name:        e.Name,
			Description: e.Description,
			Price:       e.Price.ToBig().String(),
			BlockNumber: e.Raw.BlockNumber,
			TxHash:      e.Raw.TxHash,
			LogIndex:    e.Raw.Index,
		}, nil
	case *supplychain.ProductShippedEvent:
		return &ProductEvent{
			ChainID:     chainID,
			Contract:    e.Raw.Address,
			ProductID:   e.ID,
			Kind:        EventShipped,
			Actor:       e.Shipper,
			Price:       e.Price.ToBig().String(),
			BlockNumber: e.Raw.BlockNumber,
			TxHash:      e.Raw.TxHash,
			LogIndex:    e.Raw.Index,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported event type %T", ev)
	}
}
