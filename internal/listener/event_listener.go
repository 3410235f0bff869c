package listener

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flashbots/suapp-supplychain/internal/models"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/sirupsen/logrus"
)

var errSubscriptionClosed = errors.New("log subscription closed")

// EventSink stores decoded product events.
type EventSink interface {
	SaveEvent(ctx context.Context, ev *models.ProductEvent) (bool, error)
	LastIndexedBlock(ctx context.Context, chainID uint64, contract common.Address) (uint64, error)
}

// EventListener indexes SupplyChain events: it backfills past logs and then
// follows new ones over a subscription.
type EventListener struct {
	source       ethereum.LogFilterer
	sink         EventSink
	log          *logrus.Entry
	chainID      uint64
	contractAddr common.Address
	// fromBlock is the lower bound for the backfill, usually the deployment block.
	fromBlock uint64
}

func NewEventListener(log *logrus.Entry, source ethereum.LogFilterer, sink EventSink, chainID uint64, contractAddr common.Address, fromBlock uint64) *EventListener {
	return &EventListener{
		source:       source,
		sink:         sink,
		log:          log.WithField("contract", contractAddr.Hex()),
		chainID:      chainID,
		contractAddr: contractAddr,
		fromBlock:    fromBlock,
	}
}

// Listen runs until ctx is cancelled or the subscription fails.
func (el *EventListener) Listen(ctx context.Context) error {
	topics, err := supplychain.EventTopics()
	if err != nil {
		return err
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{el.contractAddr},
		Topics:    [][]common.Hash{topics},
	}

	// Subscribe before the backfill so nothing mined in between is lost.
	// Overlap is harmless, the sink ignores logs it already has.
	logs := make(chan types.Log)
	sub, err := el.source.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("create logs filter: %w", err)
	}
	defer sub.Unsubscribe()

	if err := el.backfill(ctx, query); err != nil {
		return err
	}

	el.log.Info("Start listen to events")
	for {
		select {
		case <-ctx.Done():
			el.log.Info("Stop listen to events")
			return nil
		case err, ok := <-sub.Err():
			if !ok {
				return errSubscriptionClosed
			}
			return fmt.Errorf("subscription: %w", err)
		case vLog := <-logs:
			if err := el.handle(ctx, vLog); err != nil {
				return err
			}
		}
	}
}

func (el *EventListener) backfill(ctx context.Context, query ethereum.FilterQuery) error {
	from := el.fromBlock
	last, err := el.sink.LastIndexedBlock(ctx, el.chainID, el.contractAddr)
	if err != nil {
		return err
	}
	// Restart from the last indexed block itself, it may hold more logs.
	if last > from {
		from = last
	}

	query.FromBlock = new(big.Int).SetUint64(from)
	past, err := el.source.FilterLogs(ctx, query)
	if err != nil {
		return fmt.Errorf("backfill from block %d: %w", from, err)
	}
	el.log.WithField("from", from).WithField("logs", len(past)).Info("Backfilled events")

	for i := range past {
		if err := el.handle(ctx, past[i]); err != nil {
			return err
		}
	}
	return nil
}

// handle stores one log. Undecodable logs are skipped; a store failure is
// returned so the caller stops before the indexed block moves past the log.
func (el *EventListener) handle(ctx context.Context, vLog types.Log) error {
	log := el.log.WithField("tx", vLog.TxHash.Hex()).WithField("block", vLog.BlockNumber)
	if vLog.Removed {
		log.Warn("Skipping log removed by reorg")
		return nil
	}

	ev, err := supplychain.ParseEvent(&vLog)
	if err != nil {
		log.WithError(err).Warn("Failed to unpack event")
		return nil
	}
	record, err := models.NewProductEvent(el.chainID, ev)
	if err != nil {
		log.WithError(err).Warn("Unsupported event")
		return nil
	}

	inserted, err := el.sink.SaveEvent(ctx, record)
	if err != nil {
		log.WithError(err).Error("Failed to store event")
		return fmt.Errorf("store event tx %s log %d: %w", vLog.TxHash.Hex(), vLog.Index, err)
	}
	if inserted {
		log.WithField("kind", record.Kind).WithField("product", record.ProductID.String()).Info("Event received")
	}
	return nil
}
