package sqlite

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/suapp-supplychain/internal/models"
)

// SaveEvent stores ev unless a log with the same tx hash and index is already
// stored. It reports whether a row was written.
func (r *Repository) SaveEvent(ctx context.Context, ev *models.ProductEvent) (bool, error) {
	const opn = "repository.sqlite.SaveEvent"

	res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO product_events
		(chain_id, contract, product_id, kind, actor, name, description, price, block_number, tx_hash, log_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ChainID, ev.Contract.Hex(), ev.ProductID.String(), string(ev.Kind), ev.Actor.Hex(),
		ev.Name, ev.Description, ev.Price, ev.BlockNumber, ev.TxHash.Hex(), ev.LogIndex,
	)
	if err != nil {
		return false, fmt.Errorf("%s: failed to insert event: %w", opn, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: failed to read affected rows: %w", opn, err)
	}
	return n > 0, nil
}

// ProductHistory returns the events of one product in chain order.
func (r *Repository) ProductHistory(ctx context.Context, chainID uint64, contract common.Address, productID *big.Int) ([]models.ProductEvent, error) {
	const opn = "repository.sqlite.ProductHistory"

	rows, err := r.db.QueryContext(ctx, `SELECT kind, actor, name, description, price, block_number, tx_hash, log_index
		FROM product_events
		WHERE chain_id = ? AND contract = ? AND product_id = ?
		ORDER BY block_number, log_index`,
		chainID, contract.Hex(), productID.String())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query events: %w", opn, err)
	}
	defer rows.Close()

	var out []models.ProductEvent
	for rows.Next() {
		var (
			ev          models.ProductEvent
			kind, actor string
			txHash      string
			logIndex    int64
			blockNumber int64
		)
		if err = rows.Scan(&kind, &actor, &ev.Name, &ev.Description, &ev.Price, &blockNumber, &txHash, &logIndex); err != nil {
			return nil, fmt.Errorf("%s: failed to scan event: %w", opn, err)
		}
		ev.ChainID = chainID
		ev.Contract = contract
		ev.ProductID = new(big.Int).Set(productID)
		ev.Kind = models.EventKind(kind)
		ev.Actor = common.HexToAddress(actor)
		ev.BlockNumber = uint64(blockNumber)
		ev.TxHash = common.HexToHash(txHash)
		ev.LogIndex = uint(logIndex)
		out = append(out, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", opn, err)
	}
	return out, nil
}

// LastIndexedBlock is the highest block with a stored event for contract, or
// zero when none is stored.
func (r *Repository) LastIndexedBlock(ctx context.Context, chainID uint64, contract common.Address) (uint64, error) {
	const opn = "repository.sqlite.LastIndexedBlock"

	var block int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(block_number), 0) FROM product_events WHERE chain_id = ? AND contract = ?",
		chainID, contract.Hex()).Scan(&block)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to query last block: %w", opn, err)
	}
	return uint64(block), nil
}
