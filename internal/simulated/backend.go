// Package simulated provides in-process chains for tests. Backend mines every
// transaction instantly and runs the SupplyChain contract semantics natively
// for every deployed contract, so no EVM or node is needed. EVMBackend runs
// the real contract bytecode on go-ethereum's simulated chain.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/flashbots/suapp-supplychain/supplychain"
)

const (
	DefaultChainID = 31337

	callGas   = 100_000
	deployGas = 1_500_000

	subBuffer = 256
)

var (
	errNonceMismatch     = errors.New("nonce mismatch")
	errInsufficientFunds = errors.New("insufficient funds for transfer")

	// ErrSubscriberLagging fails a log subscription whose reader fell more
	// than subBuffer logs behind.
	ErrSubscriberLagging = errors.New("log subscriber fell behind")
)

type Backend struct {
	mu sync.Mutex

	chainID  *big.Int
	signer   types.Signer
	abi      *abi.ABI
	gasPrice *big.Int

	block     uint64
	balances  map[common.Address]*big.Int
	nonces    map[common.Address]uint64
	code      map[common.Address][]byte
	contracts map[common.Address]*ledger
	receipts  map[common.Hash]*types.Receipt
	logs      []types.Log

	subID uint64
	subs  map[uint64]*logSub
}

type logSub struct {
	query  ethereum.FilterQuery
	ch     chan types.Log
	lagged chan struct{}
}

func NewBackend() *Backend {
	return NewBackendWithChainID(big.NewInt(DefaultChainID))
}

func NewBackendWithChainID(chainID *big.Int) *Backend {
	contractAbi, err := supplychain.ABI()
	if err != nil {
		panic(err)
	}
	return &Backend{
		chainID:   chainID,
		signer:    types.LatestSignerForChainID(chainID),
		abi:       contractAbi,
		gasPrice:  big.NewInt(1_000_000_000),
		balances:  make(map[common.Address]*big.Int),
		nonces:    make(map[common.Address]uint64),
		code:      make(map[common.Address][]byte),
		contracts: make(map[common.Address]*ledger),
		receipts:  make(map[common.Hash]*types.Receipt),
		subs:      make(map[uint64]*logSub),
	}
}

// Fund credits addr out of thin air.
func (b *Backend) Fund(addr common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance(addr).Add(b.balance(addr), amount)
}

// ClearCode drops the code at addr, as if the contract self-destructed or the
// chain was reset.
func (b *Backend) ClearCode(addr common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.code, addr)
	delete(b.contracts, addr)
}

func (b *Backend) BlockNumber(_ context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block, nil
}

func (b *Backend) ChainID(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balance(account)), nil
}

func (b *Backend) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return common.CopyBytes(b.code[contract]), nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.CodeAt(ctx, account, nil)
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// No base fee: bind falls back to legacy transactions.
	return &types.Header{Number: new(big.Int).SetUint64(b.block), GasLimit: 30_000_000}, nil
}

func (b *Backend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.gasPrice), nil
}

func (b *Backend) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.gasPrice), nil
}

// EstimateGas dry-runs the call so reverts surface before signing, as a real
// node does.
func (b *Backend) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if call.To == nil {
		return deployGas, nil
	}
	l, ok := b.contracts[*call.To]
	if !ok {
		return intrinsicGas(call), nil
	}
	if _, _, err := l.execute(b.abi, call.From, call.Data, false); err != nil {
		return 0, err
	}
	return callGas, nil
}

func intrinsicGas(call ethereum.CallMsg) uint64 {
	if len(call.Data) == 0 {
		return 21000
	}
	return callGas
}

func (b *Backend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if call.To == nil {
		return nil, errors.New("missing call target")
	}
	l, ok := b.contracts[*call.To]
	if !ok {
		return nil, nil
	}
	out, _, err := l.execute(b.abi, call.From, call.Data, false)
	return out, err
}

// SendTransaction validates and mines tx in a block of its own.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(b.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if tx.Nonce() != b.nonces[from] {
		return fmt.Errorf("%w: have %d want %d", errNonceMismatch, tx.Nonce(), b.nonces[from])
	}
	if value := tx.Value(); value != nil && value.Sign() > 0 {
		if b.balance(from).Cmp(value) < 0 {
			return errInsufficientFunds
		}
	}
	b.nonces[from]++
	b.block++

	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.block),
		BlockHash:   blockHash(b.block),
		GasUsed:     intrinsicGas(ethereum.CallMsg{Data: tx.Data()}),
	}

	switch {
	case tx.To() == nil:
		addr := crypto.CreateAddress(from, tx.Nonce())
		b.code[addr] = common.CopyBytes(tx.Data())
		b.contracts[addr] = &ledger{}
		receipt.ContractAddress = addr
		receipt.GasUsed = deployGas
	default:
		to := *tx.To()
		if value := tx.Value(); value != nil && value.Sign() > 0 {
			b.balance(from).Sub(b.balance(from), value)
			b.balance(to).Add(b.balance(to), value)
		}
		if l, ok := b.contracts[to]; ok {
			_, logs, err := l.execute(b.abi, from, tx.Data(), true)
			if err != nil {
				receipt.Status = types.ReceiptStatusFailed
				break
			}
			for _, lg := range logs {
				lg.Address = to
				lg.BlockNumber = b.block
				lg.BlockHash = receipt.BlockHash
				lg.TxHash = receipt.TxHash
				lg.Index = uint(len(b.logs))
				b.logs = append(b.logs, *lg)
				receipt.Logs = append(receipt.Logs, lg)
			}
		}
	}
	receipt.CumulativeGasUsed = receipt.GasUsed
	b.receipts[tx.Hash()] = receipt

	for _, lg := range receipt.Logs {
		b.publish(*lg)
	}
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Log
	for _, l := range b.logs {
		if matches(q, l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (b *Backend) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	b.mu.Lock()
	b.subID++
	id := b.subID
	s := &logSub{query: q, ch: make(chan types.Log, subBuffer), lagged: make(chan struct{})}
	b.subs[id] = s
	b.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		}()
		for {
			select {
			case l := <-s.ch:
				select {
				case ch <- l:
				case <-quit:
					return nil
				}
			case <-s.lagged:
				return ErrSubscriberLagging
			case <-quit:
				return nil
			}
		}
	}), nil
}

// publish must be called with b.mu held. A subscriber whose buffer is full
// is failed with ErrSubscriberLagging and gets no further logs.
func (b *Backend) publish(l types.Log) {
	for id, s := range b.subs {
		if !matches(s.query, l) {
			continue
		}
		select {
		case s.ch <- l:
		default:
			close(s.lagged)
			delete(b.subs, id)
		}
	}
}

// balance must be called with b.mu held.
func (b *Backend) balance(addr common.Address) *big.Int {
	bal, ok := b.balances[addr]
	if !ok {
		bal = new(big.Int)
		b.balances[addr] = bal
	}
	return bal
}

func matches(q ethereum.FilterQuery, l types.Log) bool {
	if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && q.ToBlock.Sign() >= 0 && l.BlockNumber > q.ToBlock.Uint64() {
		return false
	}
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		found := false
		for _, t := range alternatives {
			if t == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func blockHash(n uint64) common.Hash {
	return crypto.Keccak256Hash(new(big.Int).SetUint64(n).Bytes())
}
