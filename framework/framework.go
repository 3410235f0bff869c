package framework

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

const (
	DefaultConfirmTimeout = 2 * time.Minute
	transferGasLimit      = 21000
)

var (
	ErrUnknownAccount = errors.New("unknown named account")
	ErrAccountIndex   = errors.New("named account index out of range")
	ErrTxReverted     = errors.New("transaction reverted")
	ErrNoSigner       = errors.New("contract reference has no signer")

	errNodeConnection = errors.New("failed to connect to node")
	errChainIDFetch   = errors.New("failed getting chain id from node")
)

// Backend is everything the framework needs from a node. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Config struct {
	RPCURL       string
	ArtifactsDir string

	// Accounts are the signers available on the network, in order.
	Accounts []*PrivKey
	// NamedAccounts maps a role such as "deployer" to an index in Accounts.
	NamedAccounts map[string]int

	ConfirmTimeout time.Duration
}

type Framework struct {
	log     *logrus.Entry
	backend Backend
	chainID *big.Int
	cfg     Config
}

// New dials cfg.RPCURL and reads the chain id of the node behind it.
func New(ctx context.Context, log *logrus.Entry, cfg Config) (*Framework, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		log.WithError(err).WithField("rpc", cfg.RPCURL).Error("failed to connect to node")
		return nil, errNodeConnection
	}
	return NewWithBackend(ctx, log, client, cfg)
}

func NewWithBackend(ctx context.Context, log *logrus.Entry, backend Backend, cfg Config) (*Framework, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		log.WithError(err).Error("failed getting chain id")
		return nil, errChainIDFetch
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}

	return &Framework{
		log:     log.WithField("chainId", chainID.String()),
		backend: backend,
		chainID: chainID,
		cfg:     cfg,
	}, nil
}

func (f *Framework) Backend() Backend {
	return f.backend
}

func (f *Framework) ChainID() *big.Int {
	return new(big.Int).Set(f.chainID)
}

func (f *Framework) Signers() []*PrivKey {
	return f.cfg.Accounts
}

// NamedAccount resolves a role name to its signer, the way hardhat-deploy
// resolves namedAccounts.
func (f *Framework) NamedAccount(name string) (*PrivKey, error) {
	idx, ok := f.cfg.NamedAccounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, name)
	}
	if idx < 0 || idx >= len(f.cfg.Accounts) {
		return nil, fmt.Errorf("%w: %s -> %d (%d accounts)", ErrAccountIndex, name, idx, len(f.cfg.Accounts))
	}
	return f.cfg.Accounts[idx], nil
}

// ReadArtifact resolves name inside the configured artifacts directory unless
// it is an absolute path.
func (f *Framework) ReadArtifact(name string) (*Artifact, error) {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(f.cfg.ArtifactsDir, name)
	}
	return ReadArtifact(path)
}

func (f *Framework) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return f.backend.BalanceAt(ctx, addr, nil)
}

// FundAccount transfers amount wei from one signer to addr and waits for it
// to be mined.
func (f *Framework) FundAccount(ctx context.Context, from *PrivKey, to common.Address, amount *big.Int) (*types.Receipt, error) {
	nonce, err := f.backend.PendingNonceAt(ctx, from.Address())
	if err != nil {
		return nil, fmt.Errorf("failed getting nonce: %w", err)
	}
	gasPrice, err := f.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed getting gas price: %w", err)
	}

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      transferGasLimit,
		GasPrice: gasPrice,
	}), types.LatestSignerForChainID(f.chainID), from.Priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transfer: %w", err)
	}

	if err := f.backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to send transfer: %w", err)
	}
	f.log.WithField("to", to.Hex()).WithField("amount", amount.String()).Debug("Funding account")
	return f.WaitMined(ctx, tx)
}

func (f *Framework) TransactOpts(ctx context.Context, key *PrivKey) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key.Priv, f.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// WaitMined blocks until tx has a receipt or the confirm timeout elapses.
// A mined but failed transaction is reported as ErrTxReverted along with its
// receipt.
func (f *Framework) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ConfirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, f.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

// DeployContract sends the creation transaction for artifact from the given
// signer and returns a contract reference bound to that signer.
func (f *Framework) DeployContract(ctx context.Context, from *PrivKey, artifact *Artifact, args ...interface{}) (*Contract, *types.Receipt, error) {
	if len(artifact.Code) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyBytecode, artifact.ContractName)
	}

	opts, err := f.TransactOpts(ctx, from)
	if err != nil {
		return nil, nil, err
	}

	addr, tx, _, err := bind.DeployContract(opts, *artifact.Abi, artifact.Code, f.backend, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to deploy %s: %w", artifact.ContractName, err)
	}

	f.log.WithField("contract", artifact.ContractName).WithField("tx", tx.Hash().Hex()).Debug("Deployment sent")

	receipt, err := f.WaitMined(ctx, tx)
	if err != nil {
		return nil, receipt, err
	}
	if receipt.ContractAddress != (common.Address{}) {
		addr = receipt.ContractAddress
	}

	return f.ContractAt(addr, artifact.Abi).Ref(from), receipt, nil
}

func (f *Framework) ContractAt(addr common.Address, contractAbi *abi.ABI) *Contract {
	return &Contract{
		fr:    f,
		addr:  addr,
		abi:   contractAbi,
		bound: bind.NewBoundContract(addr, *contractAbi, f.backend, f.backend, f.backend),
	}
}
