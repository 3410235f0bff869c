package framework_test

import (
	"context"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/flashbots/suapp-supplychain/internal/simulated"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oneEther = big.NewInt(1_000_000_000_000_000_000)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testArtifact(t *testing.T, code string) *framework.Artifact {
	t.Helper()

	contractAbi, err := supplychain.ABI()
	require.NoError(t, err)
	return &framework.Artifact{
		ContractName: supplychain.ContractName,
		Abi:          contractAbi,
		Code:         common.FromHex(code),
	}
}

// newTestFramework returns a framework over a fresh simulated chain with two
// funded signers: deployer (0) and shipper (1).
func newTestFramework(t *testing.T) (*framework.Framework, *simulated.Backend) {
	t.Helper()

	backend := simulated.NewBackend()
	keys := []*framework.PrivKey{framework.GeneratePrivKey(), framework.GeneratePrivKey()}
	for _, k := range keys {
		backend.Fund(k.Address(), oneEther)
	}

	fr, err := framework.NewWithBackend(context.Background(), testLogger(), backend, framework.Config{
		Accounts:      keys,
		NamedAccounts: map[string]int{"deployer": 0, "shipper": 1, "ghost": 7},
	})
	require.NoError(t, err)
	return fr, backend
}

func TestNamedAccount(t *testing.T) {
	fr, _ := newTestFramework(t)

	t.Run("resolves by index", func(t *testing.T) {
		deployer, err := fr.NamedAccount("deployer")
		require.NoError(t, err)
		assert.Equal(t, fr.Signers()[0].Address(), deployer.Address())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := fr.NamedAccount("nobody")
		require.ErrorIs(t, err, framework.ErrUnknownAccount)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := fr.NamedAccount("ghost")
		require.ErrorIs(t, err, framework.ErrAccountIndex)
	})
}

func TestChainID(t *testing.T) {
	fr, _ := newTestFramework(t)
	assert.Equal(t, int64(simulated.DefaultChainID), fr.ChainID().Int64())
}

func TestDeployContract(t *testing.T) {
	ctx := context.Background()
	fr, backend := newTestFramework(t)
	deployer := fr.Signers()[0]

	contract, receipt, err := fr.DeployContract(ctx, deployer, testArtifact(t, "0x6080604052"))
	require.NoError(t, err)

	assert.NotEqual(t, common.Address{}, contract.Address())
	assert.Equal(t, receipt.ContractAddress, contract.Address())
	assert.Equal(t, deployer.Address(), contract.Signer().Address())

	code, err := backend.CodeAt(ctx, contract.Address(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}

func TestDeployContract_EmptyBytecode(t *testing.T) {
	fr, _ := newTestFramework(t)

	_, _, err := fr.DeployContract(context.Background(), fr.Signers()[0], testArtifact(t, ""))
	require.ErrorIs(t, err, framework.ErrEmptyBytecode)
}

func TestContract_SendTransactionAndCall(t *testing.T) {
	ctx := context.Background()
	fr, _ := newTestFramework(t)
	contract, _, err := fr.DeployContract(ctx, fr.Signers()[0], testArtifact(t, "0x6080604052"))
	require.NoError(t, err)

	receipt, err := contract.SendTransaction(ctx, supplychain.MethodCreateProduct, "Pipsi", "a cold drink", big.NewInt(1000))
	require.NoError(t, err)
	assert.Len(t, receipt.Logs, 1)

	out, err := contract.Call(ctx, supplychain.MethodFetchProduct, big.NewInt(0))
	require.NoError(t, err)
	require.Len(t, out, 6)
	assert.Equal(t, "Pipsi", out[1])
	assert.Equal(t, 0, big.NewInt(1000).Cmp(out[3].(*big.Int)))

	t.Run("call revert", func(t *testing.T) {
		_, err := contract.Call(ctx, supplychain.MethodFetchProduct, big.NewInt(5))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown product")
	})

	t.Run("transaction revert from another signer", func(t *testing.T) {
		_, err := contract.Ref(fr.Signers()[1]).SendTransaction(ctx, supplychain.MethodShipProduct, big.NewInt(0), big.NewInt(1400))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not owner")
	})

	t.Run("read-only reference cannot transact", func(t *testing.T) {
		ro := fr.ContractAt(contract.Address(), contract.Abi())
		_, err := ro.SendTransaction(ctx, supplychain.MethodCreateProduct, "x", "y", big.NewInt(1))
		require.ErrorIs(t, err, framework.ErrNoSigner)
	})
}

func TestFundAccount(t *testing.T) {
	ctx := context.Background()
	fr, _ := newTestFramework(t)
	recipient := framework.GeneratePrivKey().Address()
	amount := big.NewInt(12345)

	receipt, err := fr.FundAccount(ctx, fr.Signers()[0], recipient, amount)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)

	balance, err := fr.Balance(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Cmp(balance))
}
