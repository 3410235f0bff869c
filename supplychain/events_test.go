package supplychain_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	for _, c := range chains {
		t.Run(c.name, func(t *testing.T) {
			testParseEvent(t, newFixture(t, c.setup))
		})
	}
}

func testParseEvent(t *testing.T, f *fixture) {
	ctx := context.Background()

	id, createReceipt, err := f.chain.CreateProduct(ctx, "Pipsi", "a cold drink", uint256.NewInt(1000))
	require.NoError(t, err)
	shipReceipt, err := f.chain.ShipProduct(ctx, id, uint256.NewInt(1400))
	require.NoError(t, err)

	require.Len(t, createReceipt.Logs, 1)
	ev, err := supplychain.ParseEvent(createReceipt.Logs[0])
	require.NoError(t, err)
	created, ok := ev.(*supplychain.ProductCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, 0, id.Cmp(created.ID))
	assert.Equal(t, f.owner.Address(), created.Owner)
	assert.Equal(t, "Pipsi", created.Name)
	assert.Equal(t, "a cold drink", created.Description)
	assert.Equal(t, uint64(1000), created.Price.Uint64())

	require.Len(t, shipReceipt.Logs, 1)
	ev, err = supplychain.ParseEvent(shipReceipt.Logs[0])
	require.NoError(t, err)
	shipped, ok := ev.(*supplychain.ProductShippedEvent)
	require.True(t, ok)
	assert.Equal(t, 0, id.Cmp(shipped.ID))
	assert.Equal(t, f.owner.Address(), shipped.Shipper)
	assert.Equal(t, uint64(1400), shipped.Price.Uint64())
	assert.Equal(t, shipReceipt.TxHash, shipped.Raw.TxHash)
}

func TestParseEvent_Invalid(t *testing.T) {
	_, err := supplychain.ParseEvent(&types.Log{})
	require.Error(t, err)

	_, err = supplychain.ParseEvent(&types.Log{Topics: []common.Hash{common.HexToHash("0x01")}})
	require.ErrorIs(t, err, supplychain.ErrUnknownEvent)

	topics, err := supplychain.EventTopics()
	require.NoError(t, err)
	_, err = supplychain.ParseEvent(&types.Log{Topics: []common.Hash{topics[0]}})
	require.Error(t, err, "indexed topics are required")
}
