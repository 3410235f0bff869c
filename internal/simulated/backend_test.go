package simulated

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeFilterLogs(t *testing.T) {
	contract := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	query := ethereum.FilterQuery{Addresses: []common.Address{contract}}

	t.Run("delivers matching logs", func(t *testing.T) {
		b := NewBackend()
		ch := make(chan types.Log, 2)
		sub, err := b.SubscribeFilterLogs(context.Background(), query, ch)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		b.mu.Lock()
		b.publish(types.Log{Address: common.HexToAddress("0x01"), BlockNumber: 1})
		b.publish(types.Log{Address: contract, BlockNumber: 2})
		b.mu.Unlock()

		select {
		case l := <-ch:
			assert.Equal(t, uint64(2), l.BlockNumber)
		case <-time.After(time.Second):
			t.Fatal("log not delivered")
		}
		assert.Empty(t, ch)
	})

	t.Run("slow reader fails the subscription", func(t *testing.T) {
		b := NewBackend()
		sub, err := b.SubscribeFilterLogs(context.Background(), query, make(chan types.Log))
		require.NoError(t, err)
		defer sub.Unsubscribe()

		b.mu.Lock()
		for i := 0; i < subBuffer+2; i++ {
			b.publish(types.Log{Address: contract, BlockNumber: uint64(i)})
		}
		assert.Empty(t, b.subs, "a lagging subscriber gets no further logs")
		b.mu.Unlock()

		select {
		case err := <-sub.Err():
			require.ErrorIs(t, err, ErrSubscriberLagging)
		case <-time.After(time.Second):
			t.Fatal("subscription did not fail")
		}
	})
}
