package listener_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/flashbots/suapp-supplychain/internal/listener"
	"github.com/flashbots/suapp-supplychain/internal/models"
	"github.com/flashbots/suapp-supplychain/internal/simulated"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

type memSink struct {
	mu     sync.Mutex
	events []models.ProductEvent
	seen   map[common.Hash]map[uint]bool
	// failures is the number of upcoming SaveEvent calls that fail.
	failures int
}

func (m *memSink) failNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

func (m *memSink) SaveEvent(_ context.Context, ev *models.ProductEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return false, errStoreDown
	}
	if m.seen == nil {
		m.seen = make(map[common.Hash]map[uint]bool)
	}
	if m.seen[ev.TxHash] == nil {
		m.seen[ev.TxHash] = make(map[uint]bool)
	}
	if m.seen[ev.TxHash][ev.LogIndex] {
		return false, nil
	}
	m.seen[ev.TxHash][ev.LogIndex] = true
	m.events = append(m.events, *ev)
	return true, nil
}

func (m *memSink) LastIndexedBlock(_ context.Context, _ uint64, _ common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last uint64
	for _, ev := range m.events {
		if ev.BlockNumber > last {
			last = ev.BlockNumber
		}
	}
	return last, nil
}

func (m *memSink) snapshot() []models.ProductEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ProductEvent(nil), m.events...)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestEventListener_BackfillAndFollow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := simulated.NewBackend()
	owner := framework.GeneratePrivKey()
	fr, err := framework.NewWithBackend(ctx, testLogger(), backend, framework.Config{Accounts: []*framework.PrivKey{owner}})
	require.NoError(t, err)

	contractAbi, err := supplychain.ABI()
	require.NoError(t, err)
	contract, receipt, err := fr.DeployContract(ctx, owner, &framework.Artifact{
		ContractName: supplychain.ContractName, Abi: contractAbi, Code: common.FromHex("0x6080"),
	})
	require.NoError(t, err)
	chain := supplychain.Bind(contract)

	// Mined before the listener starts, must come from the backfill.
	id, _, err := chain.CreateProduct(ctx, "Pipsi", "a cold drink", uint256.NewInt(1000))
	require.NoError(t, err)

	sink := &memSink{}
	el := listener.NewEventListener(testLogger(), backend, sink, simulated.DefaultChainID, contract.Address(), receipt.BlockNumber.Uint64())

	done := make(chan error, 1)
	go func() { done <- el.Listen(ctx) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	_, err = chain.ShipProduct(ctx, id, uint256.NewInt(1400))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 10*time.Millisecond)

	events := sink.snapshot()
	assert.Equal(t, models.EventCreated, events[0].Kind)
	assert.Equal(t, "Pipsi", events[0].Name)
	assert.Equal(t, "1000", events[0].Price)
	assert.Equal(t, owner.Address(), events[0].Actor)
	assert.Equal(t, models.EventShipped, events[1].Kind)
	assert.Equal(t, "1400", events[1].Price)
	assert.Equal(t, contract.Address(), events[1].Contract)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestEventListener_StoreErrorKeepsEventForRestart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := simulated.NewBackend()
	owner := framework.GeneratePrivKey()
	fr, err := framework.NewWithBackend(ctx, testLogger(), backend, framework.Config{Accounts: []*framework.PrivKey{owner}})
	require.NoError(t, err)

	contractAbi, err := supplychain.ABI()
	require.NoError(t, err)
	contract, receipt, err := fr.DeployContract(ctx, owner, &framework.Artifact{
		ContractName: supplychain.ContractName, Abi: contractAbi, Code: common.FromHex("0x6080"),
	})
	require.NoError(t, err)
	chain := supplychain.Bind(contract)

	id, _, err := chain.CreateProduct(ctx, "Pipsi", "a cold drink", uint256.NewInt(1000))
	require.NoError(t, err)

	sink := &memSink{}
	el := listener.NewEventListener(testLogger(), backend, sink, simulated.DefaultChainID, contract.Address(), receipt.BlockNumber.Uint64())

	t.Run("backfill", func(t *testing.T) {
		sink.failNext(1)
		err := el.Listen(ctx)
		require.ErrorIs(t, err, errStoreDown)
		assert.Empty(t, sink.snapshot())
	})

	t.Run("follow", func(t *testing.T) {
		done := make(chan error, 1)
		go func() { done <- el.Listen(ctx) }()
		require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

		sink.failNext(1)
		_, err := chain.ShipProduct(ctx, id, uint256.NewInt(1400))
		require.NoError(t, err)

		select {
		case err := <-done:
			require.ErrorIs(t, err, errStoreDown)
		case <-time.After(time.Second):
			t.Fatal("listener kept running after a store failure")
		}
		assert.Len(t, sink.snapshot(), 1)
	})

	t.Run("restart", func(t *testing.T) {
		listenCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- el.Listen(listenCtx) }()

		require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
		events := sink.snapshot()
		assert.Equal(t, models.EventCreated, events[0].Kind)
		assert.Equal(t, models.EventShipped, events[1].Kind)

		stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("listener did not stop")
		}
	})
}

type fakeSource struct {
	past   []types.Log
	subErr error
}

func (f *fakeSource) FilterLogs(_ context.Context, _ ethereum.FilterQuery) ([]types.Log, error) {
	return f.past, nil
}

func (f *fakeSource) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, _ chan<- types.Log) (ethereum.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		return f.subErr
	}), nil
}

func TestEventListener_SkipsBadLogsAndReturnsSubscriptionError(t *testing.T) {
	topics, err := supplychain.EventTopics()
	require.NoError(t, err)

	boom := errors.New("websocket closed")
	source := &fakeSource{
		past: []types.Log{
			{Removed: true, Topics: []common.Hash{topics[0]}},
			{Topics: []common.Hash{common.HexToHash("0xdead")}},
			{Topics: []common.Hash{topics[1]}},
		},
		subErr: boom,
	}
	sink := &memSink{}
	el := listener.NewEventListener(testLogger(), source, sink, 1, common.HexToAddress("0x01"), 0)

	err = el.Listen(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, sink.snapshot())
}

func TestEventListener_SinkErrorAbortsBackfill(t *testing.T) {
	el := listener.NewEventListener(testLogger(), &fakeSource{}, failingSink{}, 1, common.HexToAddress("0x01"), 0)

	err := el.Listen(context.Background())
	require.ErrorIs(t, err, assert.AnError)
}

type failingSink struct{}

func (failingSink) SaveEvent(context.Context, *models.ProductEvent) (bool, error) {
	return false, assert.AnError
}

func (failingSink) LastIndexedBlock(context.Context, uint64, common.Address) (uint64, error) {
	return 0, assert.AnError
}
