package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/flashbots/suapp-supplychain/internal/listener"
	"github.com/flashbots/suapp-supplychain/internal/repository/sqlite"
	"github.com/spf13/cobra"
)

var (
	watchAddress   string
	watchFromBlock uint64
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index SupplyChain events into the local database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		el, client, err := newEventListener(ctx, store, watchAddress)
		if err != nil {
			return err
		}
		defer client.Close()
		return el.Listen(ctx)
	},
}

// newEventListener dials the websocket endpoint of the selected network and
// listens from the deployment block, or from --from-block when the contract
// address is given explicitly. The caller closes the returned client.
func newEventListener(ctx context.Context, store *sqlite.Repository, addr string) (*listener.EventListener, *ethclient.Client, error) {
	n, err := cfg.SelectedNetwork()
	if err != nil {
		return nil, nil, err
	}
	url := n.WSURL
	if url == "" {
		url = n.RPCURL
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed getting chain id: %w", err)
	}

	contract, deployment, err := contractAddress(ctx, store, chainID.Uint64(), addr)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	fromBlock := watchFromBlock
	if deployment != nil && fromBlock == 0 {
		fromBlock = deployment.BlockNumber
	}

	return listener.NewEventListener(log, client, store, chainID.Uint64(), contract, fromBlock), client, nil
}

func init() {
	watchCmd.Flags().StringVar(&watchAddress, "address", "", "contract address (default: recorded deployment)")
	watchCmd.Flags().Uint64Var(&watchFromBlock, "from-block", 0, "first block to backfill (default: deployment block)")
	rootCmd.AddCommand(watchCmd)
}
