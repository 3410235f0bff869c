package cli

import (
	"context"
	"fmt"

	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/spf13/cobra"
)

var (
	productAddress string
	productFrom    string
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Create, fetch and ship products on the deployed contract",
}

// withSupplyChain binds the deployed contract to the --from signer and hands
// it to fn.
func withSupplyChain(ctx context.Context, fn func(*supplychain.SupplyChain) error) error {
	fr, err := newFramework(ctx)
	if err != nil {
		return err
	}
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	return bindSupplyChain(ctx, fr, store, fn)
}

func bindSupplyChain(ctx context.Context, fr *framework.Framework, store framework.DeploymentStore, fn func(*supplychain.SupplyChain) error) error {
	addr, _, err := contractAddress(ctx, store, fr.ChainID().Uint64(), productAddress)
	if err != nil {
		return err
	}
	signer, err := resolveSigner(fr, productFrom)
	if err != nil {
		return err
	}
	chain, err := supplychain.NewSupplyChain(fr, addr, signer)
	if err != nil {
		return err
	}
	return fn(chain)
}

var productCreateCmd = &cobra.Command{
	Use:   "create <name> <description> <price>",
	Short: "Create a product owned by the signer",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := parsePrice(args[2])
		if err != nil {
			return err
		}
		return withSupplyChain(cmd.Context(), func(chain *supplychain.SupplyChain) error {
			id, receipt, err := chain.CreateProduct(cmd.Context(), args[0], args[1], price)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created product %s (tx %s)\n", id, receipt.TxHash.Hex())
			return nil
		})
	},
}

var productFetchCmd = &cobra.Command{
	Use:   "fetch <id>",
	Short: "Read a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBigUint(args[0])
		if err != nil {
			return err
		}
		return withSupplyChain(cmd.Context(), func(chain *supplychain.SupplyChain) error {
			p, err := chain.FetchProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		})
	},
}

var productShipCmd = &cobra.Command{
	Use:   "ship <id> <new-price>",
	Short: "Ship a product owned by the signer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBigUint(args[0])
		if err != nil {
			return err
		}
		price, err := parsePrice(args[1])
		if err != nil {
			return err
		}
		return withSupplyChain(cmd.Context(), func(chain *supplychain.SupplyChain) error {
			receipt, err := chain.ShipProduct(cmd.Context(), id, price)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shipped product %s (tx %s)\n", id, receipt.TxHash.Hex())
			return nil
		})
	},
}

var productCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSupplyChain(cmd.Context(), func(chain *supplychain.SupplyChain) error {
			n, err := chain.ProductCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

func init() {
	productCmd.PersistentFlags().StringVar(&productAddress, "address", "", "contract address (default: recorded deployment)")
	productCmd.PersistentFlags().StringVar(&productFrom, "from", "", "named account to sign with (default: first account)")

	productCmd.AddCommand(productCreateCmd, productFetchCmd, productShipCmd, productCountCmd)
	rootCmd.AddCommand(productCmd)
}
