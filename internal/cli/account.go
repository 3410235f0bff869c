package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fundFrom string

var balanceCmd = &cobra.Command{
	Use:   "balance <address|account>",
	Short: "Print the balance in wei of an address or named account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fr, err := newFramework(ctx)
		if err != nil {
			return err
		}
		addr, err := resolveAddress(fr, args[0])
		if err != nil {
			return err
		}
		balance, err := fr.Balance(ctx, addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", addr.Hex(), balance)
		return nil
	},
}

var fundCmd = &cobra.Command{
	Use:   "fund <address|account> <wei>",
	Short: "Send wei from a configured account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		amount, err := parseBigUint(args[1])
		if err != nil {
			return err
		}
		fr, err := newFramework(ctx)
		if err != nil {
			return err
		}
		to, err := resolveAddress(fr, args[0])
		if err != nil {
			return err
		}
		from, err := resolveSigner(fr, fundFrom)
		if err != nil {
			return err
		}

		receipt, err := fr.FundAccount(ctx, from, to, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s wei to %s (tx %s)\n", amount, to.Hex(), receipt.TxHash.Hex())
		return nil
	},
}

func init() {
	fundCmd.Flags().StringVar(&fundFrom, "from", "", "named account to send from (default: first account)")
	rootCmd.AddCommand(balanceCmd, fundCmd)
}
