package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "List recorded deployments of the selected network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		chainID, err := selectedChainID()
		if err != nil {
			return err
		}
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.ListDeployments(ctx, chainID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no deployments on chain %d\n", chainID)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADDRESS\tBLOCK\tDEPLOYER\tDEPLOYED AT")
		for _, d := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", d.Name, d.Address.Hex(), d.BlockNumber, d.Deployer.Hex(), d.DeployedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(deploymentsCmd)
}
