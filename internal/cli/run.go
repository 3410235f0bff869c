package cli

import (
	"fmt"

	"github.com/flashbots/suapp-supplychain/internal/deployscript"
	"github.com/spf13/cobra"
)

var runForce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deploy SupplyChain, then create, ship and read back the seed product",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		price, err := parsePrice(cfg.Seed.Price)
		if err != nil {
			return err
		}
		shipPrice, err := parsePrice(cfg.Seed.ShipPrice)
		if err != nil {
			return err
		}

		fr, err := newFramework(ctx)
		if err != nil {
			return err
		}
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		artifact, err := fr.ReadArtifact(cfg.Artifact)
		if err != nil {
			return err
		}

		res, err := deployscript.Run(ctx, log, fr, store, deployscript.Params{
			Artifact:    artifact,
			Name:        cfg.Seed.Name,
			Description: cfg.Seed.Description,
			Price:       price,
			ShipPrice:   shipPrice,
			NetworkName: cfg.NetworkName,
			Force:       runForce,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s at %s on %s\n", res.Deployment.Name, res.Deployment.Address.Hex(), res.Network)
		fmt.Fprintf(out, "before: %s\n", res.Created)
		fmt.Fprintf(out, "after:  %s\n", res.Shipped)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "redeploy even if an identical deployment is recorded")
	rootCmd.AddCommand(runCmd)
}
