package cli

import (
	"fmt"

	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/flashbots/suapp-supplychain/internal/deployscript"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/spf13/cobra"
)

var deployForce bool

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy SupplyChain, reusing an identical recorded deployment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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
		deployer, err := fr.NamedAccount(deployscript.DeployerAccount)
		if err != nil {
			return err
		}

		res, err := fr.Deploy(ctx, store, supplychain.ContractName, artifact, framework.DeployOptions{
			From:  deployer,
			Force: deployForce,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (tx %s, block %d, reused %t)\n",
			res.Deployment.Name, res.Deployment.Address.Hex(), res.Deployment.TxHash.Hex(), res.Deployment.BlockNumber, res.Reused)
		return nil
	},
}

func init() {
	deployCmd.Flags().BoolVar(&deployForce, "force", false, "deploy even if an identical deployment is recorded")
	rootCmd.AddCommand(deployCmd)
}
