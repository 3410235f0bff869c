package cli

import (
	"fmt"
	"os"

	"github.com/flashbots/suapp-supplychain/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config",
	Long:  "Creates a " + config.DefaultFile + " with a localhost dev network in the current directory",
	Args:  cobra.NoArgs,
	// Nothing to load yet.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultFile
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, pass --force to overwrite\n", path)
			return nil
		}

		data, err := yaml.Marshal(config.Starter())
		if err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}
