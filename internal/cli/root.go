package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/flashbots/suapp-supplychain/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	networkFlag string
	logLevel    string

	cfg *config.Config
	log *logrus.Entry
)

var rootCmd = &cobra.Command{
	Use:   "supplychain",
	Short: "Deploy and drive the SupplyChain contract",
	Long:  "supplychain deploys the SupplyChain contract to a configured network, walks products through their lifecycle and indexes contract events",

	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+")")
	rootCmd.PersistentFlags().StringVarP(&networkFlag, "network", "n", "", "network to use, overrides the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the config")
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if networkFlag != "" {
		c.Network = networkFlag
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}

	l, err := newLogger(cmd.OutOrStdout(), c.LogLevel)
	if err != nil {
		return err
	}
	cfg, log = c, l.WithField("network", c.Network)
	return nil
}

func newLogger(out io.Writer, level string) (*logrus.Entry, error) {
	l := logrus.NewEntry(logrus.New())
	l.Logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid loglevel: %s", level)
	}
	l.Logger.SetLevel(lvl)
	return l, nil
}
