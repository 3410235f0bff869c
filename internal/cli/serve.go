package cli

import (
	"context"

	"github.com/flashbots/suapp-supplychain/internal/api"
	"github.com/flashbots/suapp-supplychain/supplychain"
	"github.com/spf13/cobra"
)

var (
	serveListenAddr string
	serveWatch      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deployed contract over HTTP",
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

		chainID := fr.ChainID().Uint64()
		addr, _, err := contractAddress(ctx, store, chainID, productAddress)
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

		listenAddr := cfg.HTTP.ListenAddr
		if serveListenAddr != "" {
			listenAddr = serveListenAddr
		}
		httpSrv := api.NewService(log, listenAddr, chain, store, chainID, addr)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		errs := make(chan error, 2)
		if serveWatch {
			el, client, err := newEventListener(ctx, store, addr.Hex())
			if err != nil {
				return err
			}
			defer client.Close()
			go func() { errs <- el.Listen(ctx) }()
		}
		go func() { errs <- httpSrv.StartHTTPServer() }()

		log.Println("listening on", listenAddr)

		var runErr error
		select {
		case <-ctx.Done():
		case runErr = <-errs:
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer stop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("failed to shut down http server")
		}
		return runErr
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "listen address, overrides the config")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "index events while serving")
	serveCmd.Flags().StringVar(&productAddress, "address", "", "contract address (default: recorded deployment)")
	serveCmd.Flags().StringVar(&productFrom, "from", "", "named account to sign with (default: first account)")
	rootCmd.AddCommand(serveCmd)
}
