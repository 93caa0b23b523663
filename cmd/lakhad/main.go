package main

// lakhad is the node daemon: load config, boot the chain (rehydrate or
// create genesis), start P2P, and mine blocks on a fixed interval until
// interrupted.
//
// Grounded on _examples/orbas1-Synnergy/synnergy-network/cmd/synnergy's
// cobra command-tree shape (root command, subcommands with flag-bound
// Run funcs), adapted from the teacher's mock testnet/tokens commands to
// a real node/account command surface.

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lakha-network/core"
	"lakha-network/pkg/config"
)

func main() {
	log := logrus.StandardLogger()
	rootCmd := &cobra.Command{Use: "lakhad"}
	rootCmd.AddCommand(nodeCmd(log))
	rootCmd.AddCommand(accountCmd(log))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func nodeCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{Use: "node"}
	start := &cobra.Command{
		Use:   "start",
		Short: "boot the node and mine blocks until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			env, _ := cmd.Flags().GetString("env")
			cfg, err := config.Load(env)
			if err != nil {
				log.WithError(err).Fatal("failed to load config")
			}
			if cfg.Logging.Level != "" {
				if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
					log.SetLevel(lvl)
				}
			}

			store, err := core.OpenLevelStore(cfg.Storage.DBPath, log)
			if err != nil {
				log.WithError(err).Fatal("failed to open storage")
			}
			defer store.Close()

			bc := core.NewBlockchain(core.BlockchainConfig{
				Params:              cfg.NodeParams(),
				Store:               store,
				Log:                 log,
				ListenAddr:          cfg.P2P.ListenAddr,
				Peers:               cfg.P2P.Peers,
				SyntheticPeerReview: cfg.P2P.SyntheticPeerReview,
				ContractGasBudget:   cfg.Contracts.GasBudget,
				RandSeed:            time.Now().UnixNano(),
			})
			if err := bc.Boot(); err != nil {
				log.WithError(err).Fatal("failed to boot chain")
			}
			log.WithField("chain_length", bc.GetChainLength()).Info("node booted")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			blockInterval := time.Duration(cfg.Node.BlockTimeSeconds * float64(time.Second))
			ticker := time.NewTicker(blockInterval)
			defer ticker.Stop()

			for {
				select {
				case <-sigCh:
					log.Info("shutting down")
					_ = bc.Stop()
					return
				case <-ticker.C:
					if _, err := bc.MineBlock(); err != nil {
						log.WithError(err).Warn("mine block failed")
					}
				}
			}
		},
	}
	start.Flags().String("env", "", "environment name (merges cmd/config/<env>.yaml)")
	cmd.AddCommand(start)
	return cmd
}

func accountCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{Use: "account"}
	create := &cobra.Command{
		Use:   "new",
		Short: "generate a fresh codec-valid address",
		Run: func(cmd *cobra.Command, args []string) {
			hrp, _ := cmd.Flags().GetString("hrp")
			codec := core.NewAddressCodec(hrp)
			addr, err := codec.Generate()
			if err != nil {
				log.WithError(err).Fatal("failed to generate address")
			}
			fmt.Println(addr)
		},
	}
	create.Flags().String("hrp", core.DefaultHRP, "bech32 human-readable prefix")
	cmd.AddCommand(create)
	return cmd
}
