// Package cmd implements the standalone engine's CLI surface: submit a raw
// transaction, replay a journal, and export/import a snapshot — the
// commands a standalone (non-on-chain) deployment actually needs, bound
// through spf13/cobra and spf13/viper the way the teacher's node binary
// binds its own server flags, scoped down since block production and
// genesis/node bootstrap are outside this engine's surface.
package cmd

import (
	"os"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aurora-is-near/engine-go/config"
)

// NewRootCmd builds enginecli's root command: persistent flags for every
// config.Config field, bound into one viper instance every subcommand reads
// through at Run time.
func NewRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:   "enginecli",
		Short: "Standalone driver for the EVM execution engine",
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyChainID, "1313161554", "EVM chain id")
	flags.String(config.KeyDataDir, "./data", "base directory for engine data")
	flags.String(config.KeyRocksDBPath, "", "RocksDB path (defaults under data-dir)")
	flags.String(config.KeyIndexPath, "", "replay secondary-index path (defaults under data-dir)")
	flags.Uint64(config.KeyGasConversionRatio, config.DefaultGasConversionRatio, "EVM-gas to NEAR-gas conversion ratio")
	flags.Uint64(config.KeyUpgradeDelayBlocks, config.DefaultUpgradeDelayBlocks, "blocks a staged upgrade waits before it may deploy")

	for _, key := range []string{
		config.KeyChainID, config.KeyDataDir, config.KeyRocksDBPath, config.KeyIndexPath,
		config.KeyGasConversionRatio, config.KeyUpgradeDelayBlocks,
	} {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(
		newSubmitCmd(v),
		newReplayCmd(v),
		newSnapshotCmd(v),
	)

	return root
}

func logger() log.Logger {
	return log.NewLogger(os.Stderr)
}
