// Package config loads the standalone engine's tunables — the handful of
// values that aren't part of on-chain EngineState because they govern how
// this binary runs rather than what the ledger records. Grounded on the
// teacher's own app.toml-style layering (EvmAppOptions reads chain-specific
// overrides through viper-backed AppOptions), re-expressed over a flat
// struct since this engine has no app.toml — only CLI flags and an optional
// config file, loaded through spf13/viper the way cmd/enginecli's commands
// bind spf13/cobra flags to it.
package config

import (
	"math/big"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Keys are the viper/flag names cmd/enginecli binds; exported so the CLI
// package and tests can refer to them without repeating the strings.
const (
	KeyChainID            = "chain-id"
	KeyDataDir            = "data-dir"
	KeyRocksDBPath        = "rocksdb-path"
	KeyIndexPath          = "index-path"
	KeyGasConversionRatio = "gas-conversion-ratio"
	KeyUpgradeDelayBlocks = "upgrade-delay-blocks"
	KeyVersion            = "version"
)

// EngineVersion is the engine's free-form version string (spec.md §9 Open
// Question b), a plain constant that Config.Version defaults to absent an
// explicit override.
const EngineVersion = "aurora-engine-go/0.1.0"

// DefaultGasConversionRatio is the EVM-gas-to-NEAR-gas multiplier applied
// when the host reports PrepaidGas back to the EVM's own gas accounting —
// conservatively close to 1 since this is a tunable the operator is
// expected to calibrate per deployment, not a derived on-chain constant.
const DefaultGasConversionRatio uint64 = 1

// DefaultUpgradeDelayBlocks seeds admin.Keeper.New's upgradeDelayBlocks
// argument when the operator doesn't override it — about one hour at a
// 1-second NEAR block time, matching the conservative delay the original
// engine's own deploy scripts use.
const DefaultUpgradeDelayBlocks uint64 = 3_600

// Config is every tunable cmd/enginecli's commands and the standalone
// replay engine need at startup.
type Config struct {
	ChainID            *big.Int
	DataDir            string
	RocksDBPath        string
	IndexPath          string
	GasConversionRatio uint64
	UpgradeDelayBlocks uint64
	Version            string
}

// New builds a viper instance pre-seeded with every key's default, ready
// for cmd/enginecli to bind flags and an optional config file on top of.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDataDir, "./data")
	v.SetDefault(KeyRocksDBPath, "./data/engine.rocksdb")
	v.SetDefault(KeyIndexPath, "./data/engine.index")
	v.SetDefault(KeyGasConversionRatio, DefaultGasConversionRatio)
	v.SetDefault(KeyUpgradeDelayBlocks, DefaultUpgradeDelayBlocks)
	v.SetDefault(KeyVersion, EngineVersion)
	return v
}

// Load reads every key out of v into a Config. chainID is parsed as a
// base-10 integer string; a missing or unparseable value yields chain id 0.
func Load(v *viper.Viper) (Config, error) {
	chainID, ok := new(big.Int).SetString(v.GetString(KeyChainID), 10)
	if !ok {
		chainID = big.NewInt(0)
	}
	cfg := Config{
		ChainID:            chainID,
		DataDir:            v.GetString(KeyDataDir),
		RocksDBPath:        v.GetString(KeyRocksDBPath),
		IndexPath:          v.GetString(KeyIndexPath),
		GasConversionRatio: v.GetUint64(KeyGasConversionRatio),
		UpgradeDelayBlocks: v.GetUint64(KeyUpgradeDelayBlocks),
		Version:            v.GetString(KeyVersion),
	}
	return cfg.resolvePaths(), nil
}

// resolvePaths fills RocksDBPath/IndexPath from DataDir when the caller left
// them as the empty string — cmd/enginecli's persistent flags default both
// to "" precisely so an operator who only passes --data-dir still gets a
// sane, colocated layout instead of having to spell out both paths.
func (c Config) resolvePaths() Config {
	if c.RocksDBPath == "" {
		c.RocksDBPath = filepath.Join(c.DataDir, "engine.rocksdb")
	}
	if c.IndexPath == "" {
		c.IndexPath = filepath.Join(c.DataDir, "engine.index")
	}
	return c
}
