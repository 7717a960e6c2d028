package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/engine-go/config"
)

func TestLoad_Defaults(t *testing.T) {
	v := config.New()
	v.Set(config.KeyChainID, "1313161554")

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, "1313161554", cfg.ChainID.String())
	require.Equal(t, config.DefaultGasConversionRatio, cfg.GasConversionRatio)
	require.Equal(t, config.DefaultUpgradeDelayBlocks, cfg.UpgradeDelayBlocks)
	require.Equal(t, config.EngineVersion, cfg.Version)
}

func TestLoad_Overrides(t *testing.T) {
	v := config.New()
	v.Set(config.KeyChainID, "1")
	v.Set(config.KeyGasConversionRatio, 42)
	v.Set(config.KeyUpgradeDelayBlocks, 10)

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, uint64(42), cfg.GasConversionRatio)
	require.Equal(t, uint64(10), cfg.UpgradeDelayBlocks)
}

func TestLoad_MissingChainIDDefaultsToZero(t *testing.T) {
	v := config.New()
	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, "0", cfg.ChainID.String())
}
