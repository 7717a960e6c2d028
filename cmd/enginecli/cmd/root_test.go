package cmd_test

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/engine-go/cmd/enginecli/cmd"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := cmd.NewRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["submit"])
	require.True(t, names["replay"])
	require.True(t, names["snapshot"])
}

func TestNewRootCmd_PersistentFlagsBound(t *testing.T) {
	root := cmd.NewRootCmd()

	for _, key := range []string{"chain-id", "data-dir", "rocksdb-path", "index-path", "gas-conversion-ratio", "upgrade-delay-blocks"} {
		require.NotNil(t, root.PersistentFlags().Lookup(key), "missing persistent flag %q", key)
	}
}

func TestSnapshotCmd_HasExportAndImport(t *testing.T) {
	root := cmd.NewRootCmd()

	var snapshot *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "snapshot" {
			snapshot = c
		}
	}
	require.NotNil(t, snapshot)

	names := make(map[string]bool)
	for _, c := range snapshot.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["export"])
	require.True(t, names["import"])
}

func TestSubmitCmd_RequiresRawFlag(t *testing.T) {
	root := cmd.NewRootCmd()

	var submit *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "submit" {
			submit = c
		}
	}
	require.NotNil(t, submit)
	require.NotNil(t, submit.Flags().Lookup("raw"))
}
