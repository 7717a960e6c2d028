package engine_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/engine"
	"github.com/aurora-is-near/engine-go/silo"
)

// TestDeployCode_GatedBySiloDeployWhitelist mirrors
// TestSubmit_GatesCreateByDeployWhitelist for the deploy_code entry point:
// silo mode's Admin/EvmAdmin gate must reject an un-whitelisted deployer
// and accept one once both whitelists carry its identity.
func TestDeployCode_GatedBySiloDeployWhitelist(t *testing.T) {
	ctx := context.Background()
	backend, scope, s := newEngineFixture(t)

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	deployer := crypto.PubkeyToAddress(priv.PublicKey)
	s.SetBalance(ctx, deployer, uint256.NewInt(1_000_000_000))

	siloKeeper := silo.NewKeeper(s)
	require.NoError(t, siloKeeper.SetParams(ctx, &silo.Params{FixedGas: 21_000}))

	o := engine.NewOrchestrator(log.NewNopLogger())
	env := engine.StaticEnvironment{Predecessor: "deployer.near", Current: "aurora", Height: 1}

	_, err = o.DeployCode(ctx, backend, scope, env, &engine.RecordingPromises{}, testBlockConfig(), engine.DeployCodeInput{
		From: deployer,
		Code: []byte{0x60, 0x00, 0x60, 0x00, 0xf3},
		Gas:  100_000,
	})
	require.Error(t, err)

	siloKeeper.Add(ctx, silo.KindAdmin, []byte("deployer.near"))
	siloKeeper.Add(ctx, silo.KindEvmAdmin, deployer[:])

	res, err := o.DeployCode(ctx, backend, scope, env, &engine.RecordingPromises{}, testBlockConfig(), engine.DeployCodeInput{
		From: deployer,
		Code: []byte{0x60, 0x00, 0x60, 0x00, 0xf3},
		Gas:  100_000,
	})
	require.NoError(t, err)
	require.False(t, res.Failed())
}
