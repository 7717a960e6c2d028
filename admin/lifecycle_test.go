package admin_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/admin"
	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/hosterror"
	"github.com/aurora-is-near/engine-go/kv/memkv"
	"github.com/aurora-is-near/engine-go/state"
)

func newKeeper(t *testing.T) *admin.Keeper {
	t.Helper()
	s := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	return admin.NewKeeper(s)
}

func TestNew_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	require.NoError(t, k.New(ctx, big.NewInt(1313161554), "owner.near", "prover.near", 100))
	err := k.New(ctx, big.NewInt(1313161554), "owner.near", "prover.near", 100)
	require.Error(t, err)
}

func TestRequireOwner_RejectsNonOwner(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	require.NoError(t, k.New(ctx, big.NewInt(1), "owner.near", "prover.near", 10))

	_, err := k.RequireOwner(ctx, "eve.near")
	require.Error(t, err)
	require.True(t, hosterror.Is(err, hosterror.CodeNotAllowed))

	_, err = k.RequireOwner(ctx, "owner.near")
	require.NoError(t, err)
}

func TestPauseResume_TogglesMask(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	require.NoError(t, k.New(ctx, big.NewInt(1), "owner.near", "prover.near", 10))

	require.NoError(t, k.RequireRunning(ctx, admin.PauseDeposit))

	require.NoError(t, k.PauseContract(ctx, "owner.near", admin.PauseDeposit))
	err := k.RequireRunning(ctx, admin.PauseDeposit)
	require.Error(t, err)
	require.True(t, hosterror.Is(err, hosterror.CodePaused))

	// An unrelated feature stays unaffected by a targeted pause.
	require.NoError(t, k.RequireRunning(ctx, admin.PauseWithdraw))

	require.NoError(t, k.ResumeContract(ctx, "owner.near", admin.PauseDeposit))
	require.NoError(t, k.RequireRunning(ctx, admin.PauseDeposit))
}

func TestSetOwner_TransfersControl(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	require.NoError(t, k.New(ctx, big.NewInt(1), "owner.near", "prover.near", 10))

	require.NoError(t, k.SetOwner(ctx, "owner.near", "newowner.near"))
	_, err := k.RequireOwner(ctx, "owner.near")
	require.Error(t, err)
	_, err = k.RequireOwner(ctx, "newowner.near")
	require.NoError(t, err)
}

func TestSetKeyManager(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	require.NoError(t, k.New(ctx, big.NewInt(1), "owner.near", "prover.near", 10))
	require.NoError(t, k.SetKeyManager(ctx, "owner.near", "keymgr.near"))

	es, err := k.RequireOwner(ctx, "owner.near")
	require.NoError(t, err)
	require.Equal(t, "keymgr.near", es.KeyManagerAccountID)
}

func TestUpgradeFlow_WaitsOutDelay(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	require.NoError(t, k.New(ctx, big.NewInt(1), "owner.near", "prover.near", 5))

	require.NoError(t, k.StageUpgrade(ctx, "owner.near", 100, []byte("new-wasm")))

	_, err := k.DeployUpgrade(ctx, 104)
	require.Error(t, err)

	code, err := k.DeployUpgrade(ctx, 105)
	require.NoError(t, err)
	require.Equal(t, []byte("new-wasm"), code)

	_, err = k.DeployUpgrade(ctx, 200)
	require.Error(t, err)
}

func TestState_ReadableByAnyCaller(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)

	_, err := k.State(ctx)
	require.True(t, hosterror.Is(err, hosterror.CodeNotInitialized))

	require.NoError(t, k.New(ctx, big.NewInt(42), "owner.near", "prover.near", 5))
	es, err := k.State(ctx)
	require.NoError(t, err)
	require.Equal(t, "owner.near", es.OwnerAccountID)
}

func TestStageUpgrade_RequiresOwner(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	require.NoError(t, k.New(ctx, big.NewInt(1), "owner.near", "prover.near", 5))

	err := k.StageUpgrade(ctx, "eve.near", 100, []byte("evil-wasm"))
	require.Error(t, err)
	require.True(t, hosterror.Is(err, hosterror.CodeNotAllowed))
}
