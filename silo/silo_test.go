package silo_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/hosterror"
	"github.com/aurora-is-near/engine-go/kv/memkv"
	"github.com/aurora-is-near/engine-go/silo"
	"github.com/aurora-is-near/engine-go/state"
)

func newKeeper(t *testing.T) *silo.Keeper {
	t.Helper()
	s := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	return silo.NewKeeper(s)
}

func TestCheckSubmit_InactiveAlwaysPasses(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	require.NoError(t, k.CheckSubmit(ctx, false, "anyone.near", common.HexToAddress("0x1")))
}

func TestCheckSubmit_RejectsThenAcceptsAfterWhitelisting(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	sender := common.HexToAddress("0xbeef")

	err := k.CheckSubmit(ctx, true, "alice.near", sender)
	require.Error(t, err)
	require.True(t, hosterror.Is(err, hosterror.CodeNotAllowed))

	k.Add(ctx, silo.KindAccount, []byte("alice.near"))
	err = k.CheckSubmit(ctx, true, "alice.near", sender)
	require.Error(t, err) // address still not whitelisted

	k.Add(ctx, silo.KindAddress, sender[:])
	require.NoError(t, k.CheckSubmit(ctx, true, "alice.near", sender))

	k.Remove(ctx, silo.KindAccount, []byte("alice.near"))
	require.Error(t, k.CheckSubmit(ctx, true, "alice.near", sender))
}

func TestCheckDeploy_RequiresBothAdminSets(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	deployer := common.HexToAddress("0xdead")

	require.Error(t, k.CheckDeploy(ctx, true, "admin.near", deployer))

	k.Add(ctx, silo.KindAdmin, []byte("admin.near"))
	k.Add(ctx, silo.KindEvmAdmin, deployer[:])
	require.NoError(t, k.CheckDeploy(ctx, true, "admin.near", deployer))
}

func TestSetParams_RequiresInitialisedEngine(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	err := k.SetParams(ctx, &silo.Params{FixedGas: 100})
	require.Error(t, err)
	require.True(t, hosterror.Is(err, hosterror.CodeNotInitialized))
}

func TestContains_ReflectsAddRemove(t *testing.T) {
	ctx := context.Background()
	k := newKeeper(t)
	entry := []byte("x.near")

	ok, err := k.Contains(ctx, silo.KindAccount, entry)
	require.NoError(t, err)
	require.False(t, ok)

	k.Add(ctx, silo.KindAccount, entry)
	ok, err = k.Contains(ctx, silo.KindAccount, entry)
	require.NoError(t, err)
	require.True(t, ok)

	k.Remove(ctx, silo.KindAccount, entry)
	ok, err = k.Contains(ctx, silo.KindAccount, entry)
	require.NoError(t, err)
	require.False(t, ok)
}
