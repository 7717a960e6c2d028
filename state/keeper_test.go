package state_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/kv/memkv"
	"github.com/aurora-is-near/engine-go/state"
)

func newKeeper() *state.Keeper {
	return state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
}

func TestKeeper_NonceBalanceCode(t *testing.T) {
	ctx := context.Background()
	k := newKeeper()
	addr := common.HexToAddress("0x1")

	k.SetNonce(ctx, addr, 7)
	n, err := k.GetNonce(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(7), n)

	k.SetBalance(ctx, addr, uint256.NewInt(42))
	b, err := k.GetBalance(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(42), b.Uint64())

	k.SetCode(ctx, addr, []byte{0x60, 0x00})
	c, err := k.GetCode(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x00}, c)
}

// RemoveAccount bumps the account's generation, and a storage slot written
// under the old generation must then read as zero — the generation
// isolation invariant a SELFDESTRUCT-then-redeploy at the same address
// depends on.
func TestKeeper_GenerationIsolation(t *testing.T) {
	ctx := context.Background()
	k := newKeeper()
	addr := common.HexToAddress("0x2")
	slot := common.HexToHash("0x01")
	value := common.HexToHash("0x02")

	require.NoError(t, k.StorageSet(ctx, addr, slot, value))
	got, err := k.StorageGet(ctx, addr, slot)
	require.NoError(t, err)
	require.Equal(t, value, got)

	require.NoError(t, k.RemoveAccount(ctx, addr))

	got, err = k.StorageGet(ctx, addr, slot)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, got, "slot from a prior generation must read as zero")

	gen, err := k.GetGeneration(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint32(1), gen)
}

func TestKeeper_LoadAccount(t *testing.T) {
	ctx := context.Background()
	k := newKeeper()
	addr := common.HexToAddress("0x3")

	k.SetNonce(ctx, addr, 1)
	k.SetBalance(ctx, addr, uint256.NewInt(100))
	k.SetCode(ctx, addr, []byte{0x01})

	acct, err := k.LoadAccount(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), acct.Nonce)
	require.Equal(t, uint64(100), acct.Balance.Uint64())
	require.Equal(t, []byte{0x01}, acct.Code)
	require.False(t, acct.IsEmpty())
}
