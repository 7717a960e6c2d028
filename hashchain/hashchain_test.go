package hashchain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/kv/memkv"
	"github.com/aurora-is-near/engine-go/state"
)

func newKeeper() *Keeper {
	s := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	return NewKeeper(s, big.NewInt(1313161554), "aurora")
}

func TestTransactionDigest_LengthPrefixed(t *testing.T) {
	d1 := TransactionDigest("submit", []byte{1, 2}, []byte{3})
	d2 := TransactionDigest("submit", []byte{1, 2}, []byte{3})
	require.Equal(t, d1, d2)

	// Changing a length split without changing total bytes must change the
	// digest — the length prefixes are there precisely to prevent this
	// kind of ambiguity.
	d3 := TransactionDigest("submi", []byte{'t', 1, 2}, []byte{3})
	require.NotEqual(t, d1, d3)
}

func TestKeeper_MoveToBlock_FoldsAndResets(t *testing.T) {
	ctx := context.Background()
	k := newKeeper()

	height, prev, acc, err := k.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), height)
	require.Equal(t, common.Hash{}, prev)

	acc.AddTransaction("submit", []byte("in"), []byte("out"), nil)
	require.NoError(t, k.Save(height, prev, acc))

	require.NoError(t, k.MoveToBlock(ctx, 1))

	newHeight, newPrev, newAcc, err := k.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), newHeight)
	require.NotEqual(t, common.Hash{}, newPrev)
	require.True(t, newAcc.Tree.IsEmpty())

	recorded, ok, err := k.BlockHash(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, newPrev, recorded)
}

func TestKeeper_MoveToBlock_SkippingHeightsFoldsEachOne(t *testing.T) {
	ctx := context.Background()
	k := newKeeper()

	require.NoError(t, k.MoveToBlock(ctx, 3))

	height, _, _, err := k.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), height)

	for h := uint64(0); h < 3; h++ {
		_, ok, err := k.BlockHash(ctx, h)
		require.NoError(t, err)
		require.True(t, ok, "height %d should have a recorded hash", h)
	}
}

func TestKeeper_MoveToBlock_IsDeterministic(t *testing.T) {
	ctx := context.Background()

	k1 := newKeeper()
	_, _, acc1, _ := k1.Load(ctx)
	acc1.AddTransaction("submit", []byte("a"), []byte("b"), nil)
	require.NoError(t, k1.Save(0, common.Hash{}, acc1))
	require.NoError(t, k1.MoveToBlock(ctx, 1))
	h1, _, err := k1.BlockHash(ctx, 0)
	require.NoError(t, err)

	k2 := newKeeper()
	_, _, acc2, _ := k2.Load(ctx)
	acc2.AddTransaction("submit", []byte("a"), []byte("b"), nil)
	require.NoError(t, k2.Save(0, common.Hash{}, acc2))
	require.NoError(t, k2.MoveToBlock(ctx, 1))
	h2, _, err := k2.BlockHash(ctx, 0)
	require.NoError(t, err)

	require.Equal(t, h1, h2)
}

func TestAccumulator_AddTransactionOrsBloom(t *testing.T) {
	var acc Accumulator
	evLog := &types.Log{Address: common.HexToAddress("0xaaaa"), Topics: []common.Hash{crypto.Keccak256Hash([]byte("Transfer"))}}
	acc.AddTransaction("call", nil, nil, []*types.Log{evLog})
	require.NotEqual(t, types.Bloom{}, acc.Bloom)
}

func TestGetHashFunc_ReturnsZeroForUnknownHeight(t *testing.T) {
	ctx := context.Background()
	k := newKeeper()
	get := k.GetHashFunc(ctx)
	require.Equal(t, common.Hash{}, get(42))
}
