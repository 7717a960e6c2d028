package evmcore_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/evmcore"
)

// RevertToSnapshot must undo every write made after the matching Snapshot
// call, including writes made by a nested Snapshot/Revert pair inside it —
// the revert-atomicity invariant CALL/CREATE frames depend on.
func TestStateDB_SnapshotRevert(t *testing.T) {
	ctx := context.Background()
	keeper := newKeeper(t)
	sdb := evmcore.NewStateDB(ctx, keeper, evmcore.TxConfig{}, log.NewNopLogger())

	addr := common.HexToAddress("0x4444444444444444444444444444444444444444")
	sdb.AddBalance(addr, uint256.NewInt(100), tracing.BalanceChangeUnspecified)

	outer := sdb.Snapshot()
	sdb.AddBalance(addr, uint256.NewInt(50), tracing.BalanceChangeUnspecified)

	inner := sdb.Snapshot()
	sdb.AddBalance(addr, uint256.NewInt(25), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint64(175), sdb.GetBalance(addr).Uint64())

	sdb.RevertToSnapshot(inner)
	require.Equal(t, uint64(150), sdb.GetBalance(addr).Uint64())

	sdb.RevertToSnapshot(outer)
	require.Equal(t, uint64(100), sdb.GetBalance(addr).Uint64())
}

// SetState returns the previous value and GetState observes the write
// immediately, matching go-ethereum's SSTORE semantics.
func TestStateDB_StorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	keeper := newKeeper(t)
	sdb := evmcore.NewStateDB(ctx, keeper, evmcore.TxConfig{}, log.NewNopLogger())

	addr := common.HexToAddress("0x5555555555555555555555555555555555555555")
	key := common.HexToHash("0x01")
	value := common.HexToHash("0x02")

	require.Equal(t, common.Hash{}, sdb.GetState(addr, key))

	prev := sdb.SetState(addr, key, value)
	require.Equal(t, common.Hash{}, prev)
	require.Equal(t, value, sdb.GetState(addr, key))
	require.Equal(t, common.Hash{}, sdb.GetCommittedState(addr, key))
}

// Access-list warming is cleared by Prepare and accumulates monotonically
// within a transaction otherwise.
func TestStateDB_AccessList(t *testing.T) {
	ctx := context.Background()
	keeper := newKeeper(t)
	sdb := evmcore.NewStateDB(ctx, keeper, evmcore.TxConfig{}, log.NewNopLogger())

	addr := common.HexToAddress("0x6666666666666666666666666666666666666666")
	slot := common.HexToHash("0x01")

	require.False(t, sdb.AddressInAccessList(addr))
	sdb.AddSlotToAccessList(addr, slot)

	addrOK, slotOK := sdb.SlotInAccessList(addr, slot)
	require.True(t, addrOK)
	require.True(t, slotOK)
}
