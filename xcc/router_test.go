package xcc_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/evmcore"
	"github.com/aurora-is-near/engine-go/host"
	"github.com/aurora-is-near/engine-go/kv/memkv"
	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
	"github.com/aurora-is-near/engine-go/state"
	"github.com/aurora-is-near/engine-go/xcc"
)

type fakeEnv struct{}

func (fakeEnv) PredecessorAccountID() string { return "alice.near" }
func (fakeEnv) SignerAccountID() string      { return "alice.near" }
func (fakeEnv) CurrentAccountID() string     { return "aurora" }
func (fakeEnv) BlockHeight() uint64          { return 1 }
func (fakeEnv) BlockTimestampNs() uint64     { return 1 }
func (fakeEnv) AttachedDeposit() [32]byte    { return [32]byte{} }
func (fakeEnv) RandomSeed() [32]byte         { return [32]byte{} }
func (fakeEnv) PrepaidGas() uint64           { return 0 }

type recordedPromise struct {
	accountID, method string
	args              []byte
	attached          [16]byte
	gas               uint64
}

type fakePromises struct {
	created []recordedPromise
	anded   [][]uint64
}

func (f *fakePromises) Create(accountID, method string, args []byte, attachedBalance [16]byte, gas uint64) (uint64, error) {
	f.created = append(f.created, recordedPromise{accountID, method, args, attachedBalance, gas})
	return uint64(len(f.created) - 1), nil
}

func (f *fakePromises) Then(base uint64, accountID, method string, args []byte, attachedBalance [16]byte, gas uint64) (uint64, error) {
	return f.Create(accountID, method, args, attachedBalance, gas)
}

func (f *fakePromises) And(ids []uint64) (uint64, error) {
	f.anded = append(f.anded, ids)
	return f.Create("and", "and", nil, [16]byte{}, 0)
}

func (f *fakePromises) Return(uint64)                        {}
func (f *fakePromises) PromiseResultsCount() uint32           { return 0 }
func (f *fakePromises) PromiseResult(uint32) (host.PromiseResult, error) {
	return host.PromiseResult{}, nil
}

func newExecutionContext(t *testing.T) (*ecommon.ExecutionContext, *fakePromises) {
	t.Helper()
	ctx := context.Background()
	keeper := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	sdb := evmcore.NewStateDB(ctx, keeper, evmcore.TxConfig{}, log.NewNopLogger())
	promises := &fakePromises{}
	ec := &ecommon.ExecutionContext{
		State:    keeper,
		StateDB:  sdb,
		Env:      fakeEnv{},
		Promises: promises,
		Caller:   common.HexToAddress("0xaaaa"),
	}
	return ec, promises
}

func TestRouter_ExecuteRequiresInitialisation(t *testing.T) {
	ctx := context.Background()
	ec, _ := newExecutionContext(t)
	keeper := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	router := xcc.NewKeeper(keeper)

	_, err := router.Execute(ctx, ec, ec.Caller, xcc.NewCreatePromiseArgs(xcc.PromiseCreateArgs{
		TargetAccountID: "counter.near",
		Method:          "increment",
		AttachedBalance: big.NewInt(0),
	}))
	require.ErrorIs(t, err, xcc.ErrRouterNotInitialised)
}

func TestRouter_ExecuteDispatchesImmediately(t *testing.T) {
	ctx := context.Background()
	ec, promises := newExecutionContext(t)
	keeper := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	router := xcc.NewKeeper(keeper)

	require.NoError(t, router.EnsureInitialised(ctx, ec.Caller))

	id, err := router.Execute(ctx, ec, ec.Caller, xcc.NewCreatePromiseArgs(xcc.PromiseCreateArgs{
		TargetAccountID: "counter.near",
		Method:          "increment",
		Args:            []byte(`{}`),
		AttachedBalance: big.NewInt(0),
		AttachedGas:     5_000_000_000_000,
	}))
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	require.Len(t, promises.created, 1)
	require.Equal(t, "counter.near", promises.created[0].accountID)
	require.Equal(t, "increment", promises.created[0].method)
}

func TestRouter_ScheduleThenExecuteScheduled(t *testing.T) {
	ctx := context.Background()
	ec, promises := newExecutionContext(t)
	keeper := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	router := xcc.NewKeeper(keeper)
	require.NoError(t, router.EnsureInitialised(ctx, ec.Caller))

	nonce, err := router.Schedule(ctx, ec.Caller, xcc.NewCreatePromiseArgs(xcc.PromiseCreateArgs{
		TargetAccountID: "counter.near",
		Method:          "increment",
		AttachedBalance: big.NewInt(0),
		AttachedGas:     1,
	}))
	require.NoError(t, err)
	require.Empty(t, promises.created)

	id, err := router.ExecuteScheduled(ctx, ec, ec.Caller, nonce)
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	require.Len(t, promises.created, 1)

	_, err = router.ExecuteScheduled(ctx, ec, ec.Caller, nonce)
	require.ErrorIs(t, err, xcc.ErrPromiseNotFound)
}

func TestRouter_AndPromise(t *testing.T) {
	ctx := context.Background()
	ec, promises := newExecutionContext(t)
	keeper := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	router := xcc.NewKeeper(keeper)
	require.NoError(t, router.EnsureInitialised(ctx, ec.Caller))

	leaf := func(acc string) xcc.PromiseCreateArgs {
		return xcc.PromiseCreateArgs{TargetAccountID: acc, Method: "m", AttachedBalance: big.NewInt(0), AttachedGas: 1}
	}
	tree := xcc.NewAndPromise([]xcc.NearPromise{
		xcc.NewSimplePromise(leaf("x.near")),
		xcc.NewSimplePromise(leaf("y.near")),
	})

	_, err := router.Execute(ctx, ec, ec.Caller, xcc.NewRecursivePromiseArgs(tree))
	require.NoError(t, err)
	require.Len(t, promises.created, 3) // x, y, then the synthetic "and" bookkeeping promise
	require.Len(t, promises.anded, 1)
	require.ElementsMatch(t, []uint64{0, 1}, promises.anded[0])
}
