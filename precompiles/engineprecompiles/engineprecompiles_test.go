package engineprecompiles_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/evmcore"
	"github.com/aurora-is-near/engine-go/host"
	"github.com/aurora-is-near/engine-go/kv/memkv"
	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
	"github.com/aurora-is-near/engine-go/precompiles/engineprecompiles"
	"github.com/aurora-is-near/engine-go/state"
)

type fakeEnv struct {
	predecessor string
	current     string
	seed        [32]byte
	prepaidGas  uint64
}

func (f fakeEnv) PredecessorAccountID() string   { return f.predecessor }
func (f fakeEnv) SignerAccountID() string        { return f.predecessor }
func (f fakeEnv) CurrentAccountID() string       { return f.current }
func (f fakeEnv) BlockHeight() uint64            { return 1 }
func (f fakeEnv) BlockTimestampNs() uint64       { return 1 }
func (f fakeEnv) AttachedDeposit() [32]byte      { return [32]byte{} }
func (f fakeEnv) RandomSeed() [32]byte           { return f.seed }
func (f fakeEnv) PrepaidGas() uint64             { return f.prepaidGas }

type recordedPromise struct {
	accountID, method string
	args              []byte
	attached          [16]byte
	gas               uint64
}

type fakePromises struct {
	created []recordedPromise
}

func (f *fakePromises) Create(accountID, method string, args []byte, attachedBalance [16]byte, gas uint64) (uint64, error) {
	f.created = append(f.created, recordedPromise{accountID, method, args, attachedBalance, gas})
	return uint64(len(f.created) - 1), nil
}
func (f *fakePromises) Then(base uint64, accountID, method string, args []byte, attachedBalance [16]byte, gas uint64) (uint64, error) {
	return f.Create(accountID, method, args, attachedBalance, gas)
}
func (f *fakePromises) And(ids []uint64) (uint64, error)             { return 0, nil }
func (f *fakePromises) Return(id uint64)                             {}
func (f *fakePromises) PromiseResultsCount() uint32                  { return 0 }
func (f *fakePromises) PromiseResult(i uint32) (host.PromiseResult, error) {
	return host.PromiseResult{}, nil
}

func newExecutionContext(t *testing.T) (*ecommon.ExecutionContext, *fakePromises) {
	t.Helper()
	ctx := context.Background()
	keeper := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	sdb := evmcore.NewStateDB(ctx, keeper, evmcore.TxConfig{}, log.NewNopLogger())
	promises := &fakePromises{}
	env := fakeEnv{predecessor: "alice.near", current: "aurora", prepaidGas: 300_000_000_000_000}
	env.seed[0] = 0xAB
	ec := &ecommon.ExecutionContext{
		State:    keeper,
		StateDB:  sdb,
		Env:      env,
		Promises: promises,
		Caller:   common.HexToAddress("0x1"),
	}
	return ec, promises
}

func TestAccountIDPrecompiles(t *testing.T) {
	ec, _ := newExecutionContext(t)

	predecessor := engineprecompiles.NewPredecessorAccountID(ec)
	out, err := predecessor.Run(nil)
	require.NoError(t, err)
	require.Equal(t, "alice.near", string(out))

	current := engineprecompiles.NewCurrentAccountID(ec)
	out, err = current.Run(nil)
	require.NoError(t, err)
	require.Equal(t, "aurora", string(out))
}

func TestRandomSeedAndPrepaidGas(t *testing.T) {
	ec, _ := newExecutionContext(t)

	seed := engineprecompiles.NewRandomSeed(ec)
	out, err := seed.Run(nil)
	require.NoError(t, err)
	require.Len(t, out, 32)
	require.Equal(t, byte(0xAB), out[0])

	gas := engineprecompiles.NewPrepaidGas(ec)
	out, err = gas.Run(nil)
	require.NoError(t, err)
	require.Len(t, out, 8)
	require.Equal(t, uint64(300_000_000_000_000), bigEndianUint64(out))
}

func bigEndianUint64(b []byte) uint64 {
	var v uint64
	for _, bb := range b {
		v = v<<8 | uint64(bb)
	}
	return v
}

// A native exit_to_near burns the value the EVM already credited to the
// precompile's own address on this payable call, and schedules a
// ft_transfer promise to the recipient.
func TestExitToNear_Native(t *testing.T) {
	ec, promises := newExecutionContext(t)

	exit := engineprecompiles.NewExitToNear(ec, nil)
	ec.StateDB.AddBalance(exit.Address(), uint256.NewInt(1_000), 0)

	input := append([]byte{0}, []byte("bob.near")...)
	_, err := exit.Run(input)
	require.NoError(t, err)

	require.Equal(t, uint64(0), ec.StateDB.GetBalance(exit.Address()).Uint64())
	require.Len(t, promises.created, 1)
	require.Equal(t, "ft_transfer", promises.created[0].method)
	require.Equal(t, "aurora", promises.created[0].accountID)
	require.Contains(t, string(promises.created[0].args), "bob.near")
	require.Len(t, ec.StateDB.Logs(), 1)
}

func TestExitToEthereum(t *testing.T) {
	ec, promises := newExecutionContext(t)

	exit := engineprecompiles.NewExitToEthereum(ec)
	ec.StateDB.AddBalance(exit.Address(), uint256.NewInt(500), 0)

	recipient := common.HexToAddress("0xdeadbeef00000000000000000000000000dead")
	_, err := exit.Run(recipient.Bytes())
	require.NoError(t, err)

	require.Equal(t, uint64(0), ec.StateDB.GetBalance(exit.Address()).Uint64())
	require.Len(t, promises.created, 1)
	require.Equal(t, "withdraw", promises.created[0].method)
	require.Len(t, ec.StateDB.Logs(), 1)
}

func TestExitToNear_ERC20WithoutBurnerRejected(t *testing.T) {
	ec, _ := newExecutionContext(t)

	exit := engineprecompiles.NewExitToNear(ec, nil)
	input := append([]byte{1}, make([]byte, 20+32)...)
	_, err := exit.Run(input)
	require.Error(t, err)
}
