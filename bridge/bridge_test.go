package bridge_test

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/bridge"
	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/evmcore"
	"github.com/aurora-is-near/engine-go/host"
	"github.com/aurora-is-near/engine-go/kv/memkv"
	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
	"github.com/aurora-is-near/engine-go/state"
)

// fakeEnv's Predecessor and Current deliberately differ so tests built on
// it exercise the registered-ERC-20 ft_on_transfer branch; selfCallEnv below
// is the self-call variant for the bridged-native branch.
type fakeEnv struct{}

func (fakeEnv) PredecessorAccountID() string { return "alice.near" }
func (fakeEnv) SignerAccountID() string      { return "alice.near" }
func (fakeEnv) CurrentAccountID() string     { return "aurora" }
func (fakeEnv) BlockHeight() uint64          { return 1 }
func (fakeEnv) BlockTimestampNs() uint64     { return 1 }
func (fakeEnv) AttachedDeposit() [32]byte    { return [32]byte{} }
func (fakeEnv) RandomSeed() [32]byte         { return [32]byte{} }
func (fakeEnv) PrepaidGas() uint64           { return 0 }

// selfCallEnv reports an equal predecessor/current account id, the signal
// ft_on_transfer uses to recognize a bridged-native deposit rather than an
// arbitrary NEP-141 token credit.
type selfCallEnv struct{ fakeEnv }

func (selfCallEnv) PredecessorAccountID() string { return "aurora" }
func (selfCallEnv) CurrentAccountID() string     { return "aurora" }

func newExecutionContext(t *testing.T) (*state.Keeper, *ecommon.ExecutionContext) {
	t.Helper()
	return newExecutionContextWithEnv(t, fakeEnv{})
}

func newExecutionContextWithEnv(t *testing.T, env host.Environment) (*state.Keeper, *ecommon.ExecutionContext) {
	t.Helper()
	ctx := context.Background()
	keeper := state.NewKeeper(memkv.New(), diff.NewScope(), log.NewNopLogger())
	sdb := evmcore.NewStateDB(ctx, keeper, evmcore.TxConfig{}, log.NewNopLogger())
	ec := &ecommon.ExecutionContext{
		State:   keeper,
		StateDB: sdb,
		Env:     env,
		Caller:  common.HexToAddress("0xaaaa"),
	}
	return keeper, ec
}

func TestRegisterToken_Idempotent(t *testing.T) {
	ctx := context.Background()
	keeper, _ := newExecutionContext(t)
	reg := bridge.NewKeeper(keeper)

	addr1, err := reg.RegisterToken(ctx, "usdc.near", "USD Coin", "USDC", 6)
	require.NoError(t, err)

	addr2, err := reg.RegisterToken(ctx, "usdc.near", "ignored", "ignored", 0)
	require.NoError(t, err)
	require.Equal(t, addr1, addr2)

	meta, ok, err := reg.LookupByErc20(ctx, addr1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "usdc.near", meta.Nep141AccountID)
	require.Equal(t, "USD Coin", meta.Name)

	tokens, err := reg.ListTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"usdc.near"}, tokens)
}

// ft_on_transfer mints the bridged ERC-20 balance, and the matching
// exit_to_near-style Burn restores the pre-mint balance and total supply —
// the bridge roundtrip invariant.
func TestBridgeRoundtrip(t *testing.T) {
	ctx := context.Background()
	keeper, ec := newExecutionContext(t)
	reg := bridge.NewKeeper(keeper)

	erc20Addr, err := reg.RegisterToken(ctx, "usdc.near", "USD Coin", "USDC", 6)
	require.NoError(t, err)

	recipient := common.HexToAddress("0xbbbb")
	amount := big.NewInt(1_000_000)

	refund, err := reg.FtOnTransfer(ctx, ec, "usdc.near", amount, recipient.Hex())
	require.NoError(t, err)
	require.Equal(t, int64(0), refund.Int64())

	meta, _, err := reg.LookupByNep141(ctx, "usdc.near")
	require.NoError(t, err)
	p := bridge.NewPrecompile(meta)
	require.Equal(t, amount, p.BalanceOf(ec, recipient))
	require.Equal(t, amount, p.TotalSupply(ec))

	nep141, err := reg.Burn(ec, erc20Addr, recipient, amount)
	require.NoError(t, err)
	require.Equal(t, "usdc.near", nep141)

	require.Equal(t, int64(0), p.BalanceOf(ec, recipient).Int64())
	require.Equal(t, int64(0), p.TotalSupply(ec).Int64())
}

func TestFtOnTransfer_UnregisteredTokenRefundsInFull(t *testing.T) {
	ctx := context.Background()
	keeper, ec := newExecutionContext(t)
	reg := bridge.NewKeeper(keeper)

	amount := big.NewInt(42)
	refund, err := reg.FtOnTransfer(ctx, ec, "unknown.near", amount, common.HexToAddress("0xcc").Hex())
	require.NoError(t, err)
	require.Equal(t, amount, refund)
}

// TestFtOnTransfer_SelfCallMintsNativeAndCreditsRelayer exercises spec.md
// §4.7's bridged-native branch: predecessor == current signals the NEP-141
// deposit being reported is itself wrapped native token, so amount (minus
// the packed-in fee) is minted as native balance rather than an ERC-20
// credit, and the fee lands on the relayer address behind the packed
// relayer id.
func TestFtOnTransfer_SelfCallMintsNativeAndCreditsRelayer(t *testing.T) {
	ctx := context.Background()
	keeper, ec := newExecutionContextWithEnv(t, selfCallEnv{})
	reg := bridge.NewKeeper(keeper)

	recipient := common.HexToAddress("0xdddd")
	fee := big.NewInt(5)
	amount := big.NewInt(1005)
	msg := "relayer.near:5" + strings.TrimPrefix(recipient.Hex(), "0x")

	refund, err := reg.FtOnTransfer(ctx, ec, "wrap.near", amount, msg)
	require.NoError(t, err)
	require.Equal(t, int64(0), refund.Int64())

	recipientBal, err := keeper.GetBalance(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, amount.Uint64()-fee.Uint64(), recipientBal.Uint64())

	relayerAddr, err := keeper.RelayerAddress(ctx, "relayer.near")
	require.NoError(t, err)
	relayerBal, err := keeper.GetBalance(ctx, relayerAddr)
	require.NoError(t, err)
	require.Equal(t, fee.Uint64(), relayerBal.Uint64())
}

// TestFtOnTransfer_FallbackErc20Address exercises the "not whitelisted"
// alternative spec.md §4.7 allows: when the NEP-141 account has no
// registered token, a configured fallback ERC-20 address is minted against
// instead of refunding in full.
func TestFtOnTransfer_FallbackErc20Address(t *testing.T) {
	ctx := context.Background()
	keeper, ec := newExecutionContext(t)
	reg := bridge.NewKeeper(keeper)

	fallback := common.HexToAddress("0xeeee")
	require.NoError(t, keeper.InitEngineState(ctx, state.EngineState{
		Erc20FallbackAddress: fallback,
		HasErc20Fallback:     true,
	}))

	recipient := common.HexToAddress("0xbbbb")
	amount := big.NewInt(42)

	refund, err := reg.FtOnTransfer(ctx, ec, "unknown.near", amount, recipient.Hex())
	require.NoError(t, err)
	require.Equal(t, int64(0), refund.Int64())

	p := bridge.NewPrecompile(bridge.TokenMetadata{Erc20Address: fallback})
	require.Equal(t, amount, p.BalanceOf(ec, recipient))
}

var _ host.Environment = fakeEnv{}
var _ host.Environment = selfCallEnv{}
