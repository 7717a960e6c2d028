package engine_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/admin"
	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/engine"
	"github.com/aurora-is-near/engine-go/kv/memkv"
	"github.com/aurora-is-near/engine-go/silo"
	"github.com/aurora-is-near/engine-go/state"
)

const testChainID = 1313161554

func newEngineFixture(t *testing.T) (*memkv.Store, *diff.Scope, *state.Keeper) {
	t.Helper()
	backend := memkv.New()
	scope := diff.NewScope()
	s := state.NewKeeper(backend, scope, log.NewNopLogger())
	require.NoError(t, admin.NewKeeper(s).New(context.Background(), big.NewInt(testChainID), "owner.near", "prover.near", 10))
	return backend, scope, s
}

func testBlockConfig() engine.BlockConfig {
	return engine.BlockConfig{
		Height:   1,
		Time:     1,
		Coinbase: common.Address{},
		GasLimit: 30_000_000,
		BaseFee:  big.NewInt(0),
		GetHash:  func(uint64) common.Hash { return common.Hash{} },
	}
}

func TestSubmit_ValueTransfer(t *testing.T) {
	ctx := context.Background()
	backend, scope, s := newEngineFixture(t)

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(priv.PublicKey)
	s.SetBalance(ctx, sender, uint256.NewInt(1_000_000_000))

	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &recipient,
		Value:    big.NewInt(1000),
		Gas:      100_000,
		GasPrice: big.NewInt(0),
	})
	signer := types.LatestSignerForChainID(big.NewInt(testChainID))
	signed, err := types.SignTx(tx, signer, priv)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	o := engine.NewOrchestrator(log.NewNopLogger())
	env := engine.StaticEnvironment{Current: "aurora", Height: 1}
	promises := &engine.RecordingPromises{}

	res, err := o.Submit(ctx, backend, scope, env, promises, testBlockConfig(), engine.SubmitInput{
		Raw:                  raw,
		PredecessorAccountID: "relayer.near",
	})
	require.NoError(t, err)
	require.False(t, res.Failed())

	recipientKeeper := state.NewKeeper(backend, scope, log.NewNopLogger())
	bal, err := recipientKeeper.GetBalance(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), bal.Uint64())

	nonce, err := recipientKeeper.GetNonce(ctx, sender)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

// TestSubmit_CreditsRelayerGasFee mirrors spec.md §10's concrete scenario 1:
// A has 10^6 wei, sends 123 wei to B at gas_price=10, gas_limit=21000 (a
// plain transfer consumes exactly the intrinsic 21000, so there is no
// refund) — post-state must show A debited the full value+gas, B credited
// the transferred value, and the relayer behind PredecessorAccountID
// credited gas_used*gas_price, matching P3 fee conservation.
func TestSubmit_CreditsRelayerGasFee(t *testing.T) {
	ctx := context.Background()
	backend, scope, s := newEngineFixture(t)

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(priv.PublicKey)
	s.SetBalance(ctx, sender, uint256.NewInt(1_000_000))

	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &recipient,
		Value:    big.NewInt(123),
		Gas:      21_000,
		GasPrice: big.NewInt(10),
	})
	signer := types.LatestSignerForChainID(big.NewInt(testChainID))
	signed, err := types.SignTx(tx, signer, priv)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	o := engine.NewOrchestrator(log.NewNopLogger())
	env := engine.StaticEnvironment{Current: "aurora", Height: 1}
	promises := &engine.RecordingPromises{}

	res, err := o.Submit(ctx, backend, scope, env, promises, testBlockConfig(), engine.SubmitInput{
		Raw:                  raw,
		PredecessorAccountID: "relayer.near",
	})
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Equal(t, uint64(21_000), res.GasUsed)

	view := state.NewKeeper(backend, scope, log.NewNopLogger())

	senderBal, err := view.GetBalance(ctx, sender)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000-123-210_000), senderBal.Uint64())

	recipientBal, err := view.GetBalance(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, uint64(123), recipientBal.Uint64())

	relayerAddr, err := view.RelayerAddress(ctx, "relayer.near")
	require.NoError(t, err)
	relayerBal, err := view.GetBalance(ctx, relayerAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(210_000), relayerBal.Uint64())
}

// TestSubmit_GatesCreateByDeployWhitelist covers spec.md §4.6 step 4's
// CREATE-specific gate: in silo mode a deploying transaction (tx.To ==
// nil) needs the predecessor in the Admin whitelist and the sender in the
// EvmAdmin whitelist, a stricter and separate check from CheckSubmit's
// Account/Address whitelist.
func TestSubmit_GatesCreateByDeployWhitelist(t *testing.T) {
	ctx := context.Background()
	backend, scope, s := newEngineFixture(t)

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(priv.PublicKey)
	s.SetBalance(ctx, sender, uint256.NewInt(1_000_000_000))

	siloKeeper := silo.NewKeeper(s)
	require.NoError(t, siloKeeper.SetParams(ctx, &silo.Params{FixedGas: 21_000}))
	siloKeeper.Add(ctx, silo.KindAccount, []byte("relayer.near"))
	siloKeeper.Add(ctx, silo.KindAddress, sender[:])

	newCreateTx := func(nonce uint64) []byte {
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       nil,
			Value:    big.NewInt(0),
			Gas:      100_000,
			GasPrice: big.NewInt(0),
			Data:     []byte{0x60, 0x00, 0x60, 0x00, 0xf3},
		})
		signer := types.LatestSignerForChainID(big.NewInt(testChainID))
		signed, err := types.SignTx(tx, signer, priv)
		require.NoError(t, err)
		raw, err := signed.MarshalBinary()
		require.NoError(t, err)
		return raw
	}

	o := engine.NewOrchestrator(log.NewNopLogger())
	env := engine.StaticEnvironment{Current: "aurora", Height: 1}

	_, err = o.Submit(ctx, backend, scope, env, &engine.RecordingPromises{}, testBlockConfig(), engine.SubmitInput{
		Raw:                  newCreateTx(0),
		PredecessorAccountID: "relayer.near",
	})
	require.Error(t, err)

	siloKeeper.Add(ctx, silo.KindAdmin, []byte("relayer.near"))
	siloKeeper.Add(ctx, silo.KindEvmAdmin, sender[:])

	res, err := o.Submit(ctx, backend, scope, env, &engine.RecordingPromises{}, testBlockConfig(), engine.SubmitInput{
		Raw:                  newCreateTx(0),
		PredecessorAccountID: "relayer.near",
	})
	require.NoError(t, err)
	require.False(t, res.Failed())
}

func TestSubmit_RejectsWrongChainID(t *testing.T) {
	ctx := context.Background()
	backend, scope, s := newEngineFixture(t)

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(priv.PublicKey)
	s.SetBalance(ctx, sender, uint256.NewInt(1_000_000_000))

	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &recipient,
		Value:    big.NewInt(1000),
		Gas:      100_000,
		GasPrice: big.NewInt(0),
	})
	wrongSigner := types.LatestSignerForChainID(big.NewInt(999))
	signed, err := types.SignTx(tx, wrongSigner, priv)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	o := engine.NewOrchestrator(log.NewNopLogger())
	env := engine.StaticEnvironment{Current: "aurora", Height: 1}
	_, err = o.Submit(ctx, backend, scope, env, &engine.RecordingPromises{}, testBlockConfig(), engine.SubmitInput{
		Raw:                  raw,
		PredecessorAccountID: "relayer.near",
	})
	require.Error(t, err)
}

func TestSubmit_RejectsIncorrectNonce(t *testing.T) {
	ctx := context.Background()
	backend, scope, s := newEngineFixture(t)

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(priv.PublicKey)
	s.SetBalance(ctx, sender, uint256.NewInt(1_000_000_000))
	s.SetNonce(ctx, sender, 5)

	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &recipient,
		Value:    big.NewInt(1000),
		Gas:      100_000,
		GasPrice: big.NewInt(0),
	})
	signer := types.LatestSignerForChainID(big.NewInt(testChainID))
	signed, err := types.SignTx(tx, signer, priv)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	o := engine.NewOrchestrator(log.NewNopLogger())
	env := engine.StaticEnvironment{Current: "aurora", Height: 1}
	_, err = o.Submit(ctx, backend, scope, env, &engine.RecordingPromises{}, testBlockConfig(), engine.SubmitInput{
		Raw:                  raw,
		PredecessorAccountID: "relayer.near",
	})
	require.Error(t, err)
}
