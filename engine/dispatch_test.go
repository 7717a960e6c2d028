package engine_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/engine"
	"github.com/aurora-is-near/engine-go/replay"
)

func TestDispatch_DeployErc20Token(t *testing.T) {
	ctx := context.Background()
	backend, scope, _ := newEngineFixture(t)

	o := engine.NewOrchestrator(log.NewNopLogger())
	payload, err := json.Marshal(map[string]any{
		"nep141_account_id": "token.near",
		"name":              "Token",
		"symbol":            "TKN",
		"decimals":          18,
	})
	require.NoError(t, err)

	out, err := o.Dispatch(ctx, backend, scope, replay.TransactionMessage{
		Kind:  replay.KindDeployErc20,
		Input: payload,
	})
	require.NoError(t, err)
	require.Len(t, out, 20)
	require.NotEqual(t, common.Address{}, common.BytesToAddress(out))
}

func TestDispatch_RegisterRelayer(t *testing.T) {
	ctx := context.Background()
	backend, scope, s := newEngineFixture(t)

	relayerAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	payload, err := json.Marshal(map[string]any{
		"predecessor_account_id": "relayer.near",
		"from":                   relayerAddr,
	})
	require.NoError(t, err)

	o := engine.NewOrchestrator(log.NewNopLogger())
	_, err = o.Dispatch(ctx, backend, scope, replay.TransactionMessage{
		Kind:  replay.KindRegisterRelayer,
		Input: payload,
	})
	require.NoError(t, err)

	got, err := s.RelayerAddress(ctx, "relayer.near")
	require.NoError(t, err)
	require.Equal(t, relayerAddr, got)
}

func TestDispatch_Submit(t *testing.T) {
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
		Value:    big.NewInt(500),
		Gas:      100_000,
		GasPrice: big.NewInt(0),
	})
	signer := types.LatestSignerForChainID(big.NewInt(testChainID))
	signed, err := types.SignTx(tx, signer, priv)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"predecessor_account_id": "relayer.near",
		"height":                 1,
		"gas_limit":               30_000_000,
		"raw":                     raw,
	})
	require.NoError(t, err)

	o := engine.NewOrchestrator(log.NewNopLogger())
	out, err := o.Dispatch(ctx, backend, scope, replay.TransactionMessage{
		Kind:  replay.KindSubmit,
		Input: payload,
	})
	require.NoError(t, err)

	res, err := engine.DecodeSubmitResult(out)
	require.NoError(t, err)
	require.False(t, res.Failed())
}
