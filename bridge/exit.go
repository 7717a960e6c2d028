package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
)

// ErrTokenNotRegistered is returned when an operation names an NEP-141 or
// ERC-20 address this bridge has never seen a RegisterToken call for.
var ErrTokenNotRegistered = errors.New("bridge: token not registered")

// Burn implements engineprecompiles.ERC20Burner: the exit_to_near /
// exit_to_eth precompiles call this when the caller's token_flag selects
// the ERC-20 path (spec.md §4.5), burning amount from the caller's balance
// of the named bridged token and returning the NEP-141 account id the host
// promise should target.
func (k *Keeper) Burn(ec *ecommon.ExecutionContext, token common.Address, from common.Address, amount *big.Int) (string, error) {
	meta, ok, err := k.LookupByErc20(context.Background(), token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrTokenNotRegistered
	}
	if err := NewPrecompile(meta).Burn(ec, from, amount); err != nil {
		return "", err
	}
	return meta.Nep141AccountID, nil
}

// parseBridgedNativeMsg splits a self-call ft_on_transfer msg of the form
// "<relayer_id>:<hex-fee><hex-address>" — the fee and recipient address are
// concatenated hex with no separator, the last 40 hex digits (20 bytes)
// being the address and everything before that the fee, matching the
// original bridge's NEP-141-deposit-for-native encoding.
func parseBridgedNativeMsg(msg string) (relayerID string, fee *big.Int, recipient common.Address, ok bool) {
	idx := strings.IndexByte(msg, ':')
	if idx < 0 {
		return "", nil, common.Address{}, false
	}
	relayerID = msg[:idx]
	rest := strings.TrimPrefix(msg[idx+1:], "0x")
	if len(rest) < 2*common.AddressLength {
		return "", nil, common.Address{}, false
	}
	feeHex := rest[:len(rest)-2*common.AddressLength]
	addrHex := rest[len(rest)-2*common.AddressLength:]
	addrBytes, err := hex.DecodeString(addrHex)
	if err != nil {
		return "", nil, common.Address{}, false
	}
	fee = big.NewInt(0)
	if feeHex != "" {
		f, ok2 := new(big.Int).SetString(feeHex, 16)
		if !ok2 {
			return "", nil, common.Address{}, false
		}
		fee = f
	}
	return relayerID, fee, common.BytesToAddress(addrBytes), true
}

// FtOnTransfer implements spec.md §4.7's ft_on_transfer minting logic.
//
// When predecessor and current account id coincide (a self-call, signalling
// the deposit is the bridge's own wrapped-native leg rather than an
// arbitrary NEP-141), msg carries the relayer id, fee and destination
// address packed together; the amount minus the fee is minted as native
// balance and the fee is credited to the relayer behind that id, the same
// state.Keeper.RelayerAddress lookup Submit's gas-fee-credit step uses.
//
// Otherwise amount is a bridged ERC-20 deposit: msg carries the destination
// EVM address (hex-encoded, with or without the 0x prefix), and it is
// minted against nep141AccountID's registered ERC-20, or — if the NEP-141
// account has no registered token — the engine's configured fallback ERC-20
// address, when one is set.
//
// Both branches return the portion of amount to refund the sender (zero on
// success, the full amount if the message or destination is invalid) — the
// idempotent refund-on-failure contract spec.md §8's P8 bridge-roundtrip
// invariant depends on.
func (k *Keeper) FtOnTransfer(ctx context.Context, ec *ecommon.ExecutionContext, nep141AccountID string, amount *big.Int, msg string) (*big.Int, error) {
	if ec.Env.PredecessorAccountID() == ec.Env.CurrentAccountID() {
		relayerID, fee, recipient, ok := parseBridgedNativeMsg(msg)
		if !ok {
			return amount, nil
		}
		mintAmount := new(big.Int).Sub(amount, fee)
		if mintAmount.Sign() < 0 {
			return amount, nil
		}

		bal, err := k.state.GetBalance(ctx, recipient)
		if err != nil {
			return nil, err
		}
		k.state.SetBalance(ctx, recipient, new(uint256.Int).Add(bal, uint256.MustFromBig(mintAmount)))

		if fee.Sign() > 0 {
			relayerAddr, err := k.state.RelayerAddress(ctx, relayerID)
			if err != nil {
				return nil, err
			}
			relayerBal, err := k.state.GetBalance(ctx, relayerAddr)
			if err != nil {
				return nil, err
			}
			k.state.SetBalance(ctx, relayerAddr, new(uint256.Int).Add(relayerBal, uint256.MustFromBig(fee)))
		}
		return big.NewInt(0), nil
	}

	meta, ok, err := k.LookupByNep141(ctx, nep141AccountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		es, hasState, err := k.state.GetEngineState(ctx)
		if err != nil {
			return nil, err
		}
		if !hasState || !es.HasErc20Fallback {
			return amount, nil
		}
		meta = TokenMetadata{Erc20Address: es.Erc20FallbackAddress}
	}
	if !common.IsHexAddress(msg) {
		return amount, nil
	}
	recipient := common.HexToAddress(msg)
	NewPrecompile(meta).Mint(ec, recipient, amount)
	return big.NewInt(0), nil
}

// RefundOnError re-credits amount to recipient after a scheduled
// ft_transfer/withdraw promise from ExitToNear/ExitToEthereum failed on the
// host side. The host's promise callback contract guarantees this runs at
// most once per exit, so no additional idempotency bookkeeping is kept
// here.
func (k *Keeper) RefundOnError(ec *ecommon.ExecutionContext, token common.Address, recipient common.Address, amount *big.Int) error {
	meta, ok, err := k.LookupByErc20(context.Background(), token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenNotRegistered
	}
	NewPrecompile(meta).Mint(ec, recipient, amount)
	return nil
}
