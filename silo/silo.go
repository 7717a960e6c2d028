// Package silo implements spec.md §4.11: optional allow-lists for
// submitters and deployers plus a fixed per-transaction gas charge. State-
// resident sets indexed by kind {Admin, EvmAdmin, Account, Address}.
// Grounded on x/erc20/keeper/params.go's params-as-keeper-method idiom and
// the exact gating rule confirmed against
// original_source/engine-tests/src/tests/silo.rs.
package silo

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aurora-is-near/engine-go/hosterror"
	"github.com/aurora-is-near/engine-go/state"
)

// Kind discriminates the four whitelist sets spec.md §4.11 names.
type Kind byte

const (
	KindAdmin    Kind = 0 // predecessor ids allowed to deploy contracts
	KindEvmAdmin Kind = 1 // EVM addresses allowed to deploy contracts
	KindAccount  Kind = 2 // predecessor ids allowed to submit
	KindAddress  Kind = 3 // EVM addresses allowed to submit
)

// Keeper wraps a state.Keeper with the whitelist accessor methods.
type Keeper struct {
	state *state.Keeper
}

func NewKeeper(s *state.Keeper) *Keeper { return &Keeper{state: s} }

func setKey(kind Kind, entry []byte) []byte {
	return state.Key(state.PrefixWhitelist, []byte{byte(kind)}, entry)
}

// Add adds entry (a raw account-id string or a 20-byte address) to the
// given whitelist kind. Batch add/remove calls (add_entry_to_whitelist_batch)
// are a loop over Add/Remove — the atomicity spec.md §4.11 requires comes
// for free because every whitelist write lands in the same diff.Scope the
// engine orchestrator commits or discards as one unit.
func (k *Keeper) Add(_ context.Context, kind Kind, entry []byte) {
	k.state.WriteRaw(setKey(kind, entry), []byte{1})
}

func (k *Keeper) Remove(_ context.Context, kind Kind, entry []byte) {
	k.state.RemoveRaw(setKey(kind, entry))
}

func (k *Keeper) Contains(ctx context.Context, kind Kind, entry []byte) (bool, error) {
	return k.state.HasRaw(ctx, setKey(kind, entry))
}

// CheckSubmit enforces step 4 of the submit pipeline (spec.md §4.6): when
// silo mode is active, predecessor must be in the Account whitelist AND
// sender must be in the Address whitelist.
func (k *Keeper) CheckSubmit(ctx context.Context, active bool, predecessorAccountID string, sender common.Address) error {
	if !active {
		return nil
	}
	okAccount, err := k.Contains(ctx, KindAccount, []byte(predecessorAccountID))
	if err != nil {
		return err
	}
	okAddress, err := k.Contains(ctx, KindAddress, sender[:])
	if err != nil {
		return err
	}
	if !okAccount || !okAddress {
		return hosterror.New(hosterror.CodeNotAllowed)
	}
	return nil
}

// CheckDeploy enforces the CREATE-specific gate: predecessor must be in the
// Admin whitelist AND sender must be in the EvmAdmin whitelist.
func (k *Keeper) CheckDeploy(ctx context.Context, active bool, predecessorAccountID string, sender common.Address) error {
	if !active {
		return nil
	}
	okAdmin, err := k.Contains(ctx, KindAdmin, []byte(predecessorAccountID))
	if err != nil {
		return err
	}
	okEvmAdmin, err := k.Contains(ctx, KindEvmAdmin, sender[:])
	if err != nil {
		return err
	}
	if !okAdmin || !okEvmAdmin {
		return hosterror.New(hosterror.CodeNotAllowed)
	}
	return nil
}

// Params is the optional silo configuration of spec.md §3's EngineState
// (fixed_gas, erc20_fallback_address). set_silo_params(Some(...)) enables
// silo mode; set_silo_params(None) disables it.
type Params struct {
	FixedGas             uint64
	Erc20FallbackAddress common.Address
	HasErc20Fallback     bool
}

// SetParams enables silo mode with the given params, or disables it when
// params is nil.
func (k *Keeper) SetParams(ctx context.Context, params *Params) error {
	es, ok, err := k.state.GetEngineState(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return hosterror.New(hosterror.CodeNotInitialized)
	}
	if params == nil {
		es.HasFixedGas = false
		es.FixedGas = 0
		es.HasErc20Fallback = false
		es.Erc20FallbackAddress = common.Address{}
	} else {
		es.HasFixedGas = true
		es.FixedGas = params.FixedGas
		es.HasErc20Fallback = params.HasErc20Fallback
		es.Erc20FallbackAddress = params.Erc20FallbackAddress
	}
	k.state.SetEngineState(ctx, es)
	return nil
}
