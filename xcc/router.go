package xcc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
	"github.com/aurora-is-near/engine-go/state"
)

// ErrRouterNotInitialised is returned by operations that need an
// established router sub-account (Execute/Schedule/UnwrapAndRefundStorage) when
// EnsureInitialised has never been called for the caller's address.
var ErrRouterNotInitialised = errors.New("xcc: router not initialised")

// ErrPromiseNotFound is returned by ExecuteScheduled for an
// unknown or already-consumed nonce.
var ErrPromiseNotFound = errors.New("xcc: no scheduled promise at that nonce")

// ErrWNearNotConfigured is returned by UnwrapAndRefund when no
// factory_set_wnear_address call has run yet.
var ErrWNearNotConfigured = errors.New("xcc: wnear account not configured")

// wnearAccountKey holds the factory-wide wNEAR NEP-141 account id every
// router sub-account unwraps against — original_source/etc/xcc-router/src/
// lib.rs's wnear_account field, hoisted to one engine-wide setting since
// this engine keeps every router's state under one contract rather than
// deploying a sub-account per owner.
var wnearAccountKey = state.Key(state.PrefixConfig, []byte("xcc:wnear"))

// SetWNearAddress implements replay.KindFactorySetWNearAddress: records the
// NEP-141 account id UnwrapAndRefund's near_withdraw promise targets.
func (k *Keeper) SetWNearAddress(nep141AccountID string) {
	k.state.WriteRaw(wnearAccountKey, []byte(nep141AccountID))
}

// WNearAccountID returns the configured wNEAR account id, if any.
func (k *Keeper) WNearAccountID(ctx context.Context) (string, bool, error) {
	v, ok, err := k.state.ReadRaw(ctx, wnearAccountKey)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(v), true, nil
}

const routerVersion = 1

// routerState is the per-owner router sub-account record: original_source/
// etc/xcc-router/src/lib.rs's Router is a real NEAR sub-account
// (hex(address).engine_account_id) with its own contract state; here, since
// this engine has no separate NEAR accounts to deploy one to, the same
// state machine is kept directly under the owner's key in engine storage
// instead.
type routerState struct {
	Initialised bool   `json:"initialised"`
	Version     uint32 `json:"version"`
	NextNonce   uint64 `json:"next_nonce"`
}

// Keeper owns every router sub-account's state and its scheduled-promise
// queue (state.PrefixCrossContractCall).
type Keeper struct {
	state *state.Keeper
}

func NewKeeper(s *state.Keeper) *Keeper {
	return &Keeper{state: s}
}

func routerKey(owner common.Address) []byte {
	return state.Key(state.PrefixCrossContractCall, owner[:], []byte("router"))
}

func scheduledKey(owner common.Address, nonce uint64) []byte {
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	return state.Key(state.PrefixCrossContractCall, owner[:], []byte("p"), nonceBuf[:])
}

func (k *Keeper) load(ctx context.Context, owner common.Address) (routerState, error) {
	v, ok, err := k.state.ReadRaw(ctx, routerKey(owner))
	if err != nil {
		return routerState{}, err
	}
	if !ok {
		return routerState{}, nil
	}
	var rs routerState
	if err := json.Unmarshal(v, &rs); err != nil {
		return routerState{}, err
	}
	return rs, nil
}

func (k *Keeper) save(owner common.Address, rs routerState) error {
	encoded, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	k.state.WriteRaw(routerKey(owner), encoded)
	return nil
}

// EnsureInitialised implements original_source/etc/xcc-router/src/lib.rs's
// Router::initialize, moving the owner's router sub-account from
// Uninitialised to Initialised(version). Idempotent: an already-initialised
// router is left untouched, matching the original's "# Panics if ...
// already initialized" guard re-expressed as a no-op since this engine has
// no separate deploy step to guard.
func (k *Keeper) EnsureInitialised(ctx context.Context, owner common.Address) error {
	rs, err := k.load(ctx, owner)
	if err != nil {
		return err
	}
	if rs.Initialised {
		return nil
	}
	rs.Initialised = true
	rs.Version = routerVersion
	return k.save(owner, rs)
}

// Execute implements Router::execute: dispatches args as host promises
// immediately, returning the final promise id in the chain.
func (k *Keeper) Execute(ctx context.Context, ec *ecommon.ExecutionContext, owner common.Address, args PromiseArgs) (uint64, error) {
	rs, err := k.load(ctx, owner)
	if err != nil {
		return 0, err
	}
	if !rs.Initialised {
		return 0, ErrRouterNotInitialised
	}
	return dispatch(ec, args)
}

// Schedule implements Router::schedule: stores args under a fresh
// monotonic nonce instead of dispatching it, for a later ExecuteScheduled
// to pick up.
func (k *Keeper) Schedule(ctx context.Context, owner common.Address, args PromiseArgs) (uint64, error) {
	rs, err := k.load(ctx, owner)
	if err != nil {
		return 0, err
	}
	if !rs.Initialised {
		return 0, ErrRouterNotInitialised
	}
	nonce := rs.NextNonce
	rs.NextNonce++
	if err := k.save(owner, rs); err != nil {
		return 0, err
	}
	k.state.WriteRaw(scheduledKey(owner, nonce), EncodePromiseArgs(args))
	return nonce, nil
}

// ExecuteScheduled implements Router::execute_scheduled: callable by
// anyone (not just the parent engine, unlike Execute/Schedule), it
// dispatches a previously-Schedule'd promise and removes it from the
// queue so it cannot run twice.
func (k *Keeper) ExecuteScheduled(ctx context.Context, ec *ecommon.ExecutionContext, owner common.Address, nonce uint64) (uint64, error) {
	key := scheduledKey(owner, nonce)
	encoded, ok, err := k.state.ReadRaw(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPromiseNotFound
	}
	args, err := DecodePromiseArgs(encoded)
	if err != nil {
		return 0, err
	}
	k.state.RemoveRaw(key)
	return dispatch(ec, args)
}

// UnwrapAndRefundStorage implements Router::unwrap_and_refund_storage: the
// router, having received wrapped-native tokens from a promise it
// scheduled, unwraps amount to native and, if refundNeeded, sends the
// engine's original storage-staking deposit back to it. funder performs
// both the unwrap and the refund transfer, since router state alone has no
// wrapped-native balance of its own to move.
func (k *Keeper) UnwrapAndRefundStorage(ctx context.Context, ec *ecommon.ExecutionContext, owner common.Address, amount *big.Int, refundNeeded bool, funder StorageFunder) error {
	rs, err := k.load(ctx, owner)
	if err != nil {
		return err
	}
	if !rs.Initialised {
		return ErrRouterNotInitialised
	}
	return funder.UnwrapAndRefund(ec, owner, amount, refundNeeded)
}

// StorageFunder performs the native-token side effects
// UnwrapAndRefundStorage needs but router state has no balance ledger
// for — implemented by xcc.Keeper itself (storage.go).
type StorageFunder interface {
	UnwrapAndRefund(ec *ecommon.ExecutionContext, owner common.Address, amount *big.Int, refundNeeded bool) error
}

// dispatch walks args and turns it into one or more host.Promises calls,
// returning the id of the last (outermost) promise created — the same
// flattening original_source/etc/xcc-router/src/lib.rs's promise_create
// dispatch and engine-tests/src/tests/xcc.rs's NearPromise tree both
// perform on the Rust side.
func dispatch(ec *ecommon.ExecutionContext, args PromiseArgs) (uint64, error) {
	switch args.kind {
	case promiseArgsCreate:
		return createPromise(ec, *args.create)
	case promiseArgsCallback:
		base, err := createPromise(ec, args.callback.Base)
		if err != nil {
			return 0, err
		}
		return thenPromise(ec, base, args.callback.Callback)
	case promiseArgsRecursive:
		return dispatchNearPromise(ec, *args.recursive)
	default:
		return 0, ErrMalformedPromise
	}
}

func dispatchNearPromise(ec *ecommon.ExecutionContext, p NearPromise) (uint64, error) {
	switch p.kind {
	case nearPromiseSimple:
		return createPromise(ec, *p.simpleCreate)
	case nearPromiseThen:
		base, err := dispatchNearPromise(ec, *p.thenBase)
		if err != nil {
			return 0, err
		}
		return thenPromise(ec, base, *p.thenCallback)
	case nearPromiseAnd:
		ids := make([]uint64, 0, len(p.and))
		for _, child := range p.and {
			id, err := dispatchNearPromise(ec, child)
			if err != nil {
				return 0, err
			}
			ids = append(ids, id)
		}
		return ec.Promises.And(ids)
	default:
		return 0, ErrMalformedPromise
	}
}

func createPromise(ec *ecommon.ExecutionContext, c PromiseCreateArgs) (uint64, error) {
	return ec.Promises.Create(c.TargetAccountID, c.Method, c.Args, balanceToU128LE(c.AttachedBalance), c.AttachedGas)
}

func thenPromise(ec *ecommon.ExecutionContext, base uint64, c PromiseCreateArgs) (uint64, error) {
	return ec.Promises.Then(base, c.TargetAccountID, c.Method, c.Args, balanceToU128LE(c.AttachedBalance), c.AttachedGas)
}

// balanceToU128LE renders a yoctoNEAR amount as the little-endian u128
// host.Promises.Create/Then expect.
func balanceToU128LE(amount *big.Int) [16]byte {
	var out [16]byte
	if amount == nil {
		return out
	}
	be := amount.Bytes()
	for i := 0; i < len(be) && i < 16; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}
