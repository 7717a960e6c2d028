package state

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/kv"
)

// Keeper is the thin struct-over-a-backend every accessor hangs off, in the
// same shape as x/vm/keeper.Keeper — one accessor method per state-model
// concern — except it is pointed at the kv.Backend trait plus a diff.Scope
// staging layer instead of a Cosmos storetypes.KVStore.
type Keeper struct {
	backend kv.Backend
	scope   *diff.Scope
	logger  log.Logger
}

// NewKeeper constructs a Keeper over backend, staging all writes into scope
// (the engine orchestrator owns the scope's lifecycle: commit on success,
// discard on admission failure).
func NewKeeper(backend kv.Backend, scope *diff.Scope, logger log.Logger) *Keeper {
	return &Keeper{backend: backend, scope: scope, logger: logger}
}

func (k *Keeper) Logger() log.Logger { return k.logger.With("module", "state") }

// Scope returns the diff.Scope writes are currently staged into, so callers
// (evmcore's StateDB) can Enter/Commit/Discard around call frames.
func (k *Keeper) Scope() *diff.Scope { return k.scope }

// SetScope repoints the keeper at a different scope — used when entering or
// leaving a call frame.
func (k *Keeper) SetScope(s *diff.Scope) { k.scope = s }

// read resolves key by checking the active scope first, then the committed
// backend — a staged Deleted entry shadows a still-present backend value.
func (k *Keeper) read(ctx context.Context, key []byte) ([]byte, bool, error) {
	if e, ok := k.scope.Get(key); ok {
		if e.Deleted {
			return nil, false, nil
		}
		return e.Value, true, nil
	}
	v, ok, err := k.backend.ReadStorage(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return v.Bytes(), true, nil
}

func (k *Keeper) write(key, value []byte) {
	k.scope.Set(key, value)
}

func (k *Keeper) remove(key []byte) {
	k.scope.Remove(key)
}

// WriteRaw, RemoveRaw, ReadRaw and HasRaw expose the staged-write/read
// primitives directly for sibling packages (silo, bridge, xcc, replay,
// admin) that own their own key prefixes but still want every write to
// land in the same diff.Scope the engine orchestrator commits atomically.
func (k *Keeper) WriteRaw(key, value []byte) { k.write(key, value) }
func (k *Keeper) RemoveRaw(key []byte)        { k.remove(key) }

func (k *Keeper) ReadRaw(ctx context.Context, key []byte) ([]byte, bool, error) {
	return k.read(ctx, key)
}

func (k *Keeper) HasRaw(ctx context.Context, key []byte) (bool, error) {
	_, ok, err := k.read(ctx, key)
	return ok, err
}

// --- Nonce ---

func (k *Keeper) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	v, ok, err := k.read(ctx, Key(PrefixNonce, addr[:]))
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

func (k *Keeper) SetNonce(_ context.Context, addr common.Address, nonce uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], nonce)
	k.write(Key(PrefixNonce, addr[:]), b[:])
}

// --- Balance ---

func (k *Keeper) GetBalance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	v, ok, err := k.read(ctx, Key(PrefixBalance, addr[:]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return uint256.NewInt(0), nil
	}
	return new(uint256.Int).SetBytes(v), nil
}

func (k *Keeper) SetBalance(_ context.Context, addr common.Address, balance *uint256.Int) {
	k.write(Key(PrefixBalance, addr[:]), balance.Bytes())
}

// --- Code ---

func (k *Keeper) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	v, ok, err := k.read(ctx, Key(PrefixCode, addr[:]))
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func (k *Keeper) SetCode(_ context.Context, addr common.Address, code []byte) {
	if len(code) == 0 {
		k.remove(Key(PrefixCode, addr[:]))
		return
	}
	k.write(Key(PrefixCode, addr[:]), code)
}

// --- Generation ---

func (k *Keeper) GetGeneration(ctx context.Context, addr common.Address) (uint32, error) {
	v, ok, err := k.read(ctx, Key(PrefixGeneration, addr[:]))
	if err != nil || !ok {
		return 0, err
	}
	return decodeGeneration(v), nil
}

func (k *Keeper) bumpGeneration(ctx context.Context, addr common.Address) error {
	g, err := k.GetGeneration(ctx, addr)
	if err != nil {
		return err
	}
	k.write(Key(PrefixGeneration, addr[:]), encodeGeneration(g+1))
	return nil
}

// --- Storage slots ---

// StorageGet implements the generation-isolation invariant (spec.md §3): a
// slot whose stored generation predates the account's current one reads as
// the zero hash, without any scan.
func (k *Keeper) StorageGet(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	gen, err := k.GetGeneration(ctx, addr)
	if err != nil {
		return common.Hash{}, err
	}
	v, ok, err := k.read(ctx, storageKey(addr, slot, gen))
	if err != nil || !ok {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

// ReadCommittedStorage reads slot's value as of the start of the current
// diff.Scope chain's root — i.e. bypassing every staged scope entirely and
// asking the backend directly — which is exactly EVM semantics for
// "committed state" (the value before the in-flight transaction touched
// it), since the keeper's scope only ever stages the current transaction's
// writes. Used by evmcore's GetCommittedState for SSTORE gas-refund
// accounting (EIP-3529).
func (k *Keeper) ReadCommittedStorage(ctx context.Context, addr common.Address, slot common.Hash, generation uint32) (common.Hash, bool, error) {
	v, ok, err := k.backend.ReadStorage(ctx, storageKey(addr, slot, generation))
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}
	return common.BytesToHash(v.Bytes()), true, nil
}

func (k *Keeper) StorageSet(ctx context.Context, addr common.Address, slot, value common.Hash) error {
	gen, err := k.GetGeneration(ctx, addr)
	if err != nil {
		return err
	}
	if value == (common.Hash{}) {
		k.remove(storageKey(addr, slot, gen))
		return nil
	}
	k.write(storageKey(addr, slot, gen), value[:])
	return nil
}

// --- Account lifecycle ---

// RemoveAccount clears nonce, balance and code atomically and bumps
// generation, implementing SELFDESTRUCT's account-destruction half (the
// caller is responsible for crediting the beneficiary first).
func (k *Keeper) RemoveAccount(ctx context.Context, addr common.Address) error {
	k.remove(Key(PrefixNonce, addr[:]))
	k.remove(Key(PrefixBalance, addr[:]))
	k.remove(Key(PrefixCode, addr[:]))
	return k.bumpGeneration(ctx, addr)
}

// LoadAccount reads the full Account tuple for addr.
func (k *Keeper) LoadAccount(ctx context.Context, addr common.Address) (Account, error) {
	nonce, err := k.GetNonce(ctx, addr)
	if err != nil {
		return Account{}, err
	}
	balance, err := k.GetBalance(ctx, addr)
	if err != nil {
		return Account{}, err
	}
	code, err := k.GetCode(ctx, addr)
	if err != nil {
		return Account{}, err
	}
	gen, err := k.GetGeneration(ctx, addr)
	if err != nil {
		return Account{}, err
	}
	return Account{Nonce: nonce, Balance: balance, Code: code, Generation: gen}, nil
}
