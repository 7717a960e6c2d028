// Package evmcore adapts the State Model of spec.md §4.2 (state.Keeper over
// a kv.Backend plus a diff.Scope staging layer) into the concrete
// go-ethereum interfaces needed to run its vendored interpreter — vm.StateDB
// here, vm.BlockContext/vm.TxContext in evm.go — per spec.md §4.4's explicit
// allowance for a vendored interpreter rather than a reimplemented one.
//
// Grounded on x/vm/statedb/state_object.go's per-account dirty/origin
// storage cache and journal-of-changes shape, re-expressed over
// diff.Scope's nested commit/discard stack instead of a linear journal:
// since diff.Scope already gives every CALL/CREATE frame an isolated,
// revertible write set, Snapshot/RevertToSnapshot here is just "remember
// the scope pointer, then restore it" rather than replaying a journal.
package evmcore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	gethstate "github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/state"
)

// TxConfig mirrors x/vm/statedb/config.go's TxConfig: the read-only facts
// about the in-flight transaction that AddLog needs to stamp onto emitted
// logs.
type TxConfig struct {
	TxHash  common.Hash
	TxIndex uint
}

// accessTuple is the per-address/per-slot access-list entry EIP-2929
// warm/cold tracking needs.
type accessTuple struct {
	addr  bool
	slots map[common.Hash]struct{}
}

// StateDB implements go-ethereum's vm.StateDB over a state.Keeper, so the
// vendored interpreter can run against the engine's own state model without
// ever knowing it isn't talking to a go-ethereum StateDB.
type StateDB struct {
	ctx    context.Context
	keeper *state.Keeper
	logger log.Logger

	txConfig TxConfig
	logIndex uint

	logs      []*types.Log
	refund    uint64
	preimages map[common.Hash][]byte

	selfDestructed map[common.Address]bool
	destructed6780 map[common.Address]bool

	access map[common.Address]*accessTuple

	transient map[common.Address]map[common.Hash]common.Hash

	// snapshots[i] is the scope to restore to on RevertToSnapshot(i): the
	// scope that was current immediately before the matching Snapshot call
	// pushed a child onto it.
	snapshots []*diff.Scope
}

// NewStateDB constructs a StateDB over keeper, staging every write into
// keeper's current diff.Scope.
func NewStateDB(ctx context.Context, keeper *state.Keeper, txConfig TxConfig, logger log.Logger) *StateDB {
	return &StateDB{
		ctx:            ctx,
		keeper:         keeper,
		logger:         logger,
		txConfig:       txConfig,
		preimages:      make(map[common.Hash][]byte),
		selfDestructed: make(map[common.Address]bool),
		destructed6780: make(map[common.Address]bool),
		access:         make(map[common.Address]*accessTuple),
		transient:      make(map[common.Address]map[common.Hash]common.Hash),
	}
}

func (s *StateDB) must(err error) {
	if err != nil {
		// State reads only fail on a corrupt backend or a cancelled
		// context — neither is recoverable mid-execution, and vm.StateDB's
		// methods have no error return, so this is the one place the
		// adapter panics; evmcore.ApplyMessage recovers it (evm.go).
		panic(err)
	}
}

// --- account existence ---

// CreateAccount is a no-op beyond what AddBalance/SetCode already do: the
// state model has no separate "account exists" marker, an account is just
// whichever of nonce/balance/code/storage happen to be non-zero.
func (s *StateDB) CreateAccount(common.Address) {}

// CreateContract leaves the generation unchanged: the bump that isolates a
// reused address from a previous contract's storage happens when
// SELFDESTRUCT removes the account (state.Keeper.RemoveAccount, spec.md §3's
// generation-isolation invariant). This only reads the current generation,
// surfacing a backend read failure through must.
func (s *StateDB) CreateContract(addr common.Address) {
	_, err := s.keeper.GetGeneration(s.ctx, addr)
	s.must(err)
}

func (s *StateDB) Exist(addr common.Address) bool {
	acct, err := s.keeper.LoadAccount(s.ctx, addr)
	s.must(err)
	return !acct.IsEmpty() || s.selfDestructed[addr]
}

func (s *StateDB) Empty(addr common.Address) bool {
	acct, err := s.keeper.LoadAccount(s.ctx, addr)
	s.must(err)
	return acct.IsEmpty()
}

// --- balance ---

func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	b, err := s.keeper.GetBalance(s.ctx, addr)
	s.must(err)
	return b
}

func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	if amount.IsZero() {
		return *prev
	}
	s.keeper.SetBalance(s.ctx, addr, new(uint256.Int).Add(prev, amount))
	return *prev
}

func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	if amount.IsZero() {
		return *prev
	}
	s.keeper.SetBalance(s.ctx, addr, new(uint256.Int).Sub(prev, amount))
	return *prev
}

// --- nonce ---

func (s *StateDB) GetNonce(addr common.Address) uint64 {
	n, err := s.keeper.GetNonce(s.ctx, addr)
	s.must(err)
	return n
}

func (s *StateDB) SetNonce(addr common.Address, nonce uint64, _ tracing.NonceChangeReason) {
	s.keeper.SetNonce(s.ctx, addr, nonce)
}

// --- code ---

func (s *StateDB) GetCode(addr common.Address) []byte {
	c, err := s.keeper.GetCode(s.ctx, addr)
	s.must(err)
	return c
}

func (s *StateDB) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *StateDB) GetCodeHash(addr common.Address) common.Hash {
	code := s.GetCode(addr)
	if len(code) == 0 {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(code)
}

func (s *StateDB) SetCode(addr common.Address, code []byte) {
	s.keeper.SetCode(s.ctx, addr, code)
}

// --- refund ---

func (s *StateDB) AddRefund(gas uint64) { s.refund += gas }

func (s *StateDB) SubRefund(gas uint64) {
	if gas > s.refund {
		panic("evmcore: refund underflow")
	}
	s.refund -= gas
}

func (s *StateDB) GetRefund() uint64 { return s.refund }

// --- storage ---

// GetCommittedState bypasses the in-flight scope and reads only what the
// backend already has committed — used by SSTORE's gas-refund accounting
// to compare against the pre-transaction value. Since diff.Scope layers
// reads through every ancestor including the root transaction scope, "the
// backend" here means asking the keeper's backend directly rather than
// going through Scope.Get at all.
func (s *StateDB) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	gen, err := s.keeper.GetGeneration(s.ctx, addr)
	s.must(err)
	v, ok, err := s.keeper.ReadCommittedStorage(s.ctx, addr, key, gen)
	s.must(err)
	if !ok {
		return common.Hash{}
	}
	return v
}

func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	v, err := s.keeper.StorageGet(s.ctx, addr, key)
	s.must(err)
	return v
}

func (s *StateDB) SetState(addr common.Address, key, value common.Hash) common.Hash {
	prev := s.GetState(addr, key)
	if prev == value {
		return prev
	}
	s.must(s.keeper.StorageSet(s.ctx, addr, key, value))
	return prev
}

func (s *StateDB) GetStorageRoot(common.Address) common.Hash {
	// The state model has no per-account storage trie (spec.md §4.2: a flat
	// key-value backend, not a Merkle-Patricia trie) so there is no root to
	// report; go-ethereum only consults this for empty-account pruning
	// heuristics the engine doesn't use.
	return common.Hash{}
}

// --- transient storage (EIP-1153) ---

func (s *StateDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	m, ok := s.transient[addr]
	if !ok {
		return common.Hash{}
	}
	return m[key]
}

func (s *StateDB) SetTransientState(addr common.Address, key, value common.Hash) {
	m, ok := s.transient[addr]
	if !ok {
		m = make(map[common.Hash]common.Hash)
		s.transient[addr] = m
	}
	m[key] = value
}

// --- self-destruct ---

func (s *StateDB) SelfDestruct(addr common.Address) uint256.Int {
	prev := s.GetBalance(addr)
	if s.selfDestructed[addr] {
		return *prev
	}
	s.selfDestructed[addr] = true
	s.keeper.SetBalance(s.ctx, addr, new(uint256.Int))
	return *prev
}

func (s *StateDB) HasSelfDestructed(addr common.Address) bool { return s.selfDestructed[addr] }

// Selfdestruct6780 implements EIP-6780: SELFDESTRUCT only actually destroys
// the account (bumping its generation to invalidate storage) when the
// contract was created earlier in this same transaction; otherwise it just
// sends the balance like SelfDestruct.
func (s *StateDB) Selfdestruct6780(addr common.Address) (uint256.Int, bool) {
	prev := s.SelfDestruct(addr)
	if !s.destructed6780[addr] {
		return prev, false
	}
	s.must(s.keeper.RemoveAccount(s.ctx, addr))
	return prev, true
}

// MarkCreatedThisTx records that addr was CREATEd within the current
// transaction, so a later SELFDESTRUCT within the same transaction
// qualifies for EIP-6780's same-transaction destruction. evmcore's CREATE
// handling (evm.go) calls this right after a successful deployment.
func (s *StateDB) MarkCreatedThisTx(addr common.Address) { s.destructed6780[addr] = true }

// --- access list (EIP-2929 / EIP-2930) ---

func (s *StateDB) entry(addr common.Address) *accessTuple {
	t, ok := s.access[addr]
	if !ok {
		t = &accessTuple{}
		s.access[addr] = t
	}
	return t
}

func (s *StateDB) AddressInAccessList(addr common.Address) bool {
	t, ok := s.access[addr]
	return ok && t.addr
}

func (s *StateDB) SlotInAccessList(addr common.Address, slot common.Hash) (addressOk, slotOk bool) {
	t, ok := s.access[addr]
	if !ok {
		return false, false
	}
	_, slotOk = t.slots[slot]
	return t.addr, slotOk
}

func (s *StateDB) AddAddressToAccessList(addr common.Address) {
	s.entry(addr).addr = true
}

func (s *StateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	t := s.entry(addr)
	t.addr = true
	if t.slots == nil {
		t.slots = make(map[common.Hash]struct{})
	}
	t.slots[slot] = struct{}{}
}

// Prepare implements EIP-2930/3651's warm-address preloading: the sender,
// recipient, precompiles, coinbase (post-Shanghai) and any access-list
// entries the transaction carries all start warm.
func (s *StateDB) Prepare(rules params.Rules, sender, coinbase common.Address, dst *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	s.access = make(map[common.Address]*accessTuple)
	s.AddAddressToAccessList(sender)
	if dst != nil {
		s.AddAddressToAccessList(*dst)
	}
	for _, p := range precompiles {
		s.AddAddressToAccessList(p)
	}
	for _, el := range txAccesses {
		s.AddAddressToAccessList(el.Address)
		for _, k := range el.StorageKeys {
			s.AddSlotToAccessList(el.Address, k)
		}
	}
	if rules.IsShanghai {
		s.AddAddressToAccessList(coinbase)
	}
}

// --- snapshots ---

func (s *StateDB) Snapshot() int {
	id := len(s.snapshots)
	s.snapshots = append(s.snapshots, s.keeper.Scope())
	s.keeper.SetScope(s.keeper.Scope().Enter())
	return id
}

func (s *StateDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(s.snapshots) {
		panic("evmcore: invalid snapshot id")
	}
	s.keeper.SetScope(s.snapshots[id])
	s.snapshots = s.snapshots[:id]
}

// --- logs / preimages ---

func (s *StateDB) AddLog(log *types.Log) {
	log.TxHash = s.txConfig.TxHash
	log.TxIndex = s.txConfig.TxIndex
	log.Index = s.logIndex
	s.logIndex++
	s.logs = append(s.logs, log)
}

// Logs returns the logs emitted so far this transaction, in emission order.
func (s *StateDB) Logs() []*types.Log { return s.logs }

func (s *StateDB) AddPreimage(hash common.Hash, preimage []byte) {
	if _, ok := s.preimages[hash]; ok {
		return
	}
	s.preimages[hash] = append([]byte(nil), preimage...)
}

// --- verkle/stateless witness hooks ---
//
// The engine never runs in stateless/verkle mode (spec.md §4.2's backend is
// a flat key-value store, not a Verkle trie), so these three report "not
// tracked" the way go-ethereum's own non-verkle StateDB does.

func (s *StateDB) Witness() *stateless.Witness { return nil }

func (s *StateDB) PointCache() *utils.PointCache { return nil }

func (s *StateDB) AccessEvents() *gethstate.AccessEvents { return nil }
