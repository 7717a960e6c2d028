package hashchain

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/aurora-is-near/engine-go/state"
)

// BloomByteLength is the size of a block's logs bloom filter, matching
// go-ethereum's own types.BloomByteLength — spec.md §4.9 calls for the
// same 256-byte filter Ethereum blocks carry, so the teacher's own type is
// reused rather than a hand-rolled bit array.
const BloomByteLength = types.BloomByteLength

// TransactionDigest computes spec.md §4.9's per-transaction leaf:
// keccak(be32(len(method)) ‖ method ‖ be32(len(input)) ‖ input ‖
// be32(len(output)) ‖ output), with every length saturating-cast to u32.
func TransactionDigest(method string, input, output []byte) common.Hash {
	buf := make([]byte, 0, 12+len(method)+len(input)+len(output))
	buf = appendLenPrefixed(buf, []byte(method))
	buf = appendLenPrefixed(buf, input)
	buf = appendLenPrefixed(buf, output)
	return crypto.Keccak256Hash(buf)
}

func appendLenPrefixed(buf, v []byte) []byte {
	var lenBuf [4]byte
	n := len(v)
	if n > 0xFFFFFFFF {
		n = 0xFFFFFFFF // saturating cast to u32, per spec.md §4.9
	}
	binary.BigEndian.PutUint32(lenBuf[:], uint32(n))
	buf = append(buf, lenBuf[:]...)
	return append(buf, v...)
}

// Accumulator is one block's in-progress hashchain contribution: the
// streaming Merkle tree over every included transaction's digest, and the
// OR-accumulated logs bloom across those transactions.
type Accumulator struct {
	Tree  Tree
	Bloom types.Bloom
}

// AddTransaction folds one transaction's digest into the tree and
// OR-accumulates its logs into the block bloom.
func (a *Accumulator) AddTransaction(method string, input, output []byte, logs []*types.Log) {
	a.Tree.Add(TransactionDigest(method, input, output))
	if len(logs) == 0 {
		return
	}
	lb := types.CreateBloom(types.Receipts{&types.Receipt{Logs: logs}})
	for i := range a.Bloom {
		a.Bloom[i] |= lb[i]
	}
}

// persistedState is the on-disk shape of a Chain's running commitment.
type persistedState struct {
	Height            uint64       `json:"height"`
	PreviousHashchain common.Hash  `json:"previous_hashchain"`
	ForestHeights     []uint32     `json:"forest_heights"`
	ForestHashes      []common.Hash `json:"forest_hashes"`
	Bloom             types.Bloom  `json:"bloom"`
}

// Keeper persists one Chain's running state and its per-height block-hash
// index (state.PrefixHashchain), the latter backing evmcore.GetHashFunc
// for the BLOCKHASH opcode.
type Keeper struct {
	state     *state.Keeper
	chainID   *big.Int
	accountID string
}

func NewKeeper(s *state.Keeper, chainID *big.Int, accountID string) *Keeper {
	return &Keeper{state: s, chainID: chainID, accountID: accountID}
}

func chainStateKey() []byte {
	return state.Key(state.PrefixHashchain, []byte("state"))
}

func blockHashKey(height uint64) []byte {
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], height)
	return state.Key(state.PrefixHashchain, []byte("block:"), h[:])
}

// Load reads the running height/previous_hashchain/accumulator, or the
// zero state if none has ever been written.
func (k *Keeper) Load(ctx context.Context) (uint64, common.Hash, Accumulator, error) {
	v, ok, err := k.state.ReadRaw(ctx, chainStateKey())
	if err != nil {
		return 0, common.Hash{}, Accumulator{}, err
	}
	if !ok {
		return 0, common.Hash{}, Accumulator{}, nil
	}
	var ps persistedState
	if err := json.Unmarshal(v, &ps); err != nil {
		return 0, common.Hash{}, Accumulator{}, err
	}
	forest := make([]subtree, len(ps.ForestHeights))
	for i := range forest {
		forest[i] = subtree{height: ps.ForestHeights[i], hash: ps.ForestHashes[i]}
	}
	return ps.Height, ps.PreviousHashchain, Accumulator{Tree: Tree{forest: forest}, Bloom: ps.Bloom}, nil
}

// Save persists height/previous_hashchain/accumulator as one unit.
func (k *Keeper) Save(height uint64, previousHashchain common.Hash, acc Accumulator) error {
	ps := persistedState{
		Height:            height,
		PreviousHashchain: previousHashchain,
		Bloom:             acc.Bloom,
	}
	for _, s := range acc.Tree.forest {
		ps.ForestHeights = append(ps.ForestHeights, s.height)
		ps.ForestHashes = append(ps.ForestHashes, s.hash)
	}
	encoded, err := json.Marshal(ps)
	if err != nil {
		return err
	}
	k.state.WriteRaw(chainStateKey(), encoded)
	return nil
}

// MoveToBlock implements spec.md §4.9's move_to_block(h'): for every
// height between the current height and h' (exclusive), the in-progress
// accumulator is folded into previous_hashchain and reset, and the
// resulting per-height block hash is recorded for later BLOCKHASH lookups.
// h' <= the current height is a no-op.
func (k *Keeper) MoveToBlock(ctx context.Context, newHeight uint64) error {
	height, previousHashchain, acc, err := k.Load(ctx)
	if err != nil {
		return err
	}
	for height < newHeight {
		merkleRoot := acc.Tree.ComputeHash()
		next := crypto.Keccak256Hash(
			k.chainID.Bytes(),
			[]byte(k.accountID),
			beUint64(height),
			previousHashchain.Bytes(),
			merkleRoot.Bytes(),
			acc.Bloom.Bytes(),
		)
		k.state.WriteRaw(blockHashKey(height), next.Bytes())
		previousHashchain = next
		acc = Accumulator{}
		height++
	}
	return k.Save(height, previousHashchain, acc)
}

// BlockHash returns the previously-recorded hashchain commitment for
// height, if MoveToBlock has rolled past it.
func (k *Keeper) BlockHash(ctx context.Context, height uint64) (common.Hash, bool, error) {
	v, ok, err := k.state.ReadRaw(ctx, blockHashKey(height))
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}
	return common.BytesToHash(v), true, nil
}

// GetHashFunc returns an evmcore.GetHashFunc backed by this keeper's
// per-height block-hash index, for wiring into evmcore.Config.GetHash —
// the BLOCKHASH opcode's data source.
func (k *Keeper) GetHashFunc(ctx context.Context) func(uint64) common.Hash {
	return func(height uint64) common.Hash {
		hash, ok, err := k.BlockHash(ctx, height)
		if err != nil || !ok {
			return common.Hash{}
		}
		return hash
	}
}

func beUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
