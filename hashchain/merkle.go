// Package hashchain implements spec.md §4.9: a per-block accumulator (a
// streaming compact Merkle tree plus a 256-byte logs bloom) folded, block
// by block, into a running previous_hashchain commitment.
//
// No teacher analogue exists for either piece — Cosmos EVM commits to an
// IAVL tree, not a streaming compact Merkle tree, and has no block-level
// hashchain concept at all — so both are built fresh here, algorithmically
// grounded on original_source/engine-hashchain/src/merkle.rs and
// original_source/engine-hashchain/src/hashchain.rs, re-expressed in plain
// Go rather than translated line for line.
package hashchain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// subtree is one entry in the streaming Merkle tree's forest: a complete
// binary subtree spanning 2^(height-1) leaves, identified by its root
// hash.
type subtree struct {
	height uint32
	hash   common.Hash
}

// Tree is a right-leaning forest of full binary subtrees of strictly
// decreasing height, built up one leaf at a time without ever holding the
// whole leaf set in memory — original_source/engine-hashchain/
// src/merkle.rs's StreamCompactMerkleTree.
type Tree struct {
	forest []subtree
}

// Add appends one leaf hash, merging equal-height subtrees from the right
// as far as they collapse.
func (t *Tree) Add(leaf common.Hash) {
	t.forest = append(t.forest, subtree{height: 1, hash: leaf})
	for len(t.forest) >= 2 {
		last := t.forest[len(t.forest)-1]
		prev := t.forest[len(t.forest)-2]
		if last.height != prev.height {
			break
		}
		merged := subtree{
			height: last.height + 1,
			hash:   crypto.Keccak256Hash(prev.hash.Bytes(), last.hash.Bytes()),
		}
		t.forest = t.forest[:len(t.forest)-2]
		t.forest = append(t.forest, merged)
	}
}

// ComputeHash folds the forest right-to-left into a single root,
// duplicating the accumulated (right-hand) hash as needed to grow it to
// each next subtree's height before combining. An empty tree's root is the
// all-zero hash.
func (t *Tree) ComputeHash() common.Hash {
	if len(t.forest) == 0 {
		return common.Hash{}
	}
	acc := t.forest[len(t.forest)-1]
	for i := len(t.forest) - 2; i >= 0; i-- {
		next := t.forest[i]
		for acc.height < next.height {
			acc = subtree{height: acc.height + 1, hash: crypto.Keccak256Hash(acc.hash.Bytes(), acc.hash.Bytes())}
		}
		acc = subtree{height: next.height + 1, hash: crypto.Keccak256Hash(next.hash.Bytes(), acc.hash.Bytes())}
	}
	return acc.hash
}

// Reset empties the forest, ready for the next block's accumulation.
func (t *Tree) Reset() {
	t.forest = nil
}

// IsEmpty reports whether any leaf has been added since construction or
// the last Reset.
func (t *Tree) IsEmpty() bool {
	return len(t.forest) == 0
}
