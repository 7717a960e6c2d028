package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account is the logical per-address tuple of spec.md §3. Generation
// increments on SELFDESTRUCT so that orphaned storage slots are invalidated
// without a scan: a slot whose stored generation is less than the account's
// current generation reads as zero (the "generation isolation" invariant).
type Account struct {
	Nonce      uint64
	Balance    *uint256.Int
	Code       []byte
	Generation uint32
}

// IsEmpty matches the EVM's "account exists" rule: (balance, nonce, code)
// all zero/absent.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.IsZero()) && len(a.Code) == 0
}

func encodeGeneration(g uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], g)
	return b[:]
}

func decodeGeneration(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// storageKey composes Storage ‖ address ‖ slot ‖ be32(generation) per
// spec.md §4.2's composite-key layout.
func storageKey(address common.Address, slot common.Hash, generation uint32) []byte {
	return Key(PrefixStorage, address[:], slot[:], encodeGeneration(generation))
}
