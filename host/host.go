// Package host declares the interfaces the engine expects the embedding
// runtime to provide. The host runtime itself — the blockchain shim that
// supplies I/O, promise scheduling, predecessor/signer identity, block
// height and the random seed — is an external collaborator (spec.md §1)
// and is never implemented in this repository; only its contract lives
// here, plus one concrete binding for standalone/replay mode (kv/standalone).
package host

import "context"

// KV is the I/O trait the engine issues all storage operations through.
// It corresponds exactly to spec.md §4.1.
type KV interface {
	ReadInput(ctx context.Context) ([]byte, error)
	ReturnOutput(ctx context.Context, output []byte) error

	ReadStorage(ctx context.Context, key []byte) (value []byte, ok bool, err error)
	StorageHasKey(ctx context.Context, key []byte) (bool, error)
	// WriteStorage returns the prior value, if any.
	WriteStorage(ctx context.Context, key, value []byte) (prior []byte, hadPrior bool, err error)
	// RemoveStorage returns the prior value, if any.
	RemoveStorage(ctx context.Context, key []byte) (prior []byte, hadPrior bool, err error)
}

// Environment exposes the ambient values a host invocation carries.
type Environment interface {
	PredecessorAccountID() string
	SignerAccountID() string
	CurrentAccountID() string
	BlockHeight() uint64
	BlockTimestampNs() uint64
	AttachedDeposit() [32]byte // little-endian u128, zero-padded to 32 bytes
	RandomSeed() [32]byte
	PrepaidGas() uint64
}

// PromiseResult is the outcome of a previously scheduled promise as seen by
// a callback invocation.
type PromiseResult struct {
	Success bool
	Data    []byte
}

// Promises is the narrow scheduling surface the engine uses to turn an
// in-EVM call into a deferred host effect. It never blocks: Create/Then/And
// return an opaque promise id immediately, and the actual execution happens
// in a later, independent host invocation (spec.md §5).
type Promises interface {
	Create(accountID, method string, args []byte, attachedBalance [16]byte, gas uint64) (id uint64, err error)
	Then(base uint64, accountID, method string, args []byte, attachedBalance [16]byte, gas uint64) (id uint64, err error)
	And(ids []uint64) (id uint64, err error)
	Return(id uint64)
	PromiseResultsCount() uint32
	PromiseResult(i uint32) (PromiseResult, error)
}

// Crypto groups the cryptographic primitives supplied by the host rather
// than reimplemented per call site.
type Crypto interface {
	Keccak256(data []byte) [32]byte
	Sha256(data []byte) [32]byte
	Ripemd160(data []byte) [20]byte
	Ecrecover(hash [32]byte, sig []byte) ([]byte, error) // uncompressed pubkey, or error
}
