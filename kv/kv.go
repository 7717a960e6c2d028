// Package kv defines the storage trait every engine component talks
// through (spec.md §4.1): read_input/return_output/read_storage/
// storage_has_key/write_storage/remove_storage. Two backends satisfy it —
// kv/host (a thin passthrough to the embedding runtime) and kv/standalone
// (RocksDB + an in-memory diff, for off-chain replay).
package kv

import "context"

// Value is a lazy byte container. Backends that borrow a host-owned buffer
// can implement Len/CopyTo without an upfront allocation; Bytes forces a
// copy for callers that need an owned slice.
type Value interface {
	Len() int
	CopyTo(dst []byte)
	Bytes() []byte
}

// OwnedValue is the common case: a backend-owned byte slice.
type OwnedValue []byte

func (v OwnedValue) Len() int          { return len(v) }
func (v OwnedValue) CopyTo(dst []byte) { copy(dst, v) }
func (v OwnedValue) Bytes() []byte     { return v }

// Backend is the KV abstraction of spec.md §4.1.
type Backend interface {
	ReadInput(ctx context.Context) ([]byte, error)
	ReturnOutput(ctx context.Context, output []byte) error

	ReadStorage(ctx context.Context, key []byte) (Value, bool, error)
	StorageHasKey(ctx context.Context, key []byte) (bool, error)
	WriteStorage(ctx context.Context, key []byte, value []byte) (prior Value, hadPrior bool, err error)
	RemoveStorage(ctx context.Context, key []byte) (prior Value, hadPrior bool, err error)
}
