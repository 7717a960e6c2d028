// Package host adapts an external host.KV implementation to the kv.Backend
// trait. This is the "host-runtime passthrough" backend of spec.md §4.1:
// on-chain, every read/write crosses straight into the embedding runtime
// with no local buffering beyond what the runtime itself does.
package host

import (
	"context"

	"github.com/aurora-is-near/engine-go/host"
	"github.com/aurora-is-near/engine-go/kv"
)

// Backend forwards every kv.Backend call to an underlying host.KV.
type Backend struct {
	kv host.KV
}

// New wraps a host.KV implementation as a kv.Backend.
func New(h host.KV) *Backend {
	return &Backend{kv: h}
}

var _ kv.Backend = (*Backend)(nil)

func (b *Backend) ReadInput(ctx context.Context) ([]byte, error) {
	return b.kv.ReadInput(ctx)
}

func (b *Backend) ReturnOutput(ctx context.Context, output []byte) error {
	return b.kv.ReturnOutput(ctx, output)
}

func (b *Backend) ReadStorage(ctx context.Context, key []byte) (kv.Value, bool, error) {
	v, ok, err := b.kv.ReadStorage(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return kv.OwnedValue(v), true, nil
}

func (b *Backend) StorageHasKey(ctx context.Context, key []byte) (bool, error) {
	return b.kv.StorageHasKey(ctx, key)
}

func (b *Backend) WriteStorage(ctx context.Context, key, value []byte) (kv.Value, bool, error) {
	prior, had, err := b.kv.WriteStorage(ctx, key, value)
	if err != nil || !had {
		return nil, had, err
	}
	return kv.OwnedValue(prior), true, nil
}

func (b *Backend) RemoveStorage(ctx context.Context, key []byte) (kv.Value, bool, error) {
	prior, had, err := b.kv.RemoveStorage(ctx, key)
	if err != nil || !had {
		return nil, had, err
	}
	return kv.OwnedValue(prior), true, nil
}
