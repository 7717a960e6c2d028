package xcc

import (
	"context"
	"encoding/binary"

	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
)

// gas pricing for the cross_contract_call precompile: base_cost +
// bytes_cost * len(input), Ethereum gas charged against the caller before
// RequiredGas-to-host-gas conversion happens further up the call stack —
// spec.md §4.8.
const (
	gasBaseCost = 25_000
	gasPerByte  = 100
)

// Handler implements engineprecompiles.XCCHandler: it decodes the raw
// precompile input as a CrossContractCallArgs and either dispatches it
// immediately (Eager) or stores it in the caller's router sub-account for
// a later execute_scheduled (Delayed) — spec.md §4.8's
// cross_contract_call entry point.
type Handler struct {
	Router *Keeper
}

func NewHandler(router *Keeper) *Handler {
	return &Handler{Router: router}
}

func (h *Handler) RequiredGas(input []byte) uint64 {
	return gasBaseCost + gasPerByte*uint64(len(input))
}

// Execute implements engineprecompiles.XCCHandler.
func (h *Handler) Execute(ec *ecommon.ExecutionContext, input []byte) ([]byte, error) {
	ctx := context.Background()
	owner := ec.Caller

	args, err := DecodeCrossContractCallArgs(input)
	if err != nil {
		return nil, err
	}

	if err := h.Router.EnsureInitialised(ctx, owner); err != nil {
		return nil, err
	}

	if args.Delayed {
		nonce, err := h.Router.Schedule(ctx, owner, args.Promise)
		if err != nil {
			return nil, err
		}
		return encodeUint64(nonce), nil
	}

	promiseID, err := h.Router.Execute(ctx, ec, owner, args.Promise)
	if err != nil {
		return nil, err
	}
	return encodeUint64(promiseID), nil
}

func encodeUint64(v uint64) []byte {
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], v)
	return out[:]
}
