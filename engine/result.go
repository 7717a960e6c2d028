// Package engine implements spec.md §4.6: the `submit` admission pipeline
// and the sibling entry points (`call`, `deploy_code`, `deploy_erc20_token`,
// the NEP-141 bridge hooks) that turn a decoded request into EVM execution
// against state.Keeper, wiring together every other package (txcodec,
// state, evmcore, precompiles, bridge, xcc, silo, admin, hashchain) the way
// x/vm/keeper/state_transition.go's ApplyTransaction wires together the
// teacher's own codec/statedb/precompile/gov layers.
package engine

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/aurora-is-near/engine-go/hosterror"
)

var errNoPromiseResult = errors.New("engine: no such promise result")

// Status is SubmitResult's outcome discriminator — distinct from a
// hosterror admission failure (which never produces a SubmitResult at
// all): every Status here means the transaction was admitted and the EVM
// ran, successfully or not.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusRevert
	StatusOutOfGas
	StatusOutOfFund
	StatusOutOfOffset
	StatusCallTooDeep
	StatusOther
)

func statusFromVMError(vmErr string) Status {
	switch vmErr {
	case "":
		return StatusSuccess
	case "execution reverted":
		return StatusRevert
	case "out of gas":
		return StatusOutOfGas
	case "insufficient balance for transfer":
		return StatusOutOfFund
	case "max call depth exceeded":
		return StatusCallTooDeep
	default:
		return StatusOther
	}
}

// submitResultVersion is SubmitResult's wire-format version tag (spec.md
// §4.6's "structured result (status, gas used, logs)" is explicitly
// version-tagged so a later field addition doesn't break an already
// persisted journal).
const submitResultVersion uint8 = 1

// SubmitResult is what `submit`/`call`/`deploy_code` return: the ABI-stable
// structured outcome spec.md §4.6 names, wrapping evmcore.Result with the
// admission-level gas figure (which may differ from evmcore.Result.GasUsed
// under silo fixed-gas mode, spec.md §4.11).
type SubmitResult struct {
	Version         uint8
	Status          Status
	GasUsed         uint64
	ContractAddress common.Address
	Output          []byte
	Logs            []*types.Log
	VMError         string
}

// Failed reports whether the EVM rejected or reverted the call.
func (r *SubmitResult) Failed() bool { return r.Status != StatusSuccess }

// Encode renders r in the version-tagged wire format: a length-prefixed
// field codec, the same scheme xcc/promise.go and replay/indices.go use —
// Go has no canonical derive-macro encoding and Borsh isn't in the
// retrieval pack, so every sum-type/struct codec in this module follows
// the same hand-written convention rather than inventing a new one per
// package. Logs are omitted from the wire encoding (they are reconstructed
// from the EVM run and from replay's indexed diff, not from SubmitResult
// itself, the same way a real transaction receipt's logs live in the
// receipt trie rather than inside the result the VM returns).
func (r *SubmitResult) Encode() []byte {
	buf := make([]byte, 0, 32+len(r.Output))
	buf = append(buf, submitResultVersion, byte(r.Status))

	var gasBuf [8]byte
	binary.BigEndian.PutUint64(gasBuf[:], r.GasUsed)
	buf = append(buf, gasBuf[:]...)

	buf = append(buf, r.ContractAddress[:]...)

	var outLen [4]byte
	binary.BigEndian.PutUint32(outLen[:], uint32(len(r.Output)))
	buf = append(buf, outLen[:]...)
	buf = append(buf, r.Output...)

	var errLen [2]byte
	binary.BigEndian.PutUint16(errLen[:], uint16(len(r.VMError)))
	buf = append(buf, errLen[:]...)
	buf = append(buf, r.VMError...)
	return buf
}

// DecodeSubmitResult parses Encode's wire format.
func DecodeSubmitResult(b []byte) (*SubmitResult, error) {
	if len(b) < 2+8+20+4 {
		return nil, hosterror.New(hosterror.CodeStateCorrupt)
	}
	r := &SubmitResult{Version: b[0], Status: Status(b[1])}
	cur := b[2:]

	r.GasUsed = binary.BigEndian.Uint64(cur[:8])
	cur = cur[8:]

	copy(r.ContractAddress[:], cur[:20])
	cur = cur[20:]

	outLen := binary.BigEndian.Uint32(cur[:4])
	cur = cur[4:]
	if uint32(len(cur)) < outLen+2 {
		return nil, hosterror.New(hosterror.CodeStateCorrupt)
	}
	r.Output = append([]byte(nil), cur[:outLen]...)
	cur = cur[outLen:]

	errLen := binary.BigEndian.Uint16(cur[:2])
	cur = cur[2:]
	if uint16(len(cur)) < errLen {
		return nil, hosterror.New(hosterror.CodeStateCorrupt)
	}
	r.VMError = string(cur[:errLen])
	return r, nil
}
