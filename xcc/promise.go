// Package xcc implements spec.md §4.8: the cross-contract-call precompile
// and its per-address router sub-account, translating an in-EVM call into
// a host promise graph.
//
// Grounded on original_source/etc/xcc-router/src/lib.rs's Router contract
// (initialize/execute/schedule/execute_scheduled/unwrap_and_refund_storage)
// and original_source/engine-tests/src/tests/xcc.rs's NearPromise shapes
// (Simple/Then/And), re-expressed in the teacher's hand-rolled-codec idiom
// (x/vm/types/codec.go) since there is no Borsh library in the pack and this
// engine only needs a codec for its own use, not byte-for-byte Borsh
// compatibility with the original Rust wire format.
package xcc

import (
	"encoding/binary"
	"errors"
	"math/big"
)

// ErrMalformedPromise is returned by Decode when the tag-byte stream is
// truncated or names an unknown variant.
var ErrMalformedPromise = errors.New("xcc: malformed promise encoding")

// PromiseCreateArgs is one NEAR cross-contract call: target account,
// method, raw args, attached balance (yoctoNEAR, a u128) and gas.
type PromiseCreateArgs struct {
	TargetAccountID string
	Method          string
	Args            []byte
	AttachedBalance *big.Int
	AttachedGas     uint64
}

// PromiseWithCallbackArgs is a base promise plus a single callback promise
// chained onto it with Then.
type PromiseWithCallbackArgs struct {
	Base     PromiseCreateArgs
	Callback PromiseCreateArgs
}

// promiseArgsKind tags PromiseArgs's three variants.
type promiseArgsKind byte

const (
	promiseArgsCreate promiseArgsKind = iota
	promiseArgsCallback
	promiseArgsRecursive
)

// PromiseArgs is spec.md §4.8's `PromiseArgs = Create | Callback(base, cb) |
// Recursive(NearPromise)`. Exactly one of the three fields is set,
// according to Kind.
type PromiseArgs struct {
	kind      promiseArgsKind
	create    *PromiseCreateArgs
	callback  *PromiseWithCallbackArgs
	recursive *NearPromise
}

func NewCreatePromiseArgs(c PromiseCreateArgs) PromiseArgs {
	return PromiseArgs{kind: promiseArgsCreate, create: &c}
}

func NewCallbackPromiseArgs(c PromiseWithCallbackArgs) PromiseArgs {
	return PromiseArgs{kind: promiseArgsCallback, callback: &c}
}

func NewRecursivePromiseArgs(p NearPromise) PromiseArgs {
	return PromiseArgs{kind: promiseArgsRecursive, recursive: &p}
}

// nearPromiseKind tags NearPromise's three variants: a single Create, a
// base promise with one callback chained via Then, or a fan-in of promises
// combined with And.
type nearPromiseKind byte

const (
	nearPromiseSimple nearPromiseKind = iota
	nearPromiseThen
	nearPromiseAnd
)

// NearPromise is the recursive promise tree the cross_contract_call
// precompile's caller builds up in Solidity before it is flattened into
// host promise-scheduling calls — spec.md §4.8's `NearPromise`.
type NearPromise struct {
	kind         nearPromiseKind
	simpleCreate *PromiseCreateArgs
	thenBase     *NearPromise
	thenCallback *PromiseCreateArgs
	and          []NearPromise
}

func NewSimplePromise(c PromiseCreateArgs) NearPromise {
	return NearPromise{kind: nearPromiseSimple, simpleCreate: &c}
}

func NewThenPromise(base NearPromise, callback PromiseCreateArgs) NearPromise {
	return NearPromise{kind: nearPromiseThen, thenBase: &base, thenCallback: &callback}
}

func NewAndPromise(promises []NearPromise) NearPromise {
	return NearPromise{kind: nearPromiseAnd, and: promises}
}

// CrossContractCallArgs is the precompile's whole decoded input: spec.md
// §4.8's `CrossContractCallArgs = Eager(PromiseArgs) | Delayed(PromiseArgs)`.
type CrossContractCallArgs struct {
	Delayed bool
	Promise PromiseArgs
}

// --- encoding ---
//
// A deliberately simple tag-byte-then-length-prefixed-fields format: every
// variant writes a one-byte tag, every []byte/string field is prefixed
// with a big-endian u32 length. Good enough for a format only this engine
// ever reads back (stored router state, replay journal), not a Borsh
// reimplementation.

func putUint32(buf []byte, v []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, v...)
}

func putString(buf []byte, s string) []byte {
	return putUint32(buf, []byte(s))
}

func putBigInt(buf []byte, n *big.Int) []byte {
	if n == nil {
		n = big.NewInt(0)
	}
	return putUint32(buf, n.Bytes())
}

func (c PromiseCreateArgs) encode(buf []byte) []byte {
	buf = putString(buf, c.TargetAccountID)
	buf = putString(buf, c.Method)
	buf = putUint32(buf, c.Args)
	buf = putBigInt(buf, c.AttachedBalance)
	var gasBuf [8]byte
	binary.BigEndian.PutUint64(gasBuf[:], c.AttachedGas)
	return append(buf, gasBuf[:]...)
}

func decodeUint32Field(data []byte) (value, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, ErrMalformedPromise
	}
	n := binary.BigEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, ErrMalformedPromise
	}
	return data[:n], data[n:], nil
}

func decodeCreateArgs(data []byte) (PromiseCreateArgs, []byte, error) {
	target, data, err := decodeUint32Field(data)
	if err != nil {
		return PromiseCreateArgs{}, nil, err
	}
	method, data, err := decodeUint32Field(data)
	if err != nil {
		return PromiseCreateArgs{}, nil, err
	}
	args, data, err := decodeUint32Field(data)
	if err != nil {
		return PromiseCreateArgs{}, nil, err
	}
	balance, data, err := decodeUint32Field(data)
	if err != nil {
		return PromiseCreateArgs{}, nil, err
	}
	if len(data) < 8 {
		return PromiseCreateArgs{}, nil, ErrMalformedPromise
	}
	gas := binary.BigEndian.Uint64(data)
	data = data[8:]

	return PromiseCreateArgs{
		TargetAccountID: string(target),
		Method:          string(method),
		Args:            append([]byte(nil), args...),
		AttachedBalance: new(big.Int).SetBytes(balance),
		AttachedGas:     gas,
	}, data, nil
}

// EncodeNearPromise serializes a NearPromise tree.
func EncodeNearPromise(p NearPromise) []byte {
	var buf []byte
	return appendNearPromise(buf, p)
}

func appendNearPromise(buf []byte, p NearPromise) []byte {
	switch p.kind {
	case nearPromiseSimple:
		buf = append(buf, byte(nearPromiseSimple))
		return p.simpleCreate.encode(buf)
	case nearPromiseThen:
		buf = append(buf, byte(nearPromiseThen))
		buf = appendNearPromise(buf, *p.thenBase)
		return p.thenCallback.encode(buf)
	case nearPromiseAnd:
		buf = append(buf, byte(nearPromiseAnd))
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(p.and)))
		buf = append(buf, countBuf[:]...)
		for _, child := range p.and {
			buf = appendNearPromise(buf, child)
		}
		return buf
	default:
		return buf
	}
}

// DecodeNearPromise parses a NearPromise tree, returning the unconsumed
// remainder of data.
func DecodeNearPromise(data []byte) (NearPromise, []byte, error) {
	if len(data) < 1 {
		return NearPromise{}, nil, ErrMalformedPromise
	}
	kind := nearPromiseKind(data[0])
	data = data[1:]
	switch kind {
	case nearPromiseSimple:
		create, rest, err := decodeCreateArgs(data)
		if err != nil {
			return NearPromise{}, nil, err
		}
		return NewSimplePromise(create), rest, nil
	case nearPromiseThen:
		base, rest, err := DecodeNearPromise(data)
		if err != nil {
			return NearPromise{}, nil, err
		}
		callback, rest, err := decodeCreateArgs(rest)
		if err != nil {
			return NearPromise{}, nil, err
		}
		return NewThenPromise(base, callback), rest, nil
	case nearPromiseAnd:
		if len(data) < 4 {
			return NearPromise{}, nil, ErrMalformedPromise
		}
		count := binary.BigEndian.Uint32(data)
		data = data[4:]
		children := make([]NearPromise, 0, count)
		for i := uint32(0); i < count; i++ {
			var child NearPromise
			var err error
			child, data, err = DecodeNearPromise(data)
			if err != nil {
				return NearPromise{}, nil, err
			}
			children = append(children, child)
		}
		return NewAndPromise(children), data, nil
	default:
		return NearPromise{}, nil, ErrMalformedPromise
	}
}

// EncodePromiseArgs serializes a bare PromiseArgs, without the Eager/Delayed
// tag — used by the router to persist a scheduled promise, which by
// definition is always delayed.
func EncodePromiseArgs(a PromiseArgs) []byte {
	buf := []byte{byte(a.kind)}
	switch a.kind {
	case promiseArgsCreate:
		buf = a.create.encode(buf)
	case promiseArgsCallback:
		buf = a.callback.Base.encode(buf)
		buf = a.callback.Callback.encode(buf)
	case promiseArgsRecursive:
		buf = appendNearPromise(buf, *a.recursive)
	}
	return buf
}

// DecodePromiseArgs parses a bare PromiseArgs encoded by EncodePromiseArgs.
func DecodePromiseArgs(data []byte) (PromiseArgs, error) {
	if len(data) < 1 {
		return PromiseArgs{}, ErrMalformedPromise
	}
	kind := promiseArgsKind(data[0])
	data = data[1:]
	switch kind {
	case promiseArgsCreate:
		create, _, err := decodeCreateArgs(data)
		if err != nil {
			return PromiseArgs{}, err
		}
		return NewCreatePromiseArgs(create), nil
	case promiseArgsCallback:
		base, rest, err := decodeCreateArgs(data)
		if err != nil {
			return PromiseArgs{}, err
		}
		callback, _, err := decodeCreateArgs(rest)
		if err != nil {
			return PromiseArgs{}, err
		}
		return NewCallbackPromiseArgs(PromiseWithCallbackArgs{Base: base, Callback: callback}), nil
	case promiseArgsRecursive:
		tree, _, err := DecodeNearPromise(data)
		if err != nil {
			return PromiseArgs{}, err
		}
		return NewRecursivePromiseArgs(tree), nil
	default:
		return PromiseArgs{}, ErrMalformedPromise
	}
}

// EncodeCrossContractCallArgs serializes the precompile's whole argument.
func EncodeCrossContractCallArgs(a CrossContractCallArgs) []byte {
	buf := make([]byte, 0, 64)
	if a.Delayed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, byte(a.Promise.kind))
	switch a.Promise.kind {
	case promiseArgsCreate:
		buf = a.Promise.create.encode(buf)
	case promiseArgsCallback:
		buf = a.Promise.callback.Base.encode(buf)
		buf = a.Promise.callback.Callback.encode(buf)
	case promiseArgsRecursive:
		buf = appendNearPromise(buf, *a.Promise.recursive)
	}
	return buf
}

// DecodeCrossContractCallArgs parses the precompile's whole argument.
func DecodeCrossContractCallArgs(data []byte) (CrossContractCallArgs, error) {
	if len(data) < 2 {
		return CrossContractCallArgs{}, ErrMalformedPromise
	}
	delayed := data[0] == 1
	kind := promiseArgsKind(data[1])
	data = data[2:]

	switch kind {
	case promiseArgsCreate:
		create, _, err := decodeCreateArgs(data)
		if err != nil {
			return CrossContractCallArgs{}, err
		}
		return CrossContractCallArgs{Delayed: delayed, Promise: NewCreatePromiseArgs(create)}, nil
	case promiseArgsCallback:
		base, rest, err := decodeCreateArgs(data)
		if err != nil {
			return CrossContractCallArgs{}, err
		}
		callback, _, err := decodeCreateArgs(rest)
		if err != nil {
			return CrossContractCallArgs{}, err
		}
		return CrossContractCallArgs{
			Delayed: delayed,
			Promise: NewCallbackPromiseArgs(PromiseWithCallbackArgs{Base: base, Callback: callback}),
		}, nil
	case promiseArgsRecursive:
		tree, _, err := DecodeNearPromise(data)
		if err != nil {
			return CrossContractCallArgs{}, err
		}
		return CrossContractCallArgs{Delayed: delayed, Promise: NewRecursivePromiseArgs(tree)}, nil
	default:
		return CrossContractCallArgs{}, ErrMalformedPromise
	}
}
