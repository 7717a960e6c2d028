package state

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aurora-is-near/engine-go/hosterror"
)

// EngineState is the (chain_id, owner, bridge_prover, upgrade_delay, pause
// mask, key_manager, fixed_gas, erc20_fallback_address) tuple of spec.md
// §3. It is initialised once by `new` and stored whole under PrefixConfig.
type EngineState struct {
	ChainID              [32]byte
	OwnerAccountID       string
	BridgeProverID       string
	UpgradeDelayBlocks   uint64
	PausedMask           uint8
	KeyManagerAccountID  string // empty means unset
	HasFixedGas          bool
	FixedGas             uint64
	Erc20FallbackAddress common.Address
	HasErc20Fallback     bool
}

var configKey = Key(PrefixConfig)

// ErrAlreadyInitialized is returned by SetEngineState(..., onlyOnce=true)
// when `new` is called a second time against the same storage.
var ErrAlreadyInitialized = hosterror.New("ERR_ALREADY_INITIALIZED")

// GetEngineState loads the singleton EngineState, or (EngineState{}, false)
// if `new` has never been called.
func (k *Keeper) GetEngineState(ctx context.Context) (EngineState, bool, error) {
	v, ok, err := k.read(ctx, configKey)
	if err != nil || !ok {
		return EngineState{}, false, err
	}
	es, err := decodeEngineState(v)
	return es, err == nil, err
}

// InitEngineState implements `new` (spec.md §4.12): initialises EngineState
// exactly once; a second call fails with ErrAlreadyInitialized.
func (k *Keeper) InitEngineState(ctx context.Context, es EngineState) error {
	if _, exists, err := k.GetEngineState(ctx); err != nil {
		return err
	} else if exists {
		return ErrAlreadyInitialized
	}
	k.write(configKey, encodeEngineState(es))
	return nil
}

// SetEngineState overwrites the stored EngineState unconditionally — used
// by owner-gated mutations (pause, upgrade delay change, owner change …)
// that have already checked authorization.
func (k *Keeper) SetEngineState(_ context.Context, es EngineState) {
	k.write(configKey, encodeEngineState(es))
}

func encodeEngineState(es EngineState) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, es.ChainID[:]...)
	buf = appendString(buf, es.OwnerAccountID)
	buf = appendString(buf, es.BridgeProverID)
	buf = append(buf, beUint64(es.UpgradeDelayBlocks)...)
	buf = append(buf, es.PausedMask)
	buf = appendString(buf, es.KeyManagerAccountID)
	buf = append(buf, boolByte(es.HasFixedGas))
	buf = append(buf, beUint64(es.FixedGas)...)
	buf = append(buf, es.Erc20FallbackAddress[:]...)
	buf = append(buf, boolByte(es.HasErc20Fallback))
	return buf
}

func decodeEngineState(b []byte) (EngineState, error) {
	var es EngineState
	r := byteReader{buf: b}
	if !r.readFixed(es.ChainID[:]) {
		return es, errors.New("state: truncated engine state (chain id)")
	}
	var err error
	if es.OwnerAccountID, err = r.readString(); err != nil {
		return es, err
	}
	if es.BridgeProverID, err = r.readString(); err != nil {
		return es, err
	}
	u, ok := r.readUint64()
	if !ok {
		return es, errors.New("state: truncated engine state (upgrade delay)")
	}
	es.UpgradeDelayBlocks = u
	pm, ok := r.readByte()
	if !ok {
		return es, errors.New("state: truncated engine state (pause mask)")
	}
	es.PausedMask = pm
	if es.KeyManagerAccountID, err = r.readString(); err != nil {
		return es, err
	}
	hasFixed, ok := r.readByte()
	if !ok {
		return es, errors.New("state: truncated engine state (fixed gas flag)")
	}
	es.HasFixedGas = hasFixed != 0
	fg, ok := r.readUint64()
	if !ok {
		return es, errors.New("state: truncated engine state (fixed gas)")
	}
	es.FixedGas = fg
	var addr [20]byte
	if !r.readFixed(addr[:]) {
		return es, errors.New("state: truncated engine state (fallback address)")
	}
	es.Erc20FallbackAddress = common.Address(addr)
	hasFallback, ok := r.readByte()
	if !ok {
		return es, errors.New("state: truncated engine state (fallback flag)")
	}
	es.HasErc20Fallback = hasFallback != 0
	return es, nil
}

func beUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, beUint32(uint32(len(s)))...)
	return append(buf, s...)
}

func beUint32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// byteReader is a tiny cursor used by the hand-written EngineState codec —
// intentionally not reflection-based, matching how the teacher's own
// x/vm/types/codec.go hand-writes its amino registration rather than
// deriving it.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) readFixed(dst []byte) bool {
	if len(r.buf)-r.pos < len(dst) {
		return false
	}
	copy(dst, r.buf[r.pos:r.pos+len(dst)])
	r.pos += len(dst)
	return true
}

func (r *byteReader) readByte() (byte, bool) {
	if len(r.buf)-r.pos < 1 {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

func (r *byteReader) readUint64() (uint64, bool) {
	if len(r.buf)-r.pos < 8 {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, true
}

func (r *byteReader) readUint32() (uint32, bool) {
	if len(r.buf)-r.pos < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, true
}

func (r *byteReader) readString() (string, error) {
	n, ok := r.readUint32()
	if !ok {
		return "", errors.New("state: truncated string length")
	}
	if len(r.buf)-r.pos < int(n) {
		return "", errors.New("state: truncated string body")
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}
