package replay

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/aurora-is-near/engine-go/diff"
)

// Index implements spec.md §4.10's secondary indices on top of
// github.com/cockroachdb/pebble rather than another set of RocksDB column
// families: the teacher's go.mod already carries pebble as a direct
// dependency (go-ethereum's own path-based state scheme uses it) but
// nothing in the copied code exercised it, and pebble is exactly the
// "RocksDB column families or equivalent" the journal's secondary indices
// call for — an independent embedded store, so replay's bookkeeping never
// contends with kv/standalone's own RocksDB handle. Column families become
// a one-byte key prefix instead, the same discriminator shape
// state/prefix.go already uses for the primary backend.
type Index struct {
	db *pebble.DB
}

type indexPrefix byte

const (
	prefixBlockHashToHeight indexPrefix = 0x01
	prefixHeightToBlockHash indexPrefix = 0x02
	prefixBlockMetadata     indexPrefix = 0x03
	prefixReceiptToMessage  indexPrefix = 0x04
	prefixPositionToReceipt indexPrefix = 0x05
	prefixPositionToDiff    indexPrefix = 0x06
	prefixTrackedKey        indexPrefix = 0x07
)

func ikey(p indexPrefix, rest ...[]byte) []byte {
	n := 1
	for _, r := range rest {
		n += len(r)
	}
	out := make([]byte, 1, n)
	out[0] = byte(p)
	for _, r := range rest {
		out = append(out, r...)
	}
	return out
}

// OpenIndex opens (creating if absent) a pebble database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("replay: open index at %q: %w", path, err)
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

func (ix *Index) get(key []byte) ([]byte, bool, error) {
	v, closer, err := ix.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	closer.Close()
	return out, true, nil
}

func (ix *Index) put(key, value []byte) error {
	return ix.db.Set(key, value, pebble.Sync)
}

func beHeight(h uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h)
	return b[:]
}

func bePosition(p uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], p)
	return b[:]
}

// PutBlock records the block_hash<->height bijection plus the opaque
// metadata blob (spec.md §4.10: `block_hash -> height`, `height ->
// block_hash`, `block_hash -> metadata`).
func (ix *Index) PutBlock(hash common.Hash, height uint64, metadata []byte) error {
	if err := ix.put(ikey(prefixBlockHashToHeight, hash[:]), beHeight(height)); err != nil {
		return err
	}
	if err := ix.put(ikey(prefixHeightToBlockHash, beHeight(height)), hash[:]); err != nil {
		return err
	}
	return ix.put(ikey(prefixBlockMetadata, hash[:]), metadata)
}

func (ix *Index) HeightForBlock(hash common.Hash) (uint64, bool, error) {
	v, ok, err := ix.get(ikey(prefixBlockHashToHeight, hash[:]))
	if err != nil || !ok {
		return 0, ok, err
	}
	return binary.BigEndian.Uint64(v), true, nil
}

func (ix *Index) BlockForHeight(height uint64) (common.Hash, bool, error) {
	v, ok, err := ix.get(ikey(prefixHeightToBlockHash, beHeight(height)))
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}
	return common.BytesToHash(v), true, nil
}

func (ix *Index) BlockMetadata(hash common.Hash) ([]byte, bool, error) {
	return ix.get(ikey(prefixBlockMetadata, hash[:]))
}

// PutTransaction implements `receipt_id -> TransactionMessage`.
func (ix *Index) PutTransaction(msg TransactionMessage) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ix.put(ikey(prefixReceiptToMessage, []byte(msg.ReceiptID)), encoded)
}

func (ix *Index) Transaction(receiptID string) (TransactionMessage, bool, error) {
	v, ok, err := ix.get(ikey(prefixReceiptToMessage, []byte(receiptID)))
	if err != nil || !ok {
		return TransactionMessage{}, ok, err
	}
	var msg TransactionMessage
	if err := json.Unmarshal(v, &msg); err != nil {
		return TransactionMessage{}, false, err
	}
	return msg, true, nil
}

func positionKey(blockHash common.Hash, position uint16) []byte {
	return append(append([]byte{}, blockHash[:]...), bePosition(position)...)
}

// PutPositionReceipt implements `(block_hash, position) -> receipt_id`.
func (ix *Index) PutPositionReceipt(blockHash common.Hash, position uint16, receiptID string) error {
	return ix.put(ikey(prefixPositionToReceipt, positionKey(blockHash, position)), []byte(receiptID))
}

func (ix *Index) ReceiptAtPosition(blockHash common.Hash, position uint16) (string, bool, error) {
	v, ok, err := ix.get(ikey(prefixPositionToReceipt, positionKey(blockHash, position)))
	if err != nil || !ok {
		return "", ok, err
	}
	return string(v), true, nil
}

// PutDiff implements `(block_hash, position) -> diff bytes`, serializing d
// in its canonical sorted-key order (diff.Diff.Sorted) so the on-disk
// encoding is deterministic regardless of in-memory map iteration order.
func (ix *Index) PutDiff(blockHash common.Hash, position uint16, d *diff.Diff) error {
	return ix.put(ikey(prefixPositionToDiff, positionKey(blockHash, position)), encodeDiff(d))
}

func (ix *Index) Diff(blockHash common.Hash, position uint16) (*diff.Diff, bool, error) {
	v, ok, err := ix.get(ikey(prefixPositionToDiff, positionKey(blockHash, position)))
	if err != nil || !ok {
		return nil, ok, err
	}
	d, err := decodeDiff(v)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// TrackedKeyEntry is one historical write recorded against a storage key,
// implementing spec.md §4.10's TrackedKey log: `(key, height, position,
// value)` tuples, queryable per key independent of which transaction or
// block produced them.
type TrackedKeyEntry struct {
	Height   uint64
	Position uint16
	Value    []byte
	Deleted  bool
}

// RecordTrackedKeys appends one TrackedKeyEntry per key d touched, ordered
// so a later prefix scan over a single user key yields its history in
// (height, position) order.
func (ix *Index) RecordTrackedKeys(height uint64, position uint16, d *diff.Diff) error {
	var err error
	d.Each(func(key string, e diff.Entry) {
		if err != nil {
			return
		}
		trackKey := ikey(prefixTrackedKey, []byte(key), beHeight(height), bePosition(position))
		var stored []byte
		if e.Deleted {
			stored = []byte{0}
		} else {
			stored = append([]byte{1}, e.Value...)
		}
		err = ix.put(trackKey, stored)
	})
	return err
}

// TrackedKeyHistory returns every recorded write to key, in (height,
// position) order, by scanning the prefix `prefixTrackedKey ‖ key`.
func (ix *Index) TrackedKeyHistory(key []byte) ([]TrackedKeyEntry, error) {
	prefix := ikey(prefixTrackedKey, key)
	upper := append(append([]byte{}, prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)

	it, err := ix.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []TrackedKeyEntry
	for it.SeekGE(prefix); it.Valid(); it.Next() {
		k := it.Key()
		if len(k) != len(prefix)+10 {
			continue
		}
		height := binary.BigEndian.Uint64(k[len(prefix) : len(prefix)+8])
		position := binary.BigEndian.Uint16(k[len(prefix)+8:])
		v := it.Value()
		entry := TrackedKeyEntry{Height: height, Position: position}
		if len(v) == 0 || v[0] == 0 {
			entry.Deleted = true
		} else {
			entry.Value = append([]byte(nil), v[1:]...)
		}
		out = append(out, entry)
	}
	return out, it.Error()
}

// encodeDiff serializes d's sorted entries as a length-prefixed sequence:
// [keyLen u32][key][deleted byte][valueLen u32][value]* — the same
// length-prefix discipline xcc/promise.go's codec uses, chosen for the same
// reason: Go has no built-in canonical encoding for an ordered map, and
// Borsh isn't in the retrieval pack.
func encodeDiff(d *diff.Diff) []byte {
	var buf []byte
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(d.Len()))
	buf = append(buf, count[:]...)

	for _, k := range d.Sorted() {
		e, _ := d.Get([]byte(k))
		var klen [4]byte
		binary.BigEndian.PutUint32(klen[:], uint32(len(k)))
		buf = append(buf, klen[:]...)
		buf = append(buf, k...)
		if e.Deleted {
			buf = append(buf, 1)
			continue
		}
		buf = append(buf, 0)
		var vlen [4]byte
		binary.BigEndian.PutUint32(vlen[:], uint32(len(e.Value)))
		buf = append(buf, vlen[:]...)
		buf = append(buf, e.Value...)
	}
	return buf
}

func decodeDiff(b []byte) (*diff.Diff, error) {
	d := diff.New()
	if len(b) < 4 {
		return nil, fmt.Errorf("replay: truncated diff encoding")
	}
	count := binary.BigEndian.Uint32(b[:4])
	cur := b[4:]
	for i := uint32(0); i < count; i++ {
		if len(cur) < 4 {
			return nil, fmt.Errorf("replay: truncated diff entry %d", i)
		}
		klen := binary.BigEndian.Uint32(cur[:4])
		cur = cur[4:]
		if uint32(len(cur)) < klen+1 {
			return nil, fmt.Errorf("replay: truncated diff key %d", i)
		}
		key := cur[:klen]
		cur = cur[klen:]
		deleted := cur[0]
		cur = cur[1:]
		if deleted == 1 {
			d.Remove(key)
			continue
		}
		if len(cur) < 4 {
			return nil, fmt.Errorf("replay: truncated diff value length %d", i)
		}
		vlen := binary.BigEndian.Uint32(cur[:4])
		cur = cur[4:]
		if uint32(len(cur)) < vlen {
			return nil, fmt.Errorf("replay: truncated diff value %d", i)
		}
		d.Set(key, cur[:vlen])
		cur = cur[vlen:]
	}
	return d, nil
}
