// Package standalone implements the off-chain kv.Backend: RocksDB
// (github.com/linxGnu/grocksdb) plus a versioned key layout that supports
// the time-travel reads spec.md §4.1 calls for. Physical layout for engine
// keys is `user_key ‖ be64(height) ‖ be16(position)`; a read at
// (height, position) returns the most recent write at or before that point,
// found by seeking to the largest key not exceeding that bound.
//
// Per spec.md §5 the standalone engine protects the whole database with a
// single process-wide lock rather than per-key locking — there is no
// internal parallelism to exploit, and a coarse lock keeps replay strictly
// ordered exactly as on-chain execution would be.
package standalone

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/linxGnu/grocksdb"

	errorsmod "cosmossdk.io/errors"

	"github.com/aurora-is-near/engine-go/kv"
)

const (
	tagDeleted byte = 0
	tagPresent byte = 1
)

// Store is the RocksDB-backed kv.Backend used by the standalone engine and
// the replay engine (replay/indices.go keeps its secondary indices in a
// separate pebble database, not in this one).
type Store struct {
	mu sync.Mutex // process-wide lock, see package doc

	db       *grocksdb.DB
	cfs      map[string]*grocksdb.ColumnFamilyHandle
	defaultH *grocksdb.ColumnFamilyHandle

	ro *grocksdb.ReadOptions
	wo *grocksdb.WriteOptions

	// cache holds resolved (userKey, height, position) -> value lookups, so
	// a storage slot read repeatedly within a block (or across replayed
	// transactions re-reading the same historical point) skips the RocksDB
	// SeekForPrev after its first resolution.
	cache *fastcache.Cache

	// cursor identifies the (block, position) of the transaction currently
	// being applied; every ReadStorage/WriteStorage call is relative to it.
	height   uint64
	position uint16

	input  []byte
	output []byte
}

// DefaultCF is the column family holding versioned engine storage keys.
const DefaultCF = "engine_storage"

// readCacheBytes bounds the hot-storage-slot read cache's backing memory.
const readCacheBytes = 32 * 1024 * 1024

// Open opens (creating if absent) a RocksDB database at path with the
// default engine-storage column family plus any extra column families the
// caller names.
func Open(path string, extraColumnFamilies ...string) (*Store, error) {
	names := append([]string{"default", DefaultCF}, extraColumnFamilies...)

	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetCreateIfMissingColumnFamilies(true)

	cfOpts := make([]*grocksdb.Options, len(names))
	for i := range names {
		cfOpts[i] = grocksdb.NewDefaultOptions()
	}

	db, handles, err := grocksdb.OpenDbColumnFamilies(opts, path, names, cfOpts)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "open rocksdb at %q", path)
	}

	cfs := make(map[string]*grocksdb.ColumnFamilyHandle, len(names))
	for i, n := range names {
		cfs[n] = handles[i]
	}

	return &Store{
		db:       db,
		cfs:      cfs,
		defaultH: cfs[DefaultCF],
		ro:       grocksdb.NewDefaultReadOptions(),
		wo:       grocksdb.NewDefaultWriteOptions(),
		cache:    fastcache.New(readCacheBytes),
	}, nil
}

// Close releases the underlying RocksDB handles.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ro.Destroy()
	s.wo.Destroy()
	s.db.Close()
	s.cache.Reset()
}

// DB exposes the underlying database for components that need to open and
// manage their own column families against it.
func (s *Store) DB() *grocksdb.DB { return s.db }

// CF returns a previously opened column family handle.
func (s *Store) CF(name string) (*grocksdb.ColumnFamilyHandle, bool) {
	h, ok := s.cfs[name]
	return h, ok
}

// SetCursor fixes the (block height, position within block) that subsequent
// storage operations are evaluated against. The replay engine calls this
// once per TransactionMessage before dispatching it (replay/journal.go).
func (s *Store) SetCursor(height uint64, position uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height, s.position = height, position
}

// SetInput stages the bytes the next ReadInput call will return, simulating
// the host's read_input for a replayed invocation.
func (s *Store) SetInput(input []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = input
}

// LastOutput returns the bytes most recently passed to ReturnOutput.
func (s *Store) LastOutput() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

func versionedKey(userKey []byte, height uint64, position uint16) []byte {
	buf := make([]byte, len(userKey)+10)
	n := copy(buf, userKey)
	binary.BigEndian.PutUint64(buf[n:], height)
	binary.BigEndian.PutUint16(buf[n+8:], position)
	return buf
}

// hasPrefix reports whether versioned key k was written for exactly userKey
// (i.e. its first len(userKey) bytes match and it carries a 10-byte suffix).
func hasPrefix(k, userKey []byte) bool {
	return len(k) == len(userKey)+10 && string(k[:len(userKey)]) == string(userKey)
}

// readAt resolves userKey at (height, position) via RocksDB's SeekForPrev,
// consulting the read cache first. A hit is safe to cache unconditionally: once
// a transaction at a given (height, position) commits, nothing ever
// rewrites an earlier cursor, so the resolved value for one exact bound
// never changes. Only positive hits are cached — negative lookups (a slot
// genuinely never written) are cheap for SeekForPrev to re-derive and
// caching them risks masking a later write landing at an
// earlier-than-expected cursor during replay re-runs.
func (s *Store) readAt(userKey []byte, height uint64, position uint16) (kv.Value, bool, error) {
	bound := versionedKey(userKey, height, position)

	if cached, ok := s.cache.HasGet(nil, bound); ok {
		return kv.OwnedValue(cached), true, nil
	}

	it := s.db.NewIteratorCF(s.ro, s.defaultH)
	defer it.Close()

	it.SeekForPrev(bound)
	if !it.Valid() {
		return nil, false, nil
	}
	k := cloneSlice(it.Key())
	if !hasPrefix(k, userKey) {
		return nil, false, nil
	}
	v := cloneSlice(it.Value())
	if len(v) == 0 || v[0] == tagDeleted {
		return nil, false, nil
	}
	value := v[1:]
	s.cache.Set(bound, value)
	return kv.OwnedValue(value), true, nil
}

func cloneSlice(s *grocksdb.Slice) []byte {
	defer s.Free()
	d := s.Data()
	out := make([]byte, len(d))
	copy(out, d)
	return out
}

var _ kv.Backend = (*Store)(nil)

func (s *Store) ReadInput(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input, nil
}

func (s *Store) ReturnOutput(_ context.Context, output []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = output
	return nil
}

func (s *Store) ReadStorage(_ context.Context, key []byte) (kv.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAt(key, s.height, s.position)
}

func (s *Store) StorageHasKey(_ context.Context, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok, err := s.readAt(key, s.height, s.position)
	return ok, err
}

func (s *Store) WriteStorage(_ context.Context, key, value []byte) (kv.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, hadPrior, err := s.readAt(key, s.height, s.position)
	if err != nil {
		return nil, false, err
	}

	vk := versionedKey(key, s.height, s.position)
	stored := make([]byte, 1+len(value))
	stored[0] = tagPresent
	copy(stored[1:], value)
	if err := s.db.PutCF(s.wo, s.defaultH, vk, stored); err != nil {
		return nil, false, errorsmod.Wrap(err, "write storage")
	}
	return prior, hadPrior, nil
}

func (s *Store) RemoveStorage(_ context.Context, key []byte) (kv.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, hadPrior, err := s.readAt(key, s.height, s.position)
	if err != nil {
		return nil, false, err
	}

	vk := versionedKey(key, s.height, s.position)
	if err := s.db.PutCF(s.wo, s.defaultH, vk, []byte{tagDeleted}); err != nil {
		return nil, false, errorsmod.Wrap(err, "remove storage")
	}
	return prior, hadPrior, nil
}

// CommitDiff durably applies every entry of d at (height, position) in a
// single RocksDB write batch — used by the replay engine once a
// transaction's in-memory diff.Diff has been fully computed, instead of
// writing one key at a time through WriteStorage/RemoveStorage.
func (s *Store) CommitDiff(height uint64, position uint16, entries map[string]DiffEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := grocksdb.NewWriteBatch()
	defer batch.Destroy()

	for key, e := range entries {
		vk := versionedKey([]byte(key), height, position)
		if e.Deleted {
			batch.PutCF(s.defaultH, vk, []byte{tagDeleted})
			continue
		}
		stored := make([]byte, 1+len(e.Value))
		stored[0] = tagPresent
		copy(stored[1:], e.Value)
		batch.PutCF(s.defaultH, vk, stored)
	}
	return s.db.Write(s.wo, batch)
}

// DiffEntry mirrors diff.Entry without importing the diff package, keeping
// kv/standalone free of a dependency on the higher-level diff composition
// logic it is merely a sink for.
type DiffEntry struct {
	Value   []byte
	Deleted bool
}

// ScanAllCurrent iterates every live (non-deleted) key at the current
// cursor across the whole keyspace, for replay.ExportSnapshot. Because
// every key carries a (height, position) suffix, the scan tracks the last
// user key seen and only yields once it moves to a new one, always taking
// the most recent version not after the cursor.
func (s *Store) ScanAllCurrent(fn func(key, value []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.db.NewIteratorCF(s.ro, s.defaultH)
	defer it.Close()

	var lastUserKey []byte
	var bestValue []byte
	var bestFound bool

	flush := func() error {
		if lastUserKey != nil && bestFound {
			return fn(lastUserKey, bestValue)
		}
		return nil
	}

	for it.SeekToFirst(); it.Valid(); it.Next() {
		k := cloneSlice(it.Key())
		if len(k) < 10 {
			continue
		}
		userKey := k[:len(k)-10]
		height := binary.BigEndian.Uint64(k[len(k)-10 : len(k)-2])
		position := binary.BigEndian.Uint16(k[len(k)-2:])
		if height > s.height || (height == s.height && position > s.position) {
			continue
		}

		if lastUserKey == nil || string(userKey) != string(lastUserKey) {
			if err := flush(); err != nil {
				return err
			}
			lastUserKey = append([]byte(nil), userKey...)
			bestFound = false
		}

		v := cloneSlice(it.Value())
		if len(v) > 0 && v[0] == tagPresent {
			bestValue = append([]byte(nil), v[1:]...)
			bestFound = true
		} else {
			bestFound = false
		}
	}
	return flush()
}
