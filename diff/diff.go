// Package diff implements the staged write set every EVM frame and every
// engine submission accumulates before it is committed or discarded
// (spec.md §3, §4.6). A Diff is an ordered map from raw key bytes to either
// a Modified value or a Deleted marker; Compose combines two diffs with the
// later one winning on any key conflict, and Apply(Apply(s,d1),d2) ==
// Apply(s, Compose(d1,d2)) — the composability invariant spec.md §3 names.
//
// The nested scope stack (Enter/Commit/Discard) is the generalization of
// the commit-context-closure pattern used throughout the teacher's
// x/vm/keeper/state_transition.go (`tmpCtx, commitFn := ctx.CacheContext()`)
// into an explicit, serializable structure, since this engine has no
// Cosmos CacheMultiStore to delegate to.
package diff

import "sort"

// Entry is one staged write: either a new value, or a deletion marker.
type Entry struct {
	Value   []byte
	Deleted bool
}

// Diff is a staged, ordered set of writes layered over a committed store.
type Diff struct {
	entries map[string]Entry
	order   []string // insertion order, for deterministic iteration
}

// New returns an empty Diff.
func New() *Diff {
	return &Diff{entries: make(map[string]Entry)}
}

// Set records a write of value at key.
func (d *Diff) Set(key []byte, value []byte) {
	d.put(key, Entry{Value: append([]byte(nil), value...)})
}

// Remove records a deletion at key.
func (d *Diff) Remove(key []byte) {
	d.put(key, Entry{Deleted: true})
}

func (d *Diff) put(key []byte, e Entry) {
	k := string(key)
	if _, exists := d.entries[k]; !exists {
		d.order = append(d.order, k)
	}
	d.entries[k] = e
}

// Get returns the staged entry for key, if any.
func (d *Diff) Get(key []byte) (Entry, bool) {
	e, ok := d.entries[string(key)]
	return e, ok
}

// Len reports the number of staged keys.
func (d *Diff) Len() int { return len(d.entries) }

// Keys returns the staged keys in insertion order.
func (d *Diff) Keys() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Each calls fn once per staged entry in insertion order.
func (d *Diff) Each(fn func(key string, e Entry)) {
	for _, k := range d.order {
		fn(k, d.entries[k])
	}
}

// Sorted returns the staged keys in lexicographic order — the canonical
// order used for serialization (Diff is Borsh-equivalent to a BTreeMap) and
// for RocksDB batch writes.
func (d *Diff) Sorted() []string {
	out := d.Keys()
	sort.Strings(out)
	return out
}

// Compose layers next on top of d: for any key present in both, next wins.
// Compose never mutates d or next; it returns a new Diff.
func Compose(d, next *Diff) *Diff {
	out := New()
	if d != nil {
		d.Each(func(k string, e Entry) { out.put([]byte(k), e) })
	}
	if next != nil {
		next.Each(func(k string, e Entry) { out.put([]byte(k), e) })
	}
	return out
}

// Reader is the minimal read surface Apply needs from the underlying store.
type Reader interface {
	Get(key []byte) (value []byte, ok bool)
}

// Writer is the minimal write surface Apply needs to commit to durable
// storage.
type Writer interface {
	Put(key, value []byte)
	Delete(key []byte)
}

// Apply commits every staged entry of d to w, in sorted key order so that
// two different in-memory map iteration orders always produce the same
// sequence of physical writes.
func Apply(d *Diff, w Writer) {
	for _, k := range d.Sorted() {
		e := d.entries[k]
		if e.Deleted {
			w.Delete([]byte(k))
		} else {
			w.Put([]byte(k), e.Value)
		}
	}
}

// Scope is one level of the nested revert stack EVM call frames use:
// CALL/CREATE push a new Scope on entry; a revert discards it, a normal
// return folds it (Commit) into its parent. The root scope is the whole
// transaction's diff.
type Scope struct {
	parent *Scope
	local  *Diff
}

// NewScope creates a root scope with no parent.
func NewScope() *Scope {
	return &Scope{local: New()}
}

// Enter pushes a child scope.
func (s *Scope) Enter() *Scope {
	return &Scope{parent: s, local: New()}
}

// Set stages a write visible only within this scope until committed.
func (s *Scope) Set(key, value []byte) { s.local.Set(key, value) }

// Remove stages a deletion visible only within this scope until committed.
func (s *Scope) Remove(key []byte) { s.local.Remove(key) }

// Get looks up key, searching this scope and then each ancestor in turn so
// a child frame observes its parent's uncommitted writes.
func (s *Scope) Get(key []byte) (Entry, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.local.Get(key); ok {
			return e, ok
		}
	}
	return Entry{}, false
}

// Commit folds this scope's writes into its parent (a CALL returning
// normally) and returns the parent. Committing the root scope is a no-op
// that returns itself.
func (s *Scope) Commit() *Scope {
	if s.parent == nil {
		return s
	}
	s.parent.local = Compose(s.parent.local, s.local)
	return s.parent
}

// Discard drops this scope's writes entirely (a CALL reverting) and
// returns the parent, implementing the revert-atomicity invariant
// (spec.md §8 P4): none of this scope's writes, nor any of its descendants'
// (already folded into it before they were discarded), become visible.
func (s *Scope) Discard() *Scope {
	if s.parent == nil {
		return NewScope()
	}
	return s.parent
}

// Root collapses the whole scope chain down to its flattened Diff — used
// once a transaction finishes to get the final diff to persist.
func (s *Scope) Root() *Diff {
	cur := s
	for cur.parent != nil {
		cur = cur.Commit()
	}
	return cur.local
}
