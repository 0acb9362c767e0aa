package store

import (
	"bytes"
	"sort"
)

// Tx is a read-your-writes transaction over a Database. Every consensus
// handler in this module receives one Tx per applied item; its writes
// either all commit together at the end of the round or none do,
// matching the "entire round's writes commit, or none do" guarantee the
// surrounding federation gives this module.
type Tx struct {
	db      Database
	pending map[string][]byte
	deleted map[string]bool
}

// NewTx opens a transaction against db.
func NewTx(db Database) *Tx {
	return &Tx{
		db:      db,
		pending: make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// Get returns the value for key, preferring any uncommitted write in this
// transaction over the backing database.
func (t *Tx) Get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if t.deleted[k] {
		return nil, false, nil
	}
	if v, ok := t.pending[k]; ok {
		return v, true, nil
	}
	has, err := t.db.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !has {
		return nil, false, nil
	}
	v, err := t.db.Get(key)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Put stages a write.
func (t *Tx) Put(key, value []byte) {
	k := string(key)
	delete(t.deleted, k)
	t.pending[k] = append([]byte(nil), value...)
}

// InsertNew stages a write and reports an error if the key already has a
// value — the duplicate-protection semantics §4.1 requires for deposit
// outpoints (invariant I6).
func (t *Tx) InsertNew(key, value []byte) error {
	_, ok, err := t.Get(key)
	if err != nil {
		return err
	}
	if ok {
		return ErrKeyExists
	}
	t.Put(key, value)
	return nil
}

// Delete stages a deletion.
func (t *Tx) Delete(key []byte) {
	k := string(key)
	delete(t.pending, k)
	t.deleted[k] = true
}

// PrefixEntries returns every key/value pair with the given prefix, in
// ascending key order, merging staged writes over the backing database.
func (t *Tx) PrefixEntries(prefix []byte) ([][2][]byte, error) {
	seen := make(map[string][]byte)

	it := t.db.NewIterator(prefix)
	defer it.Release()
	for it.Next() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		seen[string(k)] = v
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	for k, v := range t.pending {
		if bytes.HasPrefix([]byte(k), prefix) {
			seen[k] = v
		}
	}
	for k := range t.deleted {
		if bytes.HasPrefix([]byte(k), prefix) {
			delete(seen, k)
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2][]byte{[]byte(k), seen[k]})
	}
	return out, nil
}

// Commit applies every staged write and deletion to the backing database.
// A failure partway through leaves the database in an inconsistent state;
// the in-process Database implementations in this package never fail a
// Put/Delete, so in practice Commit is infallible for them.
func (t *Tx) Commit() error {
	for k, v := range t.pending {
		if err := t.db.Put([]byte(k), v); err != nil {
			return err
		}
	}
	for k := range t.deleted {
		if err := t.db.Delete([]byte(k)); err != nil {
			return err
		}
	}
	t.pending = make(map[string][]byte)
	t.deleted = make(map[string]bool)
	return nil
}

// Discard drops every staged write without touching the backing database,
// used when a round is cancelled mid-poll.
func (t *Tx) Discard() {
	t.pending = make(map[string][]byte)
	t.deleted = make(map[string]bool)
}
