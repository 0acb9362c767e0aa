// Package store defines the transactional key-value interface the
// stability pool is built on, plus the deterministic key encoding for
// every persisted entity. The federation's atomic-broadcast ordering
// primitive and its replicated key-value store are external
// collaborators (see spec §1); this package is the narrow surface this
// module needs from that store, modeled the way
// _examples/luxfi-evm/iface/database.go shapes its Database interface
// over a backing KV engine.
package store

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/luxfi/stabilitypool/pubkey"
)

// ErrKeyExists is returned by Tx.InsertNew when the key is already
// present — used to enforce that a deposit outpoint maps to exactly one
// account and never changes (invariant I6).
var ErrKeyExists = errors.New("store: key already exists")

// Key prefixes, one byte each, matching the module's persisted layout.
const (
	PrefixAccountBalance   byte = 0xE0
	PrefixDepositOutcome   byte = 0xE1
	PrefixEpochOutcome     byte = 0xE2
	PrefixLastEpochEnded   byte = 0xE3
	PrefixLastEpochSettled byte = 0xE4
	PrefixEpochEndVote     byte = 0xE5
	PrefixActionStaged     byte = 0xE6
)

// KeyValueReader wraps read access to a backing key-value store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps write access to a backing key-value store.
type KeyValueWriter interface {
	Put(key, value []byte) error
}

// KeyValueDeleter wraps delete access to a backing key-value store.
type KeyValueDeleter interface {
	Delete(key []byte) error
}

// Iterator walks a range of key-value pairs in key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Iteratee can construct key-ordered iterators over key prefixes.
type Iteratee interface {
	NewIterator(prefix []byte) Iterator
}

// Database is the full surface a Tx needs from the backing store.
type Database interface {
	KeyValueReader
	KeyValueWriter
	KeyValueDeleter
	Iteratee
	io.Closer
}

// AccountBalanceKey encodes the 0xE0 key for an account's balance record.
func AccountBalanceKey(account pubkey.XOnly) []byte {
	return append([]byte{PrefixAccountBalance}, account.Bytes()...)
}

// DepositOutcomeKey encodes the 0xE1 key for a deposit's outpoint record.
// Outpoints are opaque byte strings supplied by the surrounding
// transaction system (txid||index or equivalent); the module does not
// interpret them beyond using them as a unique lookup key.
func DepositOutcomeKey(outpoint []byte) []byte {
	return append([]byte{PrefixDepositOutcome}, outpoint...)
}

// EpochOutcomeKey encodes the 0xE2 key for an epoch's outcome.
func EpochOutcomeKey(epochID uint64) []byte {
	return appendU64(PrefixEpochOutcome, epochID)
}

// LastEpochEndedKey encodes the 0xE3 singleton key.
func LastEpochEndedKey() []byte { return []byte{PrefixLastEpochEnded} }

// LastEpochSettledKey encodes the 0xE4 singleton key.
func LastEpochSettledKey() []byte { return []byte{PrefixLastEpochSettled} }

// EpochEndVoteKey encodes the 0xE5 key for a peer's most recent EpochEnd
// vote.
func EpochEndVoteKey(peerID uint64) []byte {
	return appendU64(PrefixEpochEndVote, peerID)
}

// ActionStagedKey encodes the 0xE6 key for an account's staged action.
func ActionStagedKey(account pubkey.XOnly) []byte {
	return append([]byte{PrefixActionStaged}, account.Bytes()...)
}

func appendU64(prefix byte, v uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], v)
	return key
}
