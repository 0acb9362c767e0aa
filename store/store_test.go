package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/stabilitypool/pubkey"
)

func TestMemoryGetPutDelete(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	has, err = db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, has)

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, db.Delete([]byte("k")))
	has, err = db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestMemoryIteratorOrderAndPrefix(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	require.NoError(t, db.Put([]byte{0xE0, 2}, []byte("b")))
	require.NoError(t, db.Put([]byte{0xE0, 1}, []byte("a")))
	require.NoError(t, db.Put([]byte{0xE1, 1}, []byte("other")))

	it := db.NewIterator([]byte{0xE0})
	defer it.Release()

	var keys [][]byte
	var values [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
		values = append(values, append([]byte(nil), it.Value()...))
	}
	require.NoError(t, it.Error())
	require.Equal(t, [][]byte{{0xE0, 1}, {0xE0, 2}}, keys)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, values)
}

func TestTxReadYourWrites(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	tx := NewTx(db)
	_, ok, err := tx.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)

	tx.Put([]byte("k"), []byte("v1"))
	v, ok, err := tx.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has, "uncommitted write must not leak to the backing database")

	require.NoError(t, tx.Commit())
	has, err = db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, has)
}

func TestTxDiscardDropsWrites(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	tx := NewTx(db)
	tx.Put([]byte("k"), []byte("v"))
	tx.Discard()

	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has)

	_, ok, err := tx.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTxInsertNewRejectsDuplicate(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	tx := NewTx(db)
	require.NoError(t, tx.InsertNew([]byte("k"), []byte("v1")))
	require.ErrorIs(t, tx.InsertNew([]byte("k"), []byte("v2")), ErrKeyExists)

	require.NoError(t, tx.Commit())
	tx2 := NewTx(db)
	require.ErrorIs(t, tx2.InsertNew([]byte("k"), []byte("v3")), ErrKeyExists)
}

func TestTxDeleteOverridesPendingPut(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	tx := NewTx(db)
	tx.Put([]byte("k"), []byte("v"))
	tx.Delete([]byte("k"))

	_, ok, err := tx.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTxPrefixEntriesMergesBackingAndPending(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	require.NoError(t, db.Put([]byte{0xE0, 1}, []byte("a")))
	require.NoError(t, db.Put([]byte{0xE0, 2}, []byte("stale")))

	tx := NewTx(db)
	tx.Put([]byte{0xE0, 3}, []byte("c"))
	tx.Delete([]byte{0xE0, 2})

	entries, err := tx.PrefixEntries([]byte{0xE0})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, []byte{0xE0, 1}, entries[0][0])
	require.Equal(t, []byte("a"), entries[0][1])
	require.Equal(t, []byte{0xE0, 3}, entries[1][0])
	require.Equal(t, []byte("c"), entries[1][1])
}

func TestKeyEncodingPrefixes(t *testing.T) {
	require.Equal(t, byte(PrefixAccountBalance), AccountBalanceKey(pubkey.XOnly{})[0])
	require.Equal(t, byte(PrefixDepositOutcome), DepositOutcomeKey([]byte{1})[0])
	require.Equal(t, []byte{PrefixLastEpochEnded}, LastEpochEndedKey())
	require.Equal(t, []byte{PrefixLastEpochSettled}, LastEpochSettledKey())
	require.Len(t, EpochOutcomeKey(5), 9)
	require.Len(t, EpochEndVoteKey(5), 9)
}
