package store

import (
	"bytes"
	"sort"
	"sync"
)

// Memory is an in-process Database backed by a map whose iterators walk
// keys in sorted order, used in tests
// and by peers that don't need the record to survive a restart. It is
// safe for concurrent use, though the module itself only ever drives it
// from the single-threaded consensus loop.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory Database.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) NewIterator(prefix []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([][2][]byte, len(keys))
	for i, k := range keys {
		entries[i] = [2][]byte{[]byte(k), append([]byte(nil), m.data[k]...)}
	}
	return &memoryIterator{entries: entries, pos: -1}
}

type memoryIterator struct {
	entries [][2][]byte
	pos     int
}

func (it *memoryIterator) Next() bool {
	it.pos++
	return it.pos < len(it.entries)
}

func (it *memoryIterator) Key() []byte   { return it.entries[it.pos][0] }
func (it *memoryIterator) Value() []byte { return it.entries[it.pos][1] }
func (it *memoryIterator) Release()      {}
func (it *memoryIterator) Error() error  { return nil }
