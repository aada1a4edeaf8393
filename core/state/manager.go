package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lendcore/storage"
)

// Manager provides typed persistence for the lending core on top of a
// key-value database. Keys are namespaced strings hashed with keccak256 so
// every backend sees fixed-width keys.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using JSON encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Delete(kvKey(key))
}

// NextCounter increments the counter stored under key and returns the new
// value. The first call returns 1.
func (m *Manager) NextCounter(key []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := m.db.Get(kvKey(key))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	var current uint64
	if len(data) == 8 {
		current = binary.BigEndian.Uint64(data)
	}
	current++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, current)
	if err := m.db.Put(kvKey(key), buf); err != nil {
		return 0, err
	}
	return current, nil
}

// KVAppendID appends id to the list stored under key. Duplicates are ignored
// so the index stays deterministic.
func (m *Manager) KVAppendID(key []byte, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	if _, err := m.KVGet(key, &ids); err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return m.KVPut(key, append(ids, id))
}

// KVGetIDs returns the id list stored under key, never nil.
func (m *Manager) KVGetIDs(key []byte) ([]uint64, error) {
	ids := []uint64{}
	if _, err := m.KVGet(key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
