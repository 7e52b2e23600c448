// Package cas provides content-addressed storage for document bodies,
// keyed by BLAKE3-256 hashes of their canonical encoding.
//
// Version records reference bodies by hash, so identical documents are
// stored once regardless of how many versions share them (restores and
// merges commonly do).
package cas

import (
	"encoding/hex"
	"fmt"
	"sync"

	"lukechampine.com/blake3"
)

// Hash is a BLAKE3-256 digest of a document body.
type Hash [32]byte

// String returns the hexadecimal form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Sum computes the BLAKE3 hash of data.
func Sum(data []byte) Hash {
	return blake3.Sum256(data)
}

// ParseHash decodes a hexadecimal hash string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("decode hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// CAS is the content-addressed blob store the version graph writes
// document bodies through.
type CAS interface {
	// Put stores data under its hash. Storing the same content twice
	// is a no-op.
	Put(hash Hash, data []byte) error

	// Get retrieves data by hash.
	Get(hash Hash) ([]byte, error)

	// Has reports whether content exists for the hash.
	Has(hash Hash) (bool, error)
}

// MemoryCAS is a thread-safe in-memory CAS used by tests and by
// embedders that keep the whole store ephemeral.
type MemoryCAS struct {
	mu   sync.RWMutex
	data map[Hash][]byte
}

// NewMemoryCAS creates an empty in-memory CAS.
func NewMemoryCAS() *MemoryCAS {
	return &MemoryCAS{data: make(map[Hash][]byte)}
}

// Put implements CAS.Put.
func (m *MemoryCAS) Put(hash Hash, data []byte) error {
	if computed := Sum(data); computed != hash {
		return fmt.Errorf("hash mismatch: expected %s, got %s", hash, computed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[hash]; exists {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[hash] = cp
	return nil
}

// Get implements CAS.Get.
func (m *MemoryCAS) Get(hash Hash) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.data[hash]
	if !exists {
		return nil, fmt.Errorf("blob %s: not found", hash)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Has implements CAS.Has.
func (m *MemoryCAS) Has(hash Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.data[hash]
	return exists, nil
}

// Len returns the number of stored blobs.
func (m *MemoryCAS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
