package cas

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"go.etcd.io/bbolt"

	"github.com/nholden/verso/internal/store"
)

// BoltCAS stores blobs in the store database, zstd-compressed. Clinical
// metadata bodies are highly repetitive JSON, so compression typically
// shrinks them severalfold.
type BoltCAS struct {
	db  *store.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewBoltCAS creates a CAS backed by the store's blob bucket.
func NewBoltCAS(db *store.DB) (*BoltCAS, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	return &BoltCAS{db: db, enc: enc, dec: dec}, nil
}

// Put implements CAS.Put.
func (b *BoltCAS) Put(hash Hash, data []byte) error {
	if computed := Sum(data); computed != hash {
		return fmt.Errorf("hash mismatch: expected %s, got %s", hash, computed)
	}
	compressed := b.enc.EncodeAll(data, nil)
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(store.BucketBlobs)
		if bucket.Get(hash[:]) != nil {
			return nil
		}
		return bucket.Put(hash[:], compressed)
	})
}

// Get implements CAS.Get.
func (b *BoltCAS) Get(hash Hash) ([]byte, error) {
	var compressed []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(store.BucketBlobs).Get(hash[:])
		if data == nil {
			return fmt.Errorf("blob %s: not found", hash)
		}
		compressed = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.dec.DecodeAll(compressed, nil)
}

// Has implements CAS.Has.
func (b *BoltCAS) Has(hash Hash) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(store.BucketBlobs).Get(hash[:]) != nil
		return nil
	})
	return found, err
}
