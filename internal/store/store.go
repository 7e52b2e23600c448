// Package store wraps the bbolt database backing a verso store
// directory: blobs, branch heads, version records, tags, locks,
// comments, merge requests, and the audit history all live in named
// buckets of a single file, so multi-record invariants (head advance
// plus history entry) commit in one transaction.
package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// Buckets
var (
	BucketBlobs         = []byte("blobs")          // body hash -> zstd-compressed canonical JSON
	BucketDocuments     = []byte("documents")      // document id -> document record
	BucketVersions      = []byte("versions")       // version id -> version record
	BucketBranches      = []byte("branches")       // branch id -> branch record (head mutated via CAS only)
	BucketBranchNames   = []byte("branch-names")   // docID/name -> branch id
	BucketTags          = []byte("tags")           // tag id -> tag record
	BucketTagNames      = []byte("tag-names")      // docID/name -> tag id
	BucketLocks         = []byte("locks")          // lock id -> lock record
	BucketComments      = []byte("comments")       // comment id -> comment record
	BucketMergeRequests = []byte("merge-requests") // request id -> merge request record
	BucketHistory       = []byte("history")        // zero-padded sequence -> history entry
)

var buckets = [][]byte{
	BucketBlobs, BucketDocuments, BucketVersions, BucketBranches,
	BucketBranchNames, BucketTags, BucketTagNames, BucketLocks,
	BucketComments, BucketMergeRequests, BucketHistory,
}

// DB is a bbolt database with verso's buckets created.
type DB struct{ *bbolt.DB }

// Open opens (or creates) the store database at path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0666, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, e := tx.CreateBucketIfNotExists(b); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

// Close closes the underlying database.
func (db *DB) Close() error { return db.DB.Close() }

// PutJSON stores v JSON-encoded under key in bucket.
func (db *DB) PutJSON(bucket []byte, key string, v any) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return TxPutJSON(tx, bucket, key, v)
	})
}

// GetJSON loads the value under key into out. Returns false when the
// key is absent.
func (db *DB) GetJSON(bucket []byte, key string, out any) (bool, error) {
	var found bool
	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, out)
	})
	return found, err
}

// Delete removes key from bucket. Deleting an absent key is a no-op.
func (db *DB) Delete(bucket []byte, key string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// Has reports whether key exists in bucket.
func (db *DB) Has(bucket []byte, key string) (bool, error) {
	var found bool
	err := db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucket).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

// ForEach iterates every key/value pair in bucket.
func (db *DB) ForEach(bucket []byte, fn func(key, value []byte) error) error {
	return db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(fn)
	})
}

// NextSequence returns the next monotonic sequence number for bucket.
func (db *DB) NextSequence(bucket []byte) (uint64, error) {
	var seq uint64
	err := db.Update(func(tx *bbolt.Tx) error {
		var e error
		seq, e = tx.Bucket(bucket).NextSequence()
		return e
	})
	return seq, err
}

// TxPutJSON stores v JSON-encoded under key within an open transaction.
func TxPutJSON(tx *bbolt.Tx, bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

// TxGetJSON loads the value under key within an open transaction.
func TxGetJSON(tx *bbolt.Tx, bucket []byte, key string, out any) (bool, error) {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}
