package external

import (
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const (
	boltFileName       = "paykit.db"
	boltFilePermission = 0600
)

var rootBucket = []byte("paykit")

// BoltStorage is the reference persistent Storage, a single bbolt bucket
// keyed by the opaque strings its callers namespace themselves
// (ReceiptManager uses "receipt/<uuid>" and "receipt_idx/<peer-hex>/<uuid>").
// This mirrors channeldb's pattern of wrapping a single bolt handle
// rather than exposing bucket management to callers.
type BoltStorage struct {
	db *bbolt.DB
}

// OpenBoltStorage opens (creating if absent) a bbolt database rooted at
// dir.
func OpenBoltStorage(dir string) (*BoltStorage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, boltFileName)
	db, err := bbolt.Open(path, boltFilePermission, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStorage{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

// Put implements Storage.
func (s *BoltStorage) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rootBucket)
		cp := make([]byte, len(value))
		copy(cp, value)
		return b.Put([]byte(key), cp)
	})
}

// Get implements Storage.
func (s *BoltStorage) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rootBucket)
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List implements Storage, returning every key with the given prefix.
func (s *BoltStorage) List(prefix string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rootBucket)
		c := b.Cursor()
		pfx := []byte(prefix)
		for k, _ := c.Seek(pfx); k != nil && hasPrefix(k, pfx); k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements Storage.
func (s *BoltStorage) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rootBucket)
		return b.Delete([]byte(key))
	})
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
