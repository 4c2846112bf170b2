// internal/repository/offline_repository.go
package repository

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"ecf-service/internal/model"
)

var (
	bucketEntries = []byte("journal")
	bucketIndex   = []byte("journal_ids")
)

// ErrSpoolFull is returned by Put once the spool holds maxSize entries.
var ErrSpoolFull = errors.New("offline spool is full")

// boltSpool keeps journal entries in insertion order in a local bbolt file
// until the database accepts them again.
type boltSpool struct {
	db      *bolt.DB
	maxSize int
	logger  *zap.Logger
}

// OpenSpool opens or creates the spool file. maxSize 0 means unbounded.
func OpenSpool(path string, maxSize int, logger *zap.Logger) (Spool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open spool: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketIndex)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create spool buckets: %w", err)
	}
	return &boltSpool{db: db, maxSize: maxSize, logger: logger.With(zap.String("component", "spool"))}, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// Put appends op. Putting an id that is already spooled replaces it in
// place.
func (s *boltSpool) Put(op *model.FiscalOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		index := tx.Bucket(bucketIndex)
		id := op.ID[:]

		if key := index.Get(id); key != nil {
			return entries.Put(append([]byte(nil), key...), data)
		}
		if s.maxSize > 0 && countKeys(entries) >= s.maxSize {
			return ErrSpoolFull
		}
		seq, err := entries.NextSequence()
		if err != nil {
			return err
		}
		key := seqKey(seq)
		if err := entries.Put(key, data); err != nil {
			return err
		}
		return index.Put(id, key)
	})
}

// Pending returns up to limit entries, oldest first.
func (s *boltSpool) Pending(limit int) ([]*model.FiscalOperation, error) {
	var ops []*model.FiscalOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(ops) >= limit {
				break
			}
			op := &model.FiscalOperation{}
			if err := json.Unmarshal(v, op); err != nil {
				s.logger.Warn("Skipping unreadable spool entry", zap.Binary("key", k), zap.Error(err))
				continue
			}
			ops = append(ops, op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read spool: %w", err)
	}
	return ops, nil
}

// Remove deletes the entry for id. Removing an unknown id is a no-op.
func (s *boltSpool) Remove(id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(bucketIndex)
		key := append([]byte(nil), index.Get(id[:])...)
		if len(key) == 0 {
			return nil
		}
		if err := tx.Bucket(bucketEntries).Delete(key); err != nil {
			return err
		}
		return index.Delete(id[:])
	})
}

func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func (s *boltSpool) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = countKeys(tx.Bucket(bucketEntries))
		return nil
	})
	return n, err
}

func (s *boltSpool) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close spool: %w", err)
	}
	return nil
}
