// Package store is the durable persistence layer: containers, networks,
// attachments and filesystem baselines all live in a single bbolt
// database file, gob-encoded per row. Grounded directly on the teacher's
// scon/database.go bucket-per-collection, gob-generics pattern.
package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const dbVersion = 1

const (
	bktMeta        = "meta"
	bktState       = "state"
	bktContainers  = "containers"
	bktNetworks    = "networks"
	bktAttachments = "attachments"
	bktBaselines   = "baselines"
)

const (
	kmVersion = "version"

	ksSubnetCursor = "subnetCursor"
	ksCIDCursor    = "cidCursor"
)

// ErrNotFound is returned when a get by key finds no row.
var ErrNotFound = errors.New("store: key not found")

// Store wraps a bbolt database with the buckets this daemon needs.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the bbolt file at path and ensures
// all buckets exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	boltDB, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	s := &Store{db: boltDB}
	if err := s.init(); err != nil {
		boltDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	buckets := []string{bktMeta, bktState, bktContainers, bktNetworks, bktAttachments, bktBaselines}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// no migrations yet; dbVersion is recorded for forward compatibility
	return setSimpleGob(s, bktMeta, kmVersion, dbVersion)
}

func getSimpleGob[T any](s *Store, bucket, key string) (T, error) {
	var val T
	err := s.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return bbolt.ErrBucketNotFound
		}
		data := bkt.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return gobDecode(data, &val)
	})
	return val, err
}

func setSimpleGob[T any](s *Store, bucket, key string, val T) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return bbolt.ErrBucketNotFound
		}
		data, err := gobEncode(val)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(key), data)
	})
}

func deleteSimple(s *Store, bucket, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return bbolt.ErrBucketNotFound
		}
		return bkt.Delete([]byte(key))
	})
}

func forEachGob[T any](s *Store, bucket string, fn func(key string, val *T) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return bbolt.ErrBucketNotFound
		}
		return bkt.ForEach(func(k, v []byte) error {
			var val T
			if err := gobDecode(v, &val); err != nil {
				return err
			}
			return fn(string(k), &val)
		})
	})
}

func gobDecode[T any](data []byte, val T) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(val)
}

func gobEncode[T any](val T) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
