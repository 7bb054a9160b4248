//go:build !(rp2040 || rp2350)

package nvs

import (
	"bytes"

	"go.etcd.io/bbolt"
)

var bucketName = []byte(Namespace)

// BoltStore is a filesystem-backed Store, used wherever the process has a
// filesystem (the target's /spiffs mount, or a regular path on dev/host
// builds), grounded on the retrieval pack's serebryakov7-j1708-stats
// manifest (a bbolt-backed telemetry store on the same class of device).
type BoltStore struct {
	db *bbolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, wrapErr("nvs.open", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, wrapErr("nvs.open", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if raw := b.Get([]byte(key)); raw != nil {
			v = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return nil, false, wrapErr("nvs.get", err)
	}
	return v, v != nil, nil
}

func (s *BoltStore) Set(key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
	return wrapErr("nvs.set", err)
}

func (s *BoltStore) Delete(key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	return wrapErr("nvs.delete", err)
}

func (s *BoltStore) ForEach(prefix string, fn func(key string, value []byte) error) error {
	pfx := []byte(prefix)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(pfx); k != nil && bytes.HasPrefix(k, pfx); k, v = c.Next() {
			if err := fn(string(k), append([]byte(nil), v...)); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapErr("nvs.foreach", err)
}

func (s *BoltStore) Close() error {
	return wrapErr("nvs.close", s.db.Close())
}
