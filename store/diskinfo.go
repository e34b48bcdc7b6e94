package store

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/thicclatka/nefaxer"
)

// LoadDiskInfo returns the cached drive classification for this store, or
// ok=false if none has been recorded. It does not judge staleness: the
// caller compares the record's ProbedAtUnix against its own TTL.
func (s *Store) LoadDiskInfo() (info nefaxer.DiskInfo, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDiskInfo)
		v := b.Get([]byte(diskInfoKey))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &info)
	})
	if err != nil {
		return nefaxer.DiskInfo{}, false, nefaxer.NewConsistencyError("store.LoadDiskInfo", err)
	}
	return info, ok, nil
}

// CommitDiskInfo records a fresh drive classification, so the next run
// against this root can skip re-probing.
func (s *Store) CommitDiskInfo(info nefaxer.DiskInfo) error {
	v, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("store: marshal diskinfo: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDiskInfo)
		return b.Put([]byte(diskInfoKey), v)
	})
	if err != nil {
		return nefaxer.NewIOError("store.CommitDiskInfo", "", err)
	}
	return nil
}
