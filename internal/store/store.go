// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"

	"github.com/kotobadb/kotobadb/internal/errs"
	"github.com/kotobadb/kotobadb/internal/model"
)

// Store is the embedded, table-based key/value store backing every data
// series. bbolt's single active read-write transaction plus unlimited
// concurrent snapshot-isolated read-only transactions give the Query
// Engine reads that never block behind writers, for free.
type Store struct {
	db   *bolt.DB
	lock *flock.Flock
	path string
}

// Open opens (creating if absent) the store at path, acquiring an
// advisory file lock against concurrent processes and creating every
// bucket named in schema.go. If the on-disk schema version is
// incompatible, Open still succeeds; callers must consult Compatible to
// learn whether the store is usable, since migration is out of scope
// here.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.ConstraintError, fmt.Errorf("lock store: %w", err))
	}
	if !ok {
		return nil, errs.Newf(errs.ConstraintError, "store %s is locked by another process", path)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		lock.Unlock()
		return nil, errs.Wrap(errs.ConstraintError, fmt.Errorf("open store: %w", err))
	}

	s := &Store{db: db, lock: lock, path: path}
	if err := s.init(); err != nil {
		db.Close()
		lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets() {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		existing := meta.Get([]byte("schemaVersion"))
		if existing == nil {
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, uint32(SchemaVersion))
			return meta.Put([]byte("schemaVersion"), buf)
		}
		return nil
	})
}

// Compatible reports whether the on-disk schema version matches
// SchemaVersion. An incompatible store is treated as unavailable rather
// than migrated.
func (s *Store) Compatible() bool {
	var compatible bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		v := meta.Get([]byte("schemaVersion"))
		compatible = len(v) == 4 && binary.BigEndian.Uint32(v) == uint32(SchemaVersion)
		return nil
	})
	return compatible
}

// Close releases the database file and its advisory lock.
func (s *Store) Close() error {
	err := s.db.Close()
	_ = s.lock.Unlock()
	return err
}

// Tx is a per-file transaction: opened at FileStart, committed
// at FileEnd, rolled back on any error or cancellation.
type Tx struct {
	tx *bolt.Tx
}

// BeginFileTx opens a single read-write transaction spanning one
// downloaded file's worth of record writes.
func (s *Store) BeginFileTx() (*Tx, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, errs.Wrap(errs.ConstraintError, err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func (t *Tx) bucket(name string) *bolt.Bucket { return t.tx.Bucket([]byte(name)) }

// --- Data-version row (writer-owned; the Query Engine never touches this) ---

// PutDataVersion writes the data-version row for series within the given
// file transaction; the row is written at the end of that same
// transaction, alongside the file's last record.
func (t *Tx) PutDataVersion(series model.DataSeries, v model.DataVersion) error {
	b := t.bucket(dataVersionBucket)
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(series), buf)
}

// DeleteDataVersion nulls the data-version row, used by series-clobber and
// deleteSeries.
func (t *Tx) DeleteDataVersion(series model.DataSeries) error {
	return t.bucket(dataVersionBucket).Delete([]byte(series))
}

// GetDataVersion reads the current data-version row for series outside
// any file transaction (used by the Sync Coordinator at startup, never by
// the Query Engine).
func (s *Store) GetDataVersion(series model.DataSeries) (*model.DataVersion, error) {
	var out *model.DataVersion
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket([]byte(dataVersionBucket)).Get([]byte(series))
		if buf == nil {
			return nil
		}
		var v model.DataVersion
		if err := json.Unmarshal(buf, &v); err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

// idKey encodes a uint32 primary key as a fixed-width big-endian byte
// string so that bbolt's natural byte-lexicographic bucket ordering
// matches numeric ordering.
func idKey(id uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, id)
	return buf
}

// runeKey encodes a kanji codepoint the same way.
func runeKey(r rune) []byte { return idKey(uint32(r)) }
