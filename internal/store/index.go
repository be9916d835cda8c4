// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package store

import (
	"bytes"

	bolt "go.etcd.io/bbolt"
)

// indexSeparator delimits the indexed value from the primary key inside a
// composite index-bucket key. 0x00 never appears in valid UTF-8 or in a
// 4-byte big-endian primary key, so it is an unambiguous delimiter.
const indexSeparator = 0x00

func compositeKey(value []byte, primary []byte) []byte {
	out := make([]byte, 0, len(value)+1+len(primary))
	out = append(out, value...)
	out = append(out, indexSeparator)
	out = append(out, primary...)
	return out
}

// putIndexEntry adds one (value -> primary) mapping to the named
// multi-entry index bucket.
func putIndexEntry(tx *bolt.Tx, bucketName string, value string, primary []byte) error {
	b := tx.Bucket([]byte(bucketName))
	return b.Put(compositeKey([]byte(value), primary), primary)
}

// deleteIndexEntry removes one (value -> primary) mapping.
func deleteIndexEntry(tx *bolt.Tx, bucketName string, value string, primary []byte) error {
	b := tx.Bucket([]byte(bucketName))
	return b.Delete(compositeKey([]byte(value), primary))
}

// rangeExact calls fn with the primary key of every entry indexed under
// exactly value, an exact point-key lookup rather than a prefix scan.
func rangeExact(tx *bolt.Tx, bucketName string, value string, fn func(primary []byte) error) error {
	b := tx.Bucket([]byte(bucketName))
	c := b.Cursor()
	p := append([]byte(value), indexSeparator)
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// rangePrefix calls fn with the primary key of every entry whose indexed
// value starts with prefix: scanning composite keys with byte-prefix prefix+0x00
// is exactly that range restricted to well-formed entries, and since
// 0x00 sorts below every valid value continuation byte, a plain
// byte-prefix scan on prefix alone already yields both the exact match
// and every extension, which is what "startsWith" additionally needs.
func rangePrefix(tx *bolt.Tx, bucketName string, prefix string, fn func(primary []byte) error) error {
	b := tx.Bucket([]byte(bucketName))
	c := b.Cursor()
	p := []byte(prefix)
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// reindex replaces all of a record's entries in the named index buckets.
// oldValues/newValues are keyed by index name (matching seriesBuckets.
// Indices' keys, e.g. "k", "r", "h").
func reindex(tx *bolt.Tx, buckets seriesBuckets, primary []byte, oldValues, newValues map[string][]string) error {
	for field, bucketName := range buckets.Indices {
		old := oldValues[field]
		neu := newValues[field]
		neuSet := make(map[string]struct{}, len(neu))
		for _, v := range neu {
			neuSet[v] = struct{}{}
		}
		oldSet := make(map[string]struct{}, len(old))
		for _, v := range old {
			oldSet[v] = struct{}{}
		}
		for _, v := range old {
			if _, keep := neuSet[v]; !keep {
				if err := deleteIndexEntry(tx, bucketName, v, primary); err != nil {
					return err
				}
			}
		}
		for _, v := range neu {
			if _, already := oldSet[v]; already {
				continue
			}
			if err := putIndexEntry(tx, bucketName, v, primary); err != nil {
				return err
			}
		}
	}
	return nil
}

// clearIndices removes every index entry for a record being deleted.
func clearIndices(tx *bolt.Tx, buckets seriesBuckets, primary []byte, values map[string][]string) error {
	for field, bucketName := range buckets.Indices {
		for _, v := range values[field] {
			if err := deleteIndexEntry(tx, bucketName, v, primary); err != nil {
				return err
			}
		}
	}
	return nil
}
