// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package store

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/kotobadb/kotobadb/internal/model"
)

func nameIndexValues(n *model.Name) map[string][]string {
	return map[string][]string{
		"k": n.Kanji,
		"r": n.Kana,
		"h": n.Hiragana,
	}
}

// UpsertName writes n, maintaining every secondary index. Callers must
// have already run model.PopulateNameDerived(n).
func (t *Tx) UpsertName(n *model.Name) error {
	b := t.bucket(namesBuckets.Primary)
	key := idKey(n.ID)

	var old *model.Name
	if existing := b.Get(key); existing != nil {
		var o model.Name
		if err := json.Unmarshal(existing, &o); err != nil {
			return err
		}
		old = &o
	}

	buf, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := b.Put(key, buf); err != nil {
		return err
	}

	oldValues := map[string][]string{}
	if old != nil {
		oldValues = nameIndexValues(old)
	}
	return reindex(t.tx, namesBuckets, key, oldValues, nameIndexValues(n))
}

func (t *Tx) DeleteName(id uint32) error {
	b := t.bucket(namesBuckets.Primary)
	key := idKey(id)
	existing := b.Get(key)
	if existing == nil {
		return nil
	}
	var n model.Name
	if err := json.Unmarshal(existing, &n); err != nil {
		return err
	}
	if err := clearIndices(t.tx, namesBuckets, key, nameIndexValues(&n)); err != nil {
		return err
	}
	return b.Delete(key)
}

func (t *Tx) ClearNames() error { return clearBuckets(t.tx, namesBuckets) }

func (s *Store) ViewNames(fn func(v *NamesView) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&NamesView{tx: tx})
	})
}

type NamesView struct{ tx *bolt.Tx }

func (v *NamesView) Get(id uint32) (*model.Name, error) {
	buf := v.tx.Bucket([]byte(namesBuckets.Primary)).Get(idKey(id))
	if buf == nil {
		return nil, nil
	}
	var n model.Name
	if err := json.Unmarshal(buf, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (v *NamesView) byIndex(bucketName, value string, prefix bool) ([]uint32, error) {
	var ids []uint32
	scan := rangeExact
	if prefix {
		scan = rangePrefix
	}
	err := scan(v.tx, bucketName, value, func(primary []byte) error {
		ids = append(ids, decodeIDKey(primary))
		return nil
	})
	return ids, err
}

func (v *NamesView) ByKanji(value string, prefix bool) ([]uint32, error) {
	return v.byIndex(namesBuckets.Indices["k"], value, prefix)
}
func (v *NamesView) ByKana(value string, prefix bool) ([]uint32, error) {
	return v.byIndex(namesBuckets.Indices["r"], value, prefix)
}
func (v *NamesView) ByHiragana(value string, prefix bool) ([]uint32, error) {
	return v.byIndex(namesBuckets.Indices["h"], value, prefix)
}
