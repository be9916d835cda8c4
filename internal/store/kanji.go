// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package store

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/kotobadb/kotobadb/internal/model"
)

// UpsertKanji writes k, keyed by codepoint. Kanji has no secondary
// indices of its own (lookups are always by exact codepoint, per spec
// §4.8's getKanji).
func (t *Tx) UpsertKanji(k *model.Kanji) error {
	b := t.bucket(kanjiBuckets.Primary)
	buf, err := json.Marshal(k)
	if err != nil {
		return err
	}
	return b.Put(runeKey(k.Codepoint), buf)
}

func (t *Tx) DeleteKanji(c rune) error {
	return t.bucket(kanjiBuckets.Primary).Delete(runeKey(c))
}

func (t *Tx) ClearKanji() error { return clearBuckets(t.tx, kanjiBuckets) }

func (s *Store) GetKanji(c rune) (*model.Kanji, error) {
	var out *model.Kanji
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket([]byte(kanjiBuckets.Primary)).Get(runeKey(c))
		if buf == nil {
			return nil
		}
		var k model.Kanji
		if err := json.Unmarshal(buf, &k); err != nil {
			return err
		}
		out = &k
		return nil
	})
	return out, err
}

func (s *Store) ViewKanji(fn func(v *KanjiView) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&KanjiView{tx: tx})
	})
}

type KanjiView struct{ tx *bolt.Tx }

func (v *KanjiView) Get(c rune) (*model.Kanji, error) {
	buf := v.tx.Bucket([]byte(kanjiBuckets.Primary)).Get(runeKey(c))
	if buf == nil {
		return nil, nil
	}
	var k model.Kanji
	if err := json.Unmarshal(buf, &k); err != nil {
		return nil, err
	}
	return &k, nil
}
