// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package store

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/kotobadb/kotobadb/internal/model"
)

func wordIndexValues(w *model.Word) map[string][]string {
	kc := make([]string, len(w.KanjiChars))
	for i, r := range w.KanjiChars {
		kc[i] = string(r)
	}
	return map[string][]string{
		"k":     w.Kanji,
		"r":     w.Kana,
		"h":     w.Hiragana,
		"kc":    kc,
		"gt_en": w.GlossTokensEn,
		"gt_l":  w.GlossTokensLoc,
	}
}

// UpsertWord writes w, maintaining every secondary index. Callers must
// have already run model.PopulateWordDerived(w).
func (t *Tx) UpsertWord(w *model.Word) error {
	b := t.bucket(wordsBuckets.Primary)
	key := idKey(w.ID)

	var old *model.Word
	if existing := b.Get(key); existing != nil {
		var o model.Word
		if err := json.Unmarshal(existing, &o); err != nil {
			return err
		}
		old = &o
	}

	buf, err := json.Marshal(w)
	if err != nil {
		return err
	}
	if err := b.Put(key, buf); err != nil {
		return err
	}

	oldValues := map[string][]string{}
	if old != nil {
		oldValues = wordIndexValues(old)
	}
	return reindex(t.tx, wordsBuckets, key, oldValues, wordIndexValues(w))
}

// DeleteWord removes the word with id, and its index entries, if present.
func (t *Tx) DeleteWord(id uint32) error {
	b := t.bucket(wordsBuckets.Primary)
	key := idKey(id)
	existing := b.Get(key)
	if existing == nil {
		return nil
	}
	var w model.Word
	if err := json.Unmarshal(existing, &w); err != nil {
		return err
	}
	if err := clearIndices(t.tx, wordsBuckets, key, wordIndexValues(&w)); err != nil {
		return err
	}
	return b.Delete(key)
}

// ClearWords empties the words series (used by Reset and deleteSeries).
func (t *Tx) ClearWords() error {
	return clearBuckets(t.tx, wordsBuckets)
}

// GetWord fetches a single word by id, or nil if absent.
func (s *Store) GetWord(id uint32) (*model.Word, error) {
	var out *model.Word
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket([]byte(wordsBuckets.Primary)).Get(idKey(id))
		if buf == nil {
			return nil
		}
		var w model.Word
		if err := json.Unmarshal(buf, &w); err != nil {
			return err
		}
		out = &w
		return nil
	})
	return out, err
}

// ViewWords runs fn against a read-only snapshot, never touching the
// data-version bucket.
func (s *Store) ViewWords(fn func(v *WordsView) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&WordsView{tx: tx})
	})
}

// WordsView exposes the read-only operations the Query Engine needs over
// the words series and its indices.
type WordsView struct{ tx *bolt.Tx }

func (v *WordsView) Get(id uint32) (*model.Word, error) {
	buf := v.tx.Bucket([]byte(wordsBuckets.Primary)).Get(idKey(id))
	if buf == nil {
		return nil, nil
	}
	var w model.Word
	if err := json.Unmarshal(buf, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (v *WordsView) byIndex(bucketName, value string, prefix bool) ([]uint32, error) {
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

func (v *WordsView) ByKanji(value string, prefix bool) ([]uint32, error) {
	return v.byIndex(wordsBuckets.Indices["k"], value, prefix)
}
func (v *WordsView) ByKana(value string, prefix bool) ([]uint32, error) {
	return v.byIndex(wordsBuckets.Indices["r"], value, prefix)
}
func (v *WordsView) ByHiragana(value string, prefix bool) ([]uint32, error) {
	return v.byIndex(wordsBuckets.Indices["h"], value, prefix)
}
func (v *WordsView) ByKanjiChar(value rune) ([]uint32, error) {
	return v.byIndex(wordsBuckets.Indices["kc"], string(value), false)
}
func (v *WordsView) ByGlossTokenEn(prefix string) ([]uint32, error) {
	return v.byIndex(wordsBuckets.Indices["gt_en"], prefix, true)
}
func (v *WordsView) ByGlossTokenLoc(prefix string) ([]uint32, error) {
	return v.byIndex(wordsBuckets.Indices["gt_l"], prefix, true)
}

func decodeIDKey(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func clearBuckets(tx *bolt.Tx, sb seriesBuckets) error {
	if err := tx.DeleteBucket([]byte(sb.Primary)); err != nil {
		return err
	}
	if _, err := tx.CreateBucket([]byte(sb.Primary)); err != nil {
		return err
	}
	for _, idx := range sb.Indices {
		if err := tx.DeleteBucket([]byte(idx)); err != nil {
			return err
		}
		if _, err := tx.CreateBucket([]byte(idx)); err != nil {
			return err
		}
	}
	return nil
}
