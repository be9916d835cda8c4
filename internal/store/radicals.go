// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package store

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/kotobadb/kotobadb/internal/model"
)

func radicalIndexValues(r *model.Radical) map[string][]string {
	values := []string{string(r.Base)}
	if r.KanjiForm != 0 {
		values = append(values, string(r.KanjiForm))
	}
	return map[string][]string{"b": values}
}

// UpsertRadical writes r, keyed by its string ID ("061" or "061-2").
func (t *Tx) UpsertRadical(r *model.Radical) error {
	b := t.bucket(radicalsBuckets.Primary)
	key := []byte(r.ID)

	var old *model.Radical
	if existing := b.Get(key); existing != nil {
		var o model.Radical
		if err := json.Unmarshal(existing, &o); err != nil {
			return err
		}
		old = &o
	}

	buf, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := b.Put(key, buf); err != nil {
		return err
	}

	oldValues := map[string][]string{}
	if old != nil {
		oldValues = radicalIndexValues(old)
	}
	return reindex(t.tx, radicalsBuckets, key, oldValues, radicalIndexValues(r))
}

func (t *Tx) DeleteRadical(id string) error {
	b := t.bucket(radicalsBuckets.Primary)
	key := []byte(id)
	existing := b.Get(key)
	if existing == nil {
		return nil
	}
	var r model.Radical
	if err := json.Unmarshal(existing, &r); err != nil {
		return err
	}
	if err := clearIndices(t.tx, radicalsBuckets, key, radicalIndexValues(&r)); err != nil {
		return err
	}
	return b.Delete(key)
}

func (t *Tx) ClearRadicals() error { return clearBuckets(t.tx, radicalsBuckets) }

func (s *Store) GetRadical(id string) (*model.Radical, error) {
	var out *model.Radical
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket([]byte(radicalsBuckets.Primary)).Get([]byte(id))
		if buf == nil {
			return nil
		}
		var r model.Radical
		if err := json.Unmarshal(buf, &r); err != nil {
			return err
		}
		out = &r
		return nil
	})
	return out, err
}

func (s *Store) ViewRadicals(fn func(v *RadicalsView) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&RadicalsView{tx: tx})
	})
}

type RadicalsView struct{ tx *bolt.Tx }

func (v *RadicalsView) Get(id string) (*model.Radical, error) {
	buf := v.tx.Bucket([]byte(radicalsBuckets.Primary)).Get([]byte(id))
	if buf == nil {
		return nil, nil
	}
	var r model.Radical
	if err := json.Unmarshal(buf, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ByBase finds every radical (base and variants) whose glyph is ch,
// used by the Result Shaper's component classification.
func (v *RadicalsView) ByBase(ch rune) ([]*model.Radical, error) {
	var out []*model.Radical
	err := rangeExact(v.tx, radicalsBuckets.Indices["b"], string(ch), func(primary []byte) error {
		r, err := v.Get(string(primary))
		if err != nil || r == nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}
