// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotobadb/kotobadb/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kotoba.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func upsertWord(t *testing.T, s *Store, w *model.Word) {
	t.Helper()
	model.PopulateWordDerived(w)
	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.UpsertWord(w))
	require.NoError(t, tx.Commit())
}

func sampleWord(id uint32) *model.Word {
	return &model.Word{
		ID:    id,
		Kanji: []string{"引く"},
		Kana:  []string{"ひく"},
		Senses: []model.Sense{
			{Glosses: []string{"to pull"}, Lang: "en"},
		},
	}
}

func TestStoreOpenIsCompatible(t *testing.T) {
	s := openTestStore(t)
	assert.True(t, s.Compatible())
}

func TestUpsertAndGetWord(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, sampleWord(1000000))

	got, err := s.GetWord(1000000)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"引く"}, got.Kanji)
	assert.Equal(t, []string{"ひく"}, got.Hiragana)
}

func TestWordSecondaryIndices(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, sampleWord(1))

	err := s.ViewWords(func(v *WordsView) error {
		ids, err := v.ByKanji("引く", false)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, ids)

		ids, err = v.ByKana("ひく", false)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, ids)

		ids, err = v.ByKanjiChar('引')
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, ids)

		ids, err = v.ByGlossTokenEn("pull")
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteWordRemovesIndexEntries(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, sampleWord(1))

	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.DeleteWord(1))
	require.NoError(t, tx.Commit())

	got, err := s.GetWord(1)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.ViewWords(func(v *WordsView) error {
		ids, err := v.ByKanji("引く", false)
		require.NoError(t, err)
		assert.Empty(t, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestUpsertWordReindexesOnChange(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, sampleWord(1))

	updated := sampleWord(1)
	updated.Kanji = []string{"曳く"}
	upsertWord(t, s, updated)

	err := s.ViewWords(func(v *WordsView) error {
		ids, err := v.ByKanji("引く", false)
		require.NoError(t, err)
		assert.Empty(t, ids, "stale index entry for the old headword must be gone")

		ids, err = v.ByKanji("曳く", false)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestDataVersionRow(t *testing.T) {
	s := openTestStore(t)

	v, err := s.GetDataVersion(model.SeriesWords)
	require.NoError(t, err)
	assert.Nil(t, v)

	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	want := model.DataVersion{VersionNumber: model.VersionNumber{Major: 1, Minor: 2, Patch: 3}, Lang: "en"}
	require.NoError(t, tx.PutDataVersion(model.SeriesWords, want))
	require.NoError(t, tx.Commit())

	got, err := s.GetDataVersion(model.SeriesWords)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestClearSeriesEmptiesPrimaryAndIndices(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, sampleWord(1))
	upsertWord(t, s, sampleWord(2))

	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.ClearSeries(model.SeriesWords))
	require.NoError(t, tx.Commit())

	got, err := s.GetWord(1)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.ViewWords(func(v *WordsView) error {
		ids, err := v.ByKanji("引く", false)
		require.NoError(t, err)
		assert.Empty(t, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestRadicalsByBaseFindsVariants(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.UpsertRadical(&model.Radical{ID: "061", Base: '⼸', Number: 57}))
	require.NoError(t, tx.UpsertRadical(&model.Radical{ID: "061-2", Base: '弓', Number: 57}))
	require.NoError(t, tx.Commit())

	var byBow, byBowKanji []*model.Radical
	err = s.ViewRadicals(func(v *RadicalsView) error {
		var err error
		byBow, err = v.ByBase('⼸')
		if err != nil {
			return err
		}
		byBowKanji, err = v.ByBase('弓')
		return err
	})
	require.NoError(t, err)
	require.Len(t, byBow, 1)
	assert.Equal(t, "061", byBow[0].ID)
	require.Len(t, byBowKanji, 1)
	assert.Equal(t, "061-2", byBowKanji[0].ID)
}

func TestKanjiGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	k := &model.Kanji{Codepoint: '引', Radical: model.RadicalRef{Index: 57}, Meanings: []string{"pull"}}

	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.UpsertKanji(k))
	require.NoError(t, tx.Commit())

	got, err := s.GetKanji('引')
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"pull"}, got.Meanings)

	missing, err := s.GetKanji('未')
	require.NoError(t, err)
	assert.Nil(t, missing)
}
