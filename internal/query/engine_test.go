// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/result"
	"github.com/kotobadb/kotobadb/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/kotoba.db")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func upsertWord(t *testing.T, s *store.Store, w *model.Word) {
	t.Helper()
	model.PopulateWordDerived(w)
	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.UpsertWord(w))
	require.NoError(t, tx.Commit())
}

func upsertName(t *testing.T, s *store.Store, n *model.Name) {
	t.Helper()
	model.PopulateNameDerived(n)
	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.UpsertName(n))
	require.NoError(t, tx.Commit())
}

func upsertKanji(t *testing.T, s *store.Store, k *model.Kanji) {
	t.Helper()
	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.UpsertKanji(k))
	require.NoError(t, tx.Commit())
}

func upsertRadical(t *testing.T, s *store.Store, r *model.Radical) {
	t.Helper()
	tx, err := s.BeginFileTx()
	require.NoError(t, err)
	require.NoError(t, tx.UpsertRadical(r))
	require.NoError(t, tx.Commit())
}

func TestGetWordsExactMatchByKanjiKanaAndHiragana(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, &model.Word{
		ID: 1, Kanji: []string{"引く"}, Kana: []string{"ひく"},
		Senses: []model.Sense{{Glosses: []string{"to pull"}, Lang: "en"}},
	})

	e := New(s)

	matches, err := e.GetWords("引く", false, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(1), matches[0].Word.ID)

	matches, err = e.GetWords("ヒク", false, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1, "katakana search must fold to hiragana and match")
}

func TestGetWordsPrefixMatch(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, &model.Word{ID: 1, Kana: []string{"たべる"}, Senses: []model.Sense{{Glosses: []string{"to eat"}, Lang: "en"}}})
	upsertWord(t, s, &model.Word{ID: 2, Kana: []string{"たべもの"}, Senses: []model.Sense{{Glosses: []string{"food"}, Lang: "en"}}})

	e := New(s)
	matches, err := e.GetWords("たべ", true, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestGetWordsLimitTruncatesRankedResults(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, &model.Word{ID: 1, Kana: []string{"たべる"}, Senses: []model.Sense{{Glosses: []string{"to eat"}, Lang: "en"}}})
	upsertWord(t, s, &model.Word{ID: 2, Kana: []string{"たべもの"}, Senses: []model.Sense{{Glosses: []string{"food"}, Lang: "en"}}})

	e := New(s)
	matches, err := e.GetWords("たべ", true, 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestGetWordsWithKanjiFindsContainment(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, &model.Word{ID: 1, Kanji: []string{"引く"}, Kana: []string{"ひく"}, Senses: []model.Sense{{Glosses: []string{"to pull"}, Lang: "en"}}})
	upsertWord(t, s, &model.Word{ID: 2, Kanji: []string{"押す"}, Kana: []string{"おす"}, Senses: []model.Sense{{Glosses: []string{"to push"}, Lang: "en"}}})

	e := New(s)
	matches, err := e.GetWordsWithKanji('引')
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(1), matches[0].Word.ID)
	assert.Equal(t, result.MatchKanjiContainment, matches[0].Mode)
}

func TestGetWordsByCrossReferenceKanjiAndKana(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, &model.Word{ID: 1, Kanji: []string{"引く"}, Kana: []string{"ひく"}, Senses: []model.Sense{{Glosses: []string{"to pull"}, Lang: "en"}}})

	e := New(s)
	kanji := "引く"
	kana := "ひく"
	matches, err := e.GetWordsByCrossReference(CrossRefQuery{Kanji: &kanji, Kana: &kana})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "引く", matches[0].MatchedText)
}

func TestGetWordsWithGlossFindsEnglishSubstring(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, &model.Word{ID: 1, Kana: []string{"ひく"}, Senses: []model.Sense{{Glosses: []string{"to pull"}, Lang: "en"}}})
	upsertWord(t, s, &model.Word{ID: 2, Kana: []string{"おす"}, Senses: []model.Sense{{Glosses: []string{"to push"}, Lang: "en"}}})

	e := New(s)
	matches, err := e.GetWordsWithGloss("pull", "en", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(1), matches[0].Word.ID)
}

func TestGetWordsWithGlossFallsBackToEnglishWhenLangMissing(t *testing.T) {
	s := openTestStore(t)
	upsertWord(t, s, &model.Word{ID: 1, Kana: []string{"ひく"}, Senses: []model.Sense{{Glosses: []string{"to pull"}, Lang: "en"}}})

	e := New(s)
	matches, err := e.GetWordsWithGloss("pull", "fr", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1, "no French senses exist, so the English fallback scan must surface the word")
}

func TestGetNamesMatchesKanjiAndKana(t *testing.T) {
	s := openTestStore(t)
	upsertName(t, s, &model.Name{ID: 1, Kanji: []string{"田中"}, Kana: []string{"たなか"}, Trans: []model.NameTranslation{{Type: []string{"surname"}, Detail: []string{"Tanaka"}}}})

	e := New(s)
	matches, err := e.GetNames("田中")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(1), matches[0].Name.ID)
}

func TestGetKanjiExpandsComponentsAndSkipsMissing(t *testing.T) {
	s := openTestStore(t)
	upsertRadical(t, s, &model.Radical{ID: "057", Number: 57, Base: '弓'})
	upsertKanji(t, s, &model.Kanji{Codepoint: '引', Radical: model.RadicalRef{Index: 57}, Meanings: []string{"pull"}, OnReadings: []string{"in"}})

	e := New(s)
	var warnings []string
	results, err := e.GetKanji([]rune{'引', '未'}, "en", func(msg string) { warnings = append(warnings, msg) })
	require.NoError(t, err)
	require.Len(t, results, 1, "the missing codepoint must be skipped, not erred on")
	assert.Equal(t, '引', results[0].Codepoint)
	assert.Equal(t, []string{"pull"}, results[0].Meanings)
	assert.Empty(t, warnings)
}
