// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHiragana(t *testing.T) {
	// "ひく" and "ヒク" both normalize to the same hiragana string and must
	// dedupe; the pure-kanji "引" normalizes to itself and is dropped since
	// it contains no hiragana codepoint.
	out := ComputeHiragana([]string{"ひく", "ヒク", "引"})
	assert.Equal(t, []string{"ひく"}, out)
}

func TestComputeKanjiChars(t *testing.T) {
	out := ComputeKanjiChars([]string{"日本", "本日"})
	assert.Equal(t, []rune{'日', '本'}, out)
}

func TestComputeGlossTokensSplitsByLanguage(t *testing.T) {
	senses := []Sense{
		{Glosses: []string{"to pull"}, Lang: "en"},
		{Glosses: []string{"tirer"}, Lang: "fr"},
	}
	assert.Equal(t, []string{"pull"}, ComputeGlossTokens(senses, true))
	assert.Equal(t, []string{"tirer"}, ComputeGlossTokens(senses, false))
}

func TestPopulateWordDerived(t *testing.T) {
	w := &Word{
		ID:    1,
		Kanji: []string{"引"},
		Kana:  []string{"ひく"},
		Senses: []Sense{
			{Glosses: []string{"to pull"}, Lang: "en"},
		},
	}
	PopulateWordDerived(w)
	require.Equal(t, []string{"ひく"}, w.Hiragana)
	require.Equal(t, []rune{'引'}, w.KanjiChars)
	require.Equal(t, []string{"pull"}, w.GlossTokensEn)
	assert.Empty(t, w.GlossTokensLoc)
}

func TestEncodeDecodeGlossTypesRoundTrip(t *testing.T) {
	types := []GlossType{GlossExpl, GlossLit, GlossFig, GlossExpl}
	packed := EncodeGlossTypes(types)
	assert.Equal(t, types, DecodeGlossTypes(packed, len(types)))
}

func TestEncodeGlossTypesTMEncodedAsFig(t *testing.T) {
	packed := EncodeGlossTypes([]GlossType{GlossTM})
	assert.Equal(t, []GlossType{GlossFig}, DecodeGlossTypes(packed, 1))
}
