// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package model

import (
	"sort"

	"github.com/kotobadb/kotobadb/internal/kana"
	"github.com/kotobadb/kotobadb/internal/tokenize"
)

// ComputeHiragana implements the h[] rule: deduplicated
// to_hiragana(x) for each x in the supplied headwords where the result
// contains at least one hiragana codepoint.
func ComputeHiragana(headwords []string) []string {
	seen := make(map[string]struct{}, len(headwords))
	out := make([]string, 0, len(headwords))
	for _, x := range headwords {
		h := kana.ToHiragana(x)
		if !kana.ContainsHiragana(h) {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// ComputeKanjiChars implements the kc[] rule: the set of single
// characters drawn from all kanji headwords.
func ComputeKanjiChars(kanjiHeadwords []string) []rune {
	seen := make(map[rune]struct{})
	var out []rune
	for _, k := range kanjiHeadwords {
		for _, r := range k {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ComputeGlossTokens implements the gt_en[]/gt_l[] rule: the first
// token of each gloss in English (or non-English, respectively) senses,
// after tokenize(gloss, lang) minus stop-words.
func ComputeGlossTokens(senses []Sense, english bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range senses {
		isEnglish := s.EffectiveLang() == "en"
		if isEnglish != english {
			continue
		}
		for _, g := range s.Glosses {
			toks := tokenize.Tokenize(g, s.EffectiveLang())
			if len(toks) == 0 {
				continue
			}
			first := toks[0]
			if _, ok := seen[first]; ok {
				continue
			}
			seen[first] = struct{}{}
			out = append(out, first)
		}
	}
	return out
}

// PopulateWordDerived recomputes every derived field on w in place: derived
// fields are never authoritative and are always recomputed at ingestion.
func PopulateWordDerived(w *Word) {
	w.Hiragana = ComputeHiragana(w.AllHeadwords())
	w.KanjiChars = ComputeKanjiChars(w.Kanji)
	w.GlossTokensEn = ComputeGlossTokens(w.Senses, true)
	w.GlossTokensLoc = ComputeGlossTokens(w.Senses, false)
}

// PopulateNameDerived recomputes Name.Hiragana.
func PopulateNameDerived(n *Name) {
	n.Hiragana = ComputeHiragana(n.AllHeadwords())
}

// glossBitsPerEntry is the packed gloss-type field's bit width: 2 bits per gloss, little-endian, capacity 32 glosses per sense.
const (
	glossBitsPerEntry = 2
	glossMaxPerSense  = 32
)

// EncodeGlossTypes packs one GlossType per gloss into the wire/storage
// uint64, in gloss order. types longer than glossMaxPerSense are
// truncated; that is a hard capacity limit, not a validation error. Word
// ingestion does not reject senses with more glosses either; their extra
// gloss types decode as GlossNone.
func EncodeGlossTypes(types []GlossType) uint64 {
	var packed uint64
	for i, t := range types {
		if i >= glossMaxPerSense {
			break
		}
		// GlossTM (4) does not fit in 2 bits and has no side channel to
		// carry it; store it as GlossFig, so DecodeGlossTypes returns
		// GlossFig for it.
		if t == GlossTM {
			t = GlossFig
		}
		v := uint64(t) & 0x3
		packed |= v << uint(i*glossBitsPerEntry)
	}
	return packed
}

// DecodeGlossTypes unpacks n gloss types from the packed field.
func DecodeGlossTypes(packed uint64, n int) []GlossType {
	out := make([]GlossType, n)
	for i := 0; i < n && i < glossMaxPerSense; i++ {
		v := (packed >> uint(i*glossBitsPerEntry)) & 0x3
		out[i] = GlossType(v)
	}
	return out
}
