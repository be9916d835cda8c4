// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package rank implements the Ranking Engine: stable ordering
// of word/name matches by priority score, kana-search preference,
// match-length penalty, and gloss confidence.
package rank

import (
	"sort"
	"unicode/utf8"

	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/result"
)

// excessChars is len(matchedHeadword) - len(search), in runes; only
// meaningful in prefix mode.
func excessChars(m *result.WordMatch, searchRuneLen int) int {
	return utf8.RuneCountInString(m.MatchedText) - searchRuneLen
}

// Words orders matches for getWords and getWordsWithKanji (cross-reference
// lookups are returned in index order, unranked): in prefix mode primarily by non-decreasing
// excessChars, then non-increasing priority; in exact mode by
// non-increasing priority alone, with a kana-search preference tiebreak
// when searchIsKana. Sorts are stable.
func Words(matches []*result.WordMatch, searchRuneLen int, prefixMode, searchIsKana bool) []*result.WordMatch {
	out := make([]*result.WordMatch, len(matches))
	copy(out, matches)

	priority := make([]float64, len(out))
	excess := make([]int, len(out))
	for i, m := range out {
		if m.Mode == result.MatchKanjiContainment {
			priority[i] = model.CombinedPriorityScore(m.Word)
		} else {
			priority[i] = model.TagPriorityScore(m.PriorityTags())
		}
		excess[i] = excessChars(m, searchRuneLen)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if prefixMode && excess[i] != excess[j] {
			return excess[i] < excess[j]
		}
		if priority[i] != priority[j] {
			return priority[i] > priority[j]
		}
		if searchIsKana && out[i].IsKana() != out[j].IsKana() {
			return out[i].IsKana()
		}
		return false
	})
	return out
}

// GlossMatches orders getWordsWithGloss results by
// confidence*10 + priority + (localized?50:0) descending, id ascending on
// ties.
func GlossMatches(matches []*result.WordMatch) []*result.WordMatch {
	out := make([]*result.WordMatch, len(matches))
	copy(out, matches)

	score := make([]float64, len(out))
	for i, m := range out {
		s := m.GlossConfidence*10 + model.TagPriorityScore(m.PriorityTags())
		if m.GlossLocalized {
			s += 50
		}
		score[i] = s
	}

	sort.SliceStable(out, func(i, j int) bool {
		if score[i] != score[j] {
			return score[i] > score[j]
		}
		return out[i].Word.ID < out[j].Word.ID
	})
	return out
}

// Names orders name matches the same way word matches are in prefix mode,
// minus priority (names carry no priority tags).
func Names(matches []*result.NameMatch, searchRuneLen int, prefixMode bool) []*result.NameMatch {
	out := make([]*result.NameMatch, len(matches))
	copy(out, matches)

	excess := make([]int, len(out))
	for i, m := range out {
		excess[i] = utf8.RuneCountInString(m.MatchedText) - searchRuneLen
	}

	sort.SliceStable(out, func(i, j int) bool {
		if prefixMode && excess[i] != excess[j] {
			return excess[i] < excess[j]
		}
		return out[i].Name.ID < out[j].Name.ID
	})
	return out
}
