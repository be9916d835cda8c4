// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package result defines the match-result shapes shared by the Query
// Engine and the Ranking Engine, kept separate from
// both so neither package needs to import the other.
package result

import "github.com/kotobadb/kotobadb/internal/model"

// MatchMode classifies how a headword matched a search term.
type MatchMode string

const (
	MatchLexeme                   MatchMode = "lexeme"
	MatchKanaEquivalent            MatchMode = "kana-equivalent"
	MatchStartsWith                MatchMode = "starts-with"
	MatchStartsWithKanaEquivalent MatchMode = "starts-with-kana-equivalent"
	// MatchKanjiContainment is used by GetWordsWithKanji, which matches on
	// the kc[] singleton index rather than a headword; no single headword
	// is "the" match, so no MatchRange/kana-preference logic applies.
	MatchKanjiContainment MatchMode = "kanji-containment"
)

// MatchRange is a half-open [Start,End) rune-index range into the matched
// text.
type MatchRange struct {
	Start int
	End   int
}

// WordMatch is one matched word record plus the match metadata the
// Ranking Engine and Result Shaper need: which headword matched (by
// positional index into Kanji[] xor Kana[], so km[]/rm[] lookups stay
// aligned), how it matched, and — for cross-reference lookups — which
// single sense is considered matched.
type WordMatch struct {
	Word *model.Word

	// Exactly one of KanjiIndex/KanaIndex is >= 0 for a headword match.
	// Both are -1 when Mode is MatchKanjiContainment and for
	// GetWordsWithGloss matches, which match a gloss, not a headword.
	KanjiIndex int
	KanaIndex  int

	MatchedText string
	Mode        MatchMode
	Range       MatchRange

	// MatchedSense restricts a cross-reference match to a single sense,
	// nil meaning "every sense applies".
	MatchedSense *int

	// GlossConfidence and GlossLocalized are set only by GetWordsWithGloss
	// results; Localized reports whether the match came from the
	// requested lang's own gt_l index vs. the English fallback scan.
	GlossConfidence float64
	GlossLocalized  bool
	GlossSenseIdx   int
	GlossIdx        int
}

// IsKana reports whether the matched headword is a kana reading (used by
// the Ranking Engine's kana-search preference).
func (m *WordMatch) IsKana() bool { return m.KanaIndex >= 0 }

// PriorityTags returns the priority tags on the matched headword, or nil
// when no single headword matched (containment and gloss-search matches).
func (m *WordMatch) PriorityTags() []string {
	switch {
	case m.KanjiIndex >= 0 && m.KanjiIndex < len(m.Word.KanjiMeta):
		if meta := m.Word.KanjiMeta[m.KanjiIndex]; meta != nil {
			return meta.Priority
		}
	case m.KanaIndex >= 0 && m.KanaIndex < len(m.Word.KanaMeta):
		if meta := m.Word.KanaMeta[m.KanaIndex]; meta != nil {
			return meta.Priority
		}
	}
	return nil
}

// NameMatch mirrors WordMatch for the names series, which carries no
// priority tags or senses.
type NameMatch struct {
	Name        *model.Name
	KanjiIndex  int
	KanaIndex   int
	MatchedText string
	Mode        MatchMode
	Range       MatchRange
}
