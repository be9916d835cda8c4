// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package shape implements the Result Shaper: it expands raw
// stored records and a Query Engine match into the public result shape,
// decoding packed fields and dereferencing related kanji/radicals.
package shape

import (
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/result"
)

// Gloss is one decoded gloss: text plus its unpacked type.
type Gloss struct {
	Text string
	Type model.GlossType
}

// Sense is a Word sense expanded for display.
type Sense struct {
	Glosses       []Gloss
	Lang          string
	PartsOfSpeech []string
	Field         []string
	Misc          []string
	Dialect       []string
	Note          string
	XRef          []string
	Antonym       []string
	LangSource    []model.LangSource
	// AppliesToMatch reports whether this sense applies to the headword
	// (and, for cross-reference lookups, the specific sense) the
	// originating match picked out, per the kapp/rapp/MatchedSense
	// invariant.
	AppliesToMatch bool
}

// WordResult is the public shape for one matched word.
type WordResult struct {
	ID uint32

	Kanji []string
	Kana  []string
	Senses []Sense

	MatchedText string
	Mode        result.MatchMode
	Range       result.MatchRange

	WaniKaniLevel *int
	Bunpro        struct {
		Vocab   *model.BunproLevel
		Grammar *model.BunproLevel
	}
}

// Word expands m into the public WordResult.
func Word(m *result.WordMatch) *WordResult {
	w := m.Word
	tags := m.PriorityTags()

	out := &WordResult{
		ID:          w.ID,
		Kanji:       w.Kanji,
		Kana:        w.Kana,
		MatchedText: m.MatchedText,
		Mode:        m.Mode,
		Range:       m.Range,
		Senses:      make([]Sense, len(w.Senses)),
	}

	if lvl, ok := model.ExtractWaniKaniLevel(tags); ok {
		out.WaniKaniLevel = &lvl
	}
	out.Bunpro.Vocab, out.Bunpro.Grammar = model.ExtractBunproLevels(tags)

	for i, s := range w.Senses {
		types := model.DecodeGlossTypes(s.GlossTypes, len(s.Glosses))
		glosses := make([]Gloss, len(s.Glosses))
		for gi, g := range s.Glosses {
			glosses[gi] = Gloss{Text: g, Type: types[gi]}
		}

		applies := true
		if m.KanjiIndex >= 0 {
			applies = model.Applies(s.KanjiApp, m.KanjiIndex)
		} else if m.KanaIndex >= 0 {
			applies = model.Applies(s.KanaApp, m.KanaIndex)
		}
		if m.MatchedSense != nil && *m.MatchedSense != i {
			applies = false
		}

		out.Senses[i] = Sense{
			Glosses:        glosses,
			Lang:           s.EffectiveLang(),
			PartsOfSpeech:  s.PartsOfSpeech,
			Field:          s.Field,
			Misc:           s.Misc,
			Dialect:        s.Dialect,
			Note:           s.Note,
			XRef:           s.XRef,
			Antonym:        s.Antonym,
			LangSource:     s.LangSource,
			AppliesToMatch: applies,
		}
	}
	return out
}

// NameResult is the public shape for one matched name.
type NameResult struct {
	ID uint32

	Kanji []string
	Kana  []string
	Trans []model.NameTranslation

	MatchedText string
	Mode        result.MatchMode
	Range       result.MatchRange
}

func Name(m *result.NameMatch) *NameResult {
	n := m.Name
	return &NameResult{
		ID:          n.ID,
		Kanji:       n.Kanji,
		Kana:        n.Kana,
		Trans:       n.Trans,
		MatchedText: m.MatchedText,
		Mode:        m.Mode,
		Range:       m.Range,
	}
}
