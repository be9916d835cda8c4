// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package shape

import (
	"fmt"

	"github.com/kotobadb/kotobadb/internal/kana"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/store"
)

// Component is one classified component character of a kanji's
// decomposition string.
type Component struct {
	Codepoint rune

	// Radical is set when the component resolved to a radical glyph.
	Radical *model.Radical
	// IsOwnRadical reports whether Radical is the kanji's own radical.
	IsOwnRadical bool
	// Base is set when Radical is a variant, naming its base entry.
	Base *model.Radical

	// Kanji is set when the component resolved to a stored kanji instead.
	Kanji *model.Kanji

	// Reading and Label are set when the component resolved to a bare
	// katakana character with no radical/kanji record: Reading is its
	// romanization, Label is the lang="ja" localized description.
	Reading string
	Label   string
}

// KanjiResult is the public shape for getKanji.
type KanjiResult struct {
	Codepoint rune

	OnReadings     []string
	KunReadings    []string
	NanoriReadings []string

	Meanings    []string
	MeaningLang string

	Radical       *model.Radical
	RadicalNelson *int

	ReferenceCodes map[string]string

	StrokeCount int
	Grade       int
	Frequency   int
	JLPT        int
	KanjiKentei int
	WaniKani    int

	Components []Component
	Related    []*model.Kanji
}

// radicalID formats a kanji's radical index the way radical records key
// themselves: a zero-padded three-digit base ID.
func radicalID(index int) string {
	return fmt.Sprintf("%03d", index)
}

// pickRadical prefers a non-variant entry among radicals sharing a glyph;
// if every candidate is a variant, it prefers the one whose base matches
// ownBaseID (the kanji's own radical reference), falling back to the first
// variant found.
func pickRadical(rads []*model.Radical, ownBaseID string) *model.Radical {
	for _, r := range rads {
		if !r.IsVariant() {
			return r
		}
	}
	for _, r := range rads {
		if r.BaseID() == ownBaseID {
			return r
		}
	}
	return rads[0]
}

// classifyComponent resolves one component character through the
// radical -> stored-kanji -> katakana -> warn-and-skip chain.
func classifyComponent(s *store.Store, ch rune, k *model.Kanji, lang string, logWarning func(string)) (*Component, error) {
	var rads []*model.Radical
	if err := s.ViewRadicals(func(v *store.RadicalsView) error {
		var err error
		rads, err = v.ByBase(ch)
		return err
	}); err != nil {
		return nil, err
	}
	if len(rads) > 0 {
		chosen := pickRadical(rads, radicalID(k.Radical.Index))
		comp := &Component{
			Codepoint:    ch,
			Radical:      chosen,
			IsOwnRadical: chosen.BaseID() == radicalID(k.Radical.Index),
		}
		if chosen.IsVariant() {
			base, err := s.GetRadical(chosen.BaseID())
			if err != nil {
				return nil, err
			}
			comp.Base = base
		}
		return comp, nil
	}

	if sk, err := s.GetKanji(ch); err != nil {
		return nil, err
	} else if sk != nil {
		return &Component{Codepoint: ch, Kanji: sk}, nil
	}

	if kana.IsKatakana(ch) {
		comp := &Component{Codepoint: ch}
		if reading, ok := kana.RomanizeKatakana(ch); ok {
			comp.Reading = reading
		}
		if lang == "ja" {
			comp.Label = "片仮名の" + string(ch)
		}
		return comp, nil
	}

	if logWarning != nil {
		logWarning(fmt.Sprintf("kanji %q: unresolved component %q", string(k.Codepoint), string(ch)))
	}
	return nil, nil
}

// Kanji expands a stored Kanji record into its public shape, resolving its
// radical, classifying each component character, and dereferencing its
// related-kanji list.
func Kanji(s *store.Store, k *model.Kanji, lang string, logWarning func(string)) (*KanjiResult, error) {
	rad, err := s.GetRadical(radicalID(k.Radical.Index))
	if err != nil {
		return nil, err
	}

	out := &KanjiResult{
		Codepoint:      k.Codepoint,
		OnReadings:     k.OnReadings,
		KunReadings:    k.KunReadings,
		NanoriReadings: k.NanoriReadings,
		Meanings:       k.Meanings,
		MeaningLang:    k.MeaningLang,
		Radical:        rad,
		RadicalNelson:  k.Radical.Nelson,
		ReferenceCodes: k.ReferenceCodes,
		StrokeCount:    k.StrokeCount,
		Grade:          k.Grade,
		Frequency:      k.Frequency,
		JLPT:           k.JLPT,
		KanjiKentei:    k.KanjiKentei,
		WaniKani:       k.WaniKani,
	}

	for _, ch := range k.Components {
		comp, err := classifyComponent(s, ch, k, lang, logWarning)
		if err != nil {
			return nil, err
		}
		if comp != nil {
			out.Components = append(out.Components, *comp)
		}
	}

	for _, r := range k.Related {
		rk, err := s.GetKanji(r)
		if err != nil {
			return nil, err
		}
		if rk != nil {
			out.Related = append(out.Related, rk)
		}
	}

	return out, nil
}
