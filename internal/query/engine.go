// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package query

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/kotobadb/kotobadb/internal/kana"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/rank"
	"github.com/kotobadb/kotobadb/internal/result"
	"github.com/kotobadb/kotobadb/internal/shape"
	"github.com/kotobadb/kotobadb/internal/store"
	"github.com/kotobadb/kotobadb/internal/tokenize"
)

var foldCaser = cases.Fold()

func caseFold(s string) string { return foldCaser.String(s) }

// minGlossCandidates is the floor the gloss-search scan always fetches to,
// even when the caller's limit is smaller.
const minGlossCandidates = 50

// Engine is the read-only Query Engine: it opens only Store read-only
// views, never the data-version bucket.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// GetWords implements getWords(search, {matchType, limit}).
// prefix selects matchType=startsWith; limit<=0 means unlimited.
func (e *Engine) GetWords(search string, prefix bool, limit int) ([]*result.WordMatch, error) {
	normalized := norm.NFC.String(search)
	hiraSearch := kana.ToHiragana(normalized)

	var matches []*result.WordMatch
	seen := make(map[uint32]struct{})

	err := e.store.ViewWords(func(v *store.WordsView) error {
		add := func(ids []uint32) error {
			for _, id := range ids {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				w, err := v.Get(id)
				if err != nil {
					return err
				}
				if w == nil {
					continue
				}
				if m := matchWord(w, normalized, prefix); m != nil {
					matches = append(matches, m)
				}
			}
			return nil
		}

		kIDs, err := v.ByKanji(normalized, prefix)
		if err != nil {
			return err
		}
		if err := add(kIDs); err != nil {
			return err
		}
		rIDs, err := v.ByKana(normalized, prefix)
		if err != nil {
			return err
		}
		if err := add(rIDs); err != nil {
			return err
		}
		hIDs, err := v.ByHiragana(hiraSearch, prefix)
		if err != nil {
			return err
		}
		return add(hIDs)
	})
	if err != nil {
		return nil, err
	}

	searchIsKana := kana.ContainsHiragana(hiraSearch) && !containsNonKana(normalized)
	ranked := rank.Words(matches, len([]rune(normalized)), prefix, searchIsKana)
	return applyLimit(ranked, limit), nil
}

func containsNonKana(s string) bool {
	for _, r := range s {
		if !kana.IsHiragana(r) && !kana.IsKatakana(r) {
			return true
		}
	}
	return false
}

// CrossRefQuery is the getWordsByCrossReference input shape.
type CrossRefQuery struct {
	Kanji *string
	Kana  *string
	Sense *int
}

// GetWordsByCrossReference implements
// getWordsByCrossReference({k?,r?,sense?}).
func (e *Engine) GetWordsByCrossReference(q CrossRefQuery) ([]*result.WordMatch, error) {
	var matches []*result.WordMatch
	err := e.store.ViewWords(func(v *store.WordsView) error {
		switch {
		case q.Kanji != nil && q.Kana != nil:
			kIDs, err := v.ByKanji(*q.Kanji, false)
			if err != nil {
				return err
			}
			kSet := make(map[uint32]struct{}, len(kIDs))
			for _, id := range kIDs {
				kSet[id] = struct{}{}
			}
			rIDs, err := v.ByKana(*q.Kana, false)
			if err != nil {
				return err
			}
			for _, id := range rIDs {
				if _, ok := kSet[id]; !ok {
					continue
				}
				w, err := v.Get(id)
				if err != nil || w == nil {
					continue
				}
				matches = append(matches, crossRefMatch(w, *q.Kanji, *q.Kana, q.Sense))
			}
		case q.Kanji != nil:
			ids, err := v.ByKanji(*q.Kanji, false)
			if err != nil {
				return err
			}
			for _, id := range ids {
				w, err := v.Get(id)
				if err != nil || w == nil {
					continue
				}
				matches = append(matches, crossRefMatch(w, *q.Kanji, "", q.Sense))
			}
		case q.Kana != nil:
			ids, err := v.ByKana(*q.Kana, false)
			if err != nil {
				return err
			}
			for _, id := range ids {
				w, err := v.Get(id)
				if err != nil || w == nil {
					continue
				}
				matches = append(matches, crossRefMatch(w, "", *q.Kana, q.Sense))
			}
		}
		return nil
	})
	return matches, err
}

func crossRefMatch(w *model.Word, kanjiVal, kanaVal string, sense *int) *result.WordMatch {
	m := &result.WordMatch{Word: w, KanjiIndex: -1, KanaIndex: -1, Mode: result.MatchLexeme, MatchedSense: sense}
	if kanjiVal != "" {
		for i, k := range w.Kanji {
			if k == kanjiVal {
				m.KanjiIndex = i
				m.MatchedText = k
				break
			}
		}
	}
	if kanaVal != "" && m.KanjiIndex < 0 {
		for i, r := range w.Kana {
			if r == kanaVal {
				m.KanaIndex = i
				m.MatchedText = r
				break
			}
		}
	}
	return m
}

// GetWordsWithKanji implements getWordsWithKanji(singleChar): ch must be
// a single codepoint (the caller is expected to have validated
// |search|==1 after rune iteration).
func (e *Engine) GetWordsWithKanji(ch rune) ([]*result.WordMatch, error) {
	var matches []*result.WordMatch
	err := e.store.ViewWords(func(v *store.WordsView) error {
		ids, err := v.ByKanjiChar(ch)
		if err != nil {
			return err
		}
		for _, id := range ids {
			w, err := v.Get(id)
			if err != nil || w == nil {
				continue
			}
			matches = append(matches, &result.WordMatch{
				Word: w, KanjiIndex: -1, KanaIndex: -1,
				MatchedText: string(ch), Mode: result.MatchKanjiContainment,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rank.Words(matches, 1, false, false), nil
}

// GetWordsWithGloss implements
// getWordsWithGloss(search, lang, limit?).
func (e *Engine) GetWordsWithGloss(search, lang string, limit int) ([]*result.WordMatch, error) {
	lang = tokenize.Lang(lang)
	tokens := tokenize.Tokenize(search, lang)
	if len(tokens) == 0 {
		return nil, nil
	}

	var matches []*result.WordMatch
	err := e.store.ViewWords(func(v *store.WordsView) error {
		matches = scanGlossIndex(v, tokens, search, lang, lang == "en", true)
		if lang != "en" {
			seen := make(map[uint32]struct{}, len(matches))
			for _, m := range matches {
				seen[m.Word.ID] = struct{}{}
			}
			fallback := scanGlossIndex(v, tokens, search, "en", true, false)
			for _, m := range fallback {
				if _, ok := seen[m.Word.ID]; ok {
					continue
				}
				matches = append(matches, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ranked := rank.GlossMatches(matches)
	return applyLimit(ranked, limit), nil
}

// scanGlossIndex walks the gt_en or gt_l index (english selects which) for
// tokens[0], scoring each candidate's senses whose language matches lang.
// It stops once minGlossCandidates have been harvested AND at least one
// full-containment match has been found, or the index is exhausted
//.
func scanGlossIndex(v *store.WordsView, tokens []string, search, lang string, english, localized bool) []*result.WordMatch {
	var ids []uint32
	if english {
		ids, _ = v.ByGlossTokenEn(tokens[0])
	} else {
		ids, _ = v.ByGlossTokenLoc(tokens[0])
	}

	var out []*result.WordMatch
	fullContainment := false
	for _, id := range ids {
		w, err := v.Get(id)
		if err != nil || w == nil {
			continue
		}
		if m, full := glossMatchWord(w, tokens, search, lang, localized); m != nil {
			out = append(out, m)
			if full {
				fullContainment = true
			}
		}
		if len(out) >= minGlossCandidates && fullContainment {
			break
		}
	}
	return out
}

func glossMatchWord(w *model.Word, tokens []string, search, lang string, localized bool) (*result.WordMatch, bool) {
	var best *result.WordMatch
	bestConfidence := -1.0
	fullContainment := false

	firstIndexToken := ""
	if localized {
		if len(w.GlossTokensLoc) > 0 {
			firstIndexToken = w.GlossTokensLoc[0]
		}
	} else if len(w.GlossTokensEn) > 0 {
		firstIndexToken = w.GlossTokensEn[0]
	}

	for si, s := range w.Senses {
		if s.EffectiveLang() != lang {
			continue
		}
		for gi, g := range s.Glosses {
			rng, ok := foldedSubstring(g, search)
			if !ok {
				continue
			}
			fullContainment = true
			glossTokens := tokenize.Tokenize(g, lang)
			c1 := ratio(len([]rune(search)), len([]rune(g))) * 10
			c2 := ratio(len(tokens), len(glossTokens)) * 10
			confidence := c1
			if c2 > confidence {
				confidence = c2
			}
			confidence = roundTo(confidence)
			if firstIndexToken != "" && firstIndexToken == tokens[0] {
				confidence += 0.5
			}
			if confidence > bestConfidence {
				bestConfidence = confidence
				best = &result.WordMatch{
					Word: w, KanjiIndex: -1, KanaIndex: -1,
					MatchedText: g, Mode: result.MatchLexeme, Range: rng,
					GlossConfidence: confidence, GlossLocalized: localized,
					GlossSenseIdx: si, GlossIdx: gi,
				}
			}
		}
	}
	return best, fullContainment
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func roundTo(f float64) float64 {
	if f-float64(int(f)) >= 0.5 {
		return float64(int(f)) + 1
	}
	return float64(int(f))
}

// foldedSubstring reports whether needle occurs in haystack under
// case-folding, returning the rune range of the first occurrence in the
// (unfolded) haystack. Folding can change rune length for a handful of
// codepoints; this is accepted as a documented simplification.
func foldedSubstring(haystack, needle string) (result.MatchRange, bool) {
	lowerHay := []rune(caseFold(haystack))
	lowerNeedle := []rune(caseFold(needle))
	if len(lowerNeedle) == 0 || len(lowerNeedle) > len(lowerHay) {
		return result.MatchRange{}, false
	}
	for i := 0; i+len(lowerNeedle) <= len(lowerHay); i++ {
		match := true
		for j, r := range lowerNeedle {
			if lowerHay[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return result.MatchRange{Start: i, End: i + len(lowerNeedle)}, true
		}
	}
	return result.MatchRange{}, false
}

// GetNames implements getNames(search): as getWords but over
// the names series' k/r/h indices, with no priority tags to rank on.
func (e *Engine) GetNames(search string) ([]*result.NameMatch, error) {
	normalized := norm.NFC.String(search)
	hiraSearch := kana.ToHiragana(normalized)

	var matches []*result.NameMatch
	seen := make(map[uint32]struct{})

	err := e.store.ViewNames(func(v *store.NamesView) error {
		add := func(ids []uint32) error {
			for _, id := range ids {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				n, err := v.Get(id)
				if err != nil {
					return err
				}
				if n == nil {
					continue
				}
				if m := matchName(n, normalized, false); m != nil {
					matches = append(matches, m)
				}
			}
			return nil
		}

		kIDs, err := v.ByKanji(normalized, false)
		if err != nil {
			return err
		}
		if err := add(kIDs); err != nil {
			return err
		}
		rIDs, err := v.ByKana(normalized, false)
		if err != nil {
			return err
		}
		if err := add(rIDs); err != nil {
			return err
		}
		hIDs, err := v.ByHiragana(hiraSearch, false)
		if err != nil {
			return err
		}
		return add(hIDs)
	})
	if err != nil {
		return nil, err
	}

	return rank.Names(matches, len([]rune(normalized)), false), nil
}

// GetKanji implements getKanji(chars, {lang, logWarningMessage}): each
// character is looked up by exact codepoint and expanded into its public
// shape; characters with no stored record are skipped.
func (e *Engine) GetKanji(chars []rune, lang string, logWarning func(string)) ([]*shape.KanjiResult, error) {
	var out []*shape.KanjiResult
	for _, ch := range chars {
		k, err := e.store.GetKanji(ch)
		if err != nil {
			return nil, err
		}
		if k == nil {
			continue
		}
		kr, err := shape.Kanji(e.store, k, lang, logWarning)
		if err != nil {
			return nil, err
		}
		out = append(out, kr)
	}
	return out, nil
}

func applyLimit(matches []*result.WordMatch, limit int) []*result.WordMatch {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}
