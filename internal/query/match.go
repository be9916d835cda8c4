// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package query

import (
	"strings"

	"github.com/kotobadb/kotobadb/internal/kana"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/result"
)

// matchHeadwords finds the first headword in list matching search (exact
// equality, or prefix when prefixMode), returning its index and the
// [0,len) range over the matched entry's own text (prefix matches range
// over the search term's rune length).
func matchHeadwords(list []string, search string, prefixMode bool) (idx int, text string, rng result.MatchRange, ok bool) {
	for i, hw := range list {
		if prefixMode {
			if strings.HasPrefix(hw, search) {
				return i, hw, result.MatchRange{Start: 0, End: len([]rune(search))}, true
			}
		} else if hw == search {
			return i, hw, result.MatchRange{Start: 0, End: len([]rune(hw))}, true
		}
	}
	return 0, "", result.MatchRange{}, false
}

// matchWord computes the authoritative WordMatch for w against a
// NFC-normalized search term, independent of which secondary index
// surfaced w as a candidate: lexeme match on k[]
// then r[] takes priority over a kana-equivalent match via h[].
func matchWord(w *model.Word, search string, prefixMode bool) *result.WordMatch {
	if idx, text, rng, ok := matchHeadwords(w.Kanji, search, prefixMode); ok {
		return &result.WordMatch{Word: w, KanjiIndex: idx, KanaIndex: -1, MatchedText: text, Range: rng, Mode: lexemeMode(prefixMode)}
	}
	if idx, text, rng, ok := matchHeadwords(w.Kana, search, prefixMode); ok {
		return &result.WordMatch{Word: w, KanjiIndex: -1, KanaIndex: idx, MatchedText: text, Range: rng, Mode: lexemeMode(prefixMode)}
	}

	hiraSearch := kana.ToHiragana(search)
	all := w.AllHeadwords()
	for i, hw := range all {
		h := kana.ToHiragana(hw)
		matched := h == hiraSearch
		if prefixMode {
			matched = strings.HasPrefix(h, hiraSearch)
		}
		if !matched {
			continue
		}
		rng := result.MatchRange{Start: 0, End: len([]rune(h))}
		if prefixMode {
			rng = result.MatchRange{Start: 0, End: len([]rune(hiraSearch))}
		}
		if i < len(w.Kanji) {
			return &result.WordMatch{Word: w, KanjiIndex: i, KanaIndex: -1, MatchedText: hw, Range: rng, Mode: kanaEquivMode(prefixMode)}
		}
		return &result.WordMatch{Word: w, KanjiIndex: -1, KanaIndex: i - len(w.Kanji), MatchedText: hw, Range: rng, Mode: kanaEquivMode(prefixMode)}
	}
	return nil
}

func matchName(n *model.Name, search string, prefixMode bool) *result.NameMatch {
	if idx, text, rng, ok := matchHeadwords(n.Kanji, search, prefixMode); ok {
		return &result.NameMatch{Name: n, KanjiIndex: idx, KanaIndex: -1, MatchedText: text, Range: rng, Mode: lexemeMode(prefixMode)}
	}
	if idx, text, rng, ok := matchHeadwords(n.Kana, search, prefixMode); ok {
		return &result.NameMatch{Name: n, KanjiIndex: -1, KanaIndex: idx, MatchedText: text, Range: rng, Mode: lexemeMode(prefixMode)}
	}

	hiraSearch := kana.ToHiragana(search)
	all := n.AllHeadwords()
	for i, hw := range all {
		h := kana.ToHiragana(hw)
		matched := h == hiraSearch
		if prefixMode {
			matched = strings.HasPrefix(h, hiraSearch)
		}
		if !matched {
			continue
		}
		rng := result.MatchRange{Start: 0, End: len([]rune(h))}
		if prefixMode {
			rng = result.MatchRange{Start: 0, End: len([]rune(hiraSearch))}
		}
		if i < len(n.Kanji) {
			return &result.NameMatch{Name: n, KanjiIndex: i, KanaIndex: -1, MatchedText: hw, Range: rng, Mode: kanaEquivMode(prefixMode)}
		}
		return &result.NameMatch{Name: n, KanjiIndex: -1, KanaIndex: i - len(n.Kanji), MatchedText: hw, Range: rng, Mode: kanaEquivMode(prefixMode)}
	}
	return nil
}

func lexemeMode(prefixMode bool) result.MatchMode {
	if prefixMode {
		return result.MatchStartsWith
	}
	return result.MatchLexeme
}

func kanaEquivMode(prefixMode bool) result.MatchMode {
	if prefixMode {
		return result.MatchStartsWithKanaEquivalent
	}
	return result.MatchKanaEquivalent
}
