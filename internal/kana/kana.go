// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package kana implements the kana-normalization primitive: ToHiragana(s)
// -> s. It is a pure function over Unicode codepoints with no dependency
// on the rest of the module.
package kana

// Katakana block, excluding the small/punctuation tail that has no
// corresponding hiragana codepoint at a fixed offset.
const (
	katakanaStart = 0x30A1
	katakanaEnd   = 0x30F6
	hiraganaOffset = 0x60

	hiraganaStart = 0x3041
	hiraganaEnd   = 0x3096
)

// ToHiragana converts every katakana codepoint in s to its hiragana
// equivalent, leaving all other codepoints (kanji, ASCII, punctuation,
// already-hiragana) untouched.
func ToHiragana(s string) string {
	runes := []rune(s)
	changed := false
	for i, r := range runes {
		if r >= katakanaStart && r <= katakanaEnd {
			runes[i] = r - hiraganaOffset
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(runes)
}

// IsHiragana reports whether r falls in the hiragana Unicode block.
func IsHiragana(r rune) bool {
	return r >= hiraganaStart && r <= hiraganaEnd
}

// ContainsHiragana reports whether s has at least one hiragana codepoint,
// used by the h[] derivation rule to decide whether a hiragana-normalized
// headword is worth indexing (a kanji-only string normalizes to itself
// and would otherwise pollute the hiragana index).
func ContainsHiragana(s string) bool {
	for _, r := range s {
		if IsHiragana(r) {
			return true
		}
	}
	return false
}

// IsKatakana reports whether r falls in the standard katakana Unicode
// block [U+30A1, U+30FA], used by the Result Shaper's component
// classification fallback.
func IsKatakana(r rune) bool {
	return r >= 0x30A1 && r <= 0x30FA
}

// katakanaRomaji gives the romanized reading the Result Shaper uses to
// synthesize a component entry for a bare katakana character that is
// neither a radical nor a stored kanji (e.g. "ム"->"mu").
var katakanaRomaji = map[rune]string{
	'ア': "a", 'イ': "i", 'ウ': "u", 'エ': "e", 'オ': "o",
	'カ': "ka", 'キ': "ki", 'ク': "ku", 'ケ': "ke", 'コ': "ko",
	'サ': "sa", 'シ': "shi", 'ス': "su", 'セ': "se", 'ソ': "so",
	'タ': "ta", 'チ': "chi", 'ツ': "tsu", 'テ': "te", 'ト': "to",
	'ナ': "na", 'ニ': "ni", 'ヌ': "nu", 'ネ': "ne", 'ノ': "no",
	'ハ': "ha", 'ヒ': "hi", 'フ': "fu", 'ヘ': "he", 'ホ': "ho",
	'マ': "ma", 'ミ': "mi", 'ム': "mu", 'メ': "me", 'モ': "mo",
	'ヤ': "ya", 'ユ': "yu", 'ヨ': "yo",
	'ラ': "ra", 'リ': "ri", 'ル': "ru", 'レ': "re", 'ロ': "ro",
	'ワ': "wa", 'ヲ': "wo", 'ン': "n",
}

// RomanizeKatakana returns the romanized reading for a single katakana
// character, and whether one is known.
func RomanizeKatakana(r rune) (string, bool) {
	s, ok := katakanaRomaji[r]
	return s, ok
}
