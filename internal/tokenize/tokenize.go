// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package tokenize implements the tokenizer and stop-word tables:
// tokenize(text, lang) -> []string.
package tokenize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"at": {}, "by": {}, "for": {}, "with": {}, "and": {}, "or": {}, "is": {},
	"are": {}, "be": {}, "as": {}, "it": {}, "that": {}, "this": {}, "one": {},
	"into": {}, "from": {},
}

// genericStopWords covers the handful of short connective words common to
// the Romance-language glosses present in the localized gloss series; it is
// intentionally small, leaving deeper locale-specific stop-word tuning out
// of scope.
var genericStopWords = map[string]struct{}{
	"de": {}, "la": {}, "le": {}, "el": {}, "il": {}, "une": {}, "un": {},
	"das": {}, "der": {}, "die": {}, "et": {}, "y": {}, "en": {},
}

var foldCaser = cases.Fold()

// Tokenize splits text into lowercase word tokens and removes stop words
// for lang. Tokens are returned in the order they appear; duplicates are
// preserved (callers dedupe if needed).
func Tokenize(text, lang string) []string {
	folded := foldCaser.String(text)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r))
	})

	stop := englishStopWords
	if lang != "" && lang != "en" {
		stop = genericStopWords
	}

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, isStop := stop[f]; isStop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Lang normalizes a BCP-47-ish two-letter code the way callers expect it
// (lowercased, falling back to "en" for empty input). It deliberately does
// not validate against language.Tags beyond parsing; an unknown lang falls
// back to "en" at a higher layer (Sync Coordinator), not here.
func Lang(code string) string {
	if code == "" {
		return "en"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}
