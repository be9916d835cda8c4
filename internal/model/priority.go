// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package model

import (
	"regexp"
	"strconv"

	"github.com/RoaringBitmap/roaring"
)

// priorityWeights is the fixed weight table:
// i1:50, n1:40, s1:32, g1:30, i2/n2/s2:20, g2:15, plus nfNN groups.
var priorityWeights = map[string]float64{
	"i1": 50, "n1": 40, "s1": 32, "g1": 30,
	"i2": 20, "n2": 20, "s2": 20, "g2": 15,
}

var nfTagRe = regexp.MustCompile(`^nf(\d{1,3})$`)

// PriorityWeight returns the weight for a single priority tag, or 0 if the
// tag does not contribute to priority scoring at all.
func PriorityWeight(tag string) float64 {
	if w, ok := priorityWeights[tag]; ok {
		return w
	}
	if m := nfTagRe.FindStringSubmatch(tag); m != nil {
		nn, err := strconv.Atoi(m[1])
		if err != nil || nn <= 0 || nn >= 48 {
			return 0
		}
		return 48 - float64(nn)/2
	}
	return 0
}

// TagPriorityScore folds a set of priority tags into the single score used
// by the Ranking Engine: the max weight plus a diminishing
// 10^-k tail contribution from the remaining tags, sorted descending.
func TagPriorityScore(tags []string) float64 {
	if len(tags) == 0 {
		return 0
	}
	weights := make([]float64, 0, len(tags))
	for _, t := range tags {
		if w := PriorityWeight(t); w > 0 {
			weights = append(weights, w)
		}
	}
	if len(weights) == 0 {
		return 0
	}
	sortDesc(weights)
	score := weights[0]
	tail := 0.1
	for _, w := range weights[1:] {
		score += w * tail
		tail *= 0.1
	}
	return score
}

func sortDesc(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] < xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

var wkTagRe = regexp.MustCompile(`^wk(\d+)$`)
var bvTagRe = regexp.MustCompile(`^bv(\d+)$`)
var bgTagRe = regexp.MustCompile(`^bg(\d+)$`)

// BunproLevel is the decoded {l, src?} shape.
type BunproLevel struct {
	Level  int
	Source string
}

// ExtractWaniKaniLevel finds the minimum WaniKani level across tags
// matching ^wk\d+$, for the Result Shaper's wk:u16 field.
// ok is false when no such tag is present.
func ExtractWaniKaniLevel(tags []string) (level int, ok bool) {
	best := -1
	for _, t := range tags {
		if m := wkTagRe.FindStringSubmatch(t); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && (best == -1 || n < best) {
				best = n
			}
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// ExtractBunproLevels decodes bv{n} (vocab) and bg{n} (grammar) tags into
// their respective {l, src?} shapes.
func ExtractBunproLevels(tags []string) (vocab, grammar *BunproLevel) {
	for _, t := range tags {
		if m := bvTagRe.FindStringSubmatch(t); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				if vocab == nil || n < vocab.Level {
					vocab = &BunproLevel{Level: n}
				}
			}
		}
		if m := bgTagRe.FindStringSubmatch(t); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				if grammar == nil || n < grammar.Level {
					grammar = &BunproLevel{Level: n}
				}
			}
		}
	}
	return vocab, grammar
}

// ApplicableIndices decodes an applicability bitfield (kapp/rapp) into the
// set bit positions it covers, using a roaring.Bitmap as the iteration
// structure. A zero bitfield means "applies to all" and decodes to nil;
// expanding that case against the actual headword count is the caller's
// job.
func ApplicableIndices(bitfield uint32) []int {
	if bitfield == 0 {
		return nil
	}
	bm := roaring.New()
	for i := uint(0); i < 32; i++ {
		if bitfield&(1<<i) != 0 {
			bm.AddInt(int(i))
		}
	}
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// CombinedPriorityScore folds priority contributions across every headword
// a word's senses apply to. It is used when a match has no single matched
// headword index of its own -- e.g. getWordsWithKanji's containment matches
// -- by unioning each sense's kapp/rapp bitfield into one
// roaring.Bitmap of applicable headword slots before scoring.
func CombinedPriorityScore(w *Word) float64 {
	bm := roaring.New()
	nKanji := len(w.KanjiMeta)
	for _, s := range w.Senses {
		for _, idx := range ApplicableIndices(s.KanjiApp) {
			bm.AddInt(idx)
		}
		for _, idx := range ApplicableIndices(s.KanaApp) {
			bm.AddInt(nKanji + idx)
		}
	}
	if bm.GetCardinality() == 0 {
		for i := range w.KanjiMeta {
			bm.AddInt(i)
		}
		for i := range w.KanaMeta {
			bm.AddInt(nKanji + i)
		}
	}

	var tags []string
	it := bm.Iterator()
	for it.HasNext() {
		idx := int(it.Next())
		if idx < nKanji {
			if meta := w.KanjiMeta[idx]; meta != nil {
				tags = append(tags, meta.Priority...)
			}
			continue
		}
		if m := idx - nKanji; m < len(w.KanaMeta) {
			if meta := w.KanaMeta[m]; meta != nil {
				tags = append(tags, meta.Priority...)
			}
		}
	}
	return TagPriorityScore(tags)
}
