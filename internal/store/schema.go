// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package store wraps bbolt as the typed key/value store with secondary
// multi-entry indices and atomic multi-record transactions. schema.go
// documents every bucket with a key -> value comment above each constant.
package store

// SchemaVersion guards the on-disk bucket layout. A store opened with a
// different SchemaVersion is treated as unavailable and ignored rather
// than migrated.
const SchemaVersion = 1

const (
	// metaBucket holds process-global housekeeping, distinct from any
	// series' data-version row.
	//   key "schemaVersion" -> big-endian uint32(SchemaVersion)
	metaBucket = "Meta"

	// dataVersionBucket stores the per-series DataVersion row.
	// It is writer-owned: the Query Engine must never read it.
	//   key DataSeries -> json(model.DataVersion)
	dataVersionBucket = "DataVersion"
)

// seriesBuckets names the primary and secondary-index buckets for one
// DataSeries. Every bucket in Primary/Indices is created up front at Open
// so writers never need to branch on "does this bucket exist yet".
type seriesBuckets struct {
	// Primary: key = primary key bytes (id or codepoint, big-endian for
	// numeric keys), value = json(record).
	Primary string
	// Indices: key = indexed value bytes ++ 0x00 ++ primary key bytes,
	// value = primary key bytes. Multi-entry: many keys can share the
	// same indexed-value prefix, which is exactly what range-scanning a
	// prefix (or a bounded [s, s+U+FFFF) range) yields.
	Indices map[string]string
}

var (
	wordsBuckets = seriesBuckets{
		Primary: "Words",
		Indices: map[string]string{
			"k":     "WordsByKanji",
			"r":     "WordsByKana",
			"h":     "WordsByHiragana",
			"kc":    "WordsByKanjiChar",
			"gt_en": "WordsByGlossTokenEn",
			"gt_l":  "WordsByGlossTokenLoc",
		},
	}
	namesBuckets = seriesBuckets{
		Primary: "Names",
		Indices: map[string]string{
			"k": "NamesByKanji",
			"r": "NamesByKana",
			"h": "NamesByHiragana",
		},
	}
	kanjiBuckets = seriesBuckets{
		Primary: "Kanji",
		Indices: map[string]string{},
	}
	radicalsBuckets = seriesBuckets{
		Primary: "Radicals",
		Indices: map[string]string{
			"b": "RadicalsByBase",
		},
	}
)

// allBuckets returns every bucket name that must exist at Open, in a
// stable order (used only for deterministic creation; bbolt buckets are
// otherwise unordered relative to each other).
func allBuckets() []string {
	names := []string{metaBucket, dataVersionBucket}
	for _, sb := range []seriesBuckets{wordsBuckets, kanjiBuckets, radicalsBuckets, namesBuckets} {
		names = append(names, sb.Primary)
		for _, idx := range sb.Indices {
			names = append(names, idx)
		}
	}
	return names
}
