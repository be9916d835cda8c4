// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package applier

import (
	json "github.com/goccy/go-json"

	"github.com/kotobadb/kotobadb/internal/errs"
	"github.com/kotobadb/kotobadb/internal/model"
)

// maxHeadwords is the applicability bitfield capacity: bitfields assume
// at most 32 headwords per record, so a record exceeding it fails
// validation rather than silently truncating.
const maxHeadwords = 32

func invalidRecord(format string, args ...any) error {
	return errs.Newf(errs.DatabaseFileInvalidRecord, format, args...)
}

// decodeAndValidateWord validates payload against the words download
// record schema and returns the populated record, with
// derived fields freshly computed.
func decodeAndValidateWord(payload json.RawMessage) (*model.Word, error) {
	var w model.Word
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, invalidRecord("malformed word payload: %v", err)
	}
	if w.ID == 0 {
		return nil, invalidRecord("word missing id")
	}
	if len(w.Kana) == 0 {
		return nil, invalidRecord("word %d has no kana headwords", w.ID)
	}
	if len(w.Kanji)+len(w.Kana) > maxHeadwords {
		return nil, invalidRecord("word %d exceeds %d headwords", w.ID, maxHeadwords)
	}
	for i, s := range w.Senses {
		if len(s.Glosses) == 0 {
			return nil, invalidRecord("word %d sense %d has no glosses", w.ID, i)
		}
	}
	model.PopulateWordDerived(&w)
	return &w, nil
}

// decodeDeleteID validates a delete-record payload {id|c, deleted?:true}
// and extracts the primary key, used for words/names ("id") and kanji
// ("c") respectively: a delete record carries little beyond its primary
// key, typically alongside "deleted":true.
func decodeDeleteID(payload json.RawMessage, field string) (uint32, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return 0, invalidRecord("malformed delete payload: %v", err)
	}
	raw, ok := m[field]
	if !ok {
		return 0, invalidRecord("delete payload missing %q", field)
	}
	var id uint32
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, invalidRecord("delete payload %q not numeric: %v", field, err)
	}
	return id, nil
}

func decodeAndValidateName(payload json.RawMessage) (*model.Name, error) {
	var n model.Name
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, invalidRecord("malformed name payload: %v", err)
	}
	if n.ID == 0 {
		return nil, invalidRecord("name missing id")
	}
	if len(n.Kana) == 0 && len(n.Kanji) == 0 {
		return nil, invalidRecord("name %d has no headwords", n.ID)
	}
	if len(n.Kanji)+len(n.Kana) > maxHeadwords {
		return nil, invalidRecord("name %d exceeds %d headwords", n.ID, maxHeadwords)
	}
	model.PopulateNameDerived(&n)
	return &n, nil
}

func decodeAndValidateKanji(payload json.RawMessage) (*model.Kanji, error) {
	var k model.Kanji
	if err := json.Unmarshal(payload, &k); err != nil {
		return nil, invalidRecord("malformed kanji payload: %v", err)
	}
	if k.Codepoint == 0 {
		return nil, invalidRecord("kanji missing codepoint")
	}
	return &k, nil
}

func decodeAndValidateRadical(payload json.RawMessage) (*model.Radical, error) {
	var r model.Radical
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, invalidRecord("malformed radical payload: %v", err)
	}
	if r.ID == "" {
		return nil, invalidRecord("radical missing id")
	}
	return &r, nil
}

// decodeDeleteStringID is decodeDeleteID's counterpart for radicals, whose
// primary key is a string ("061" or "061-2") rather than a uint32.
func decodeDeleteStringID(payload json.RawMessage, field string) (string, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", invalidRecord("malformed delete payload: %v", err)
	}
	raw, ok := m[field]
	if !ok {
		return "", invalidRecord("delete payload missing %q", field)
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", invalidRecord("delete payload %q not a string: %v", field, err)
	}
	return id, nil
}
