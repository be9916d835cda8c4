// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package events defines the typed Download Event Producer stream: Reset,
// DownloadStart, FileStart, Record, FileEnd, DownloadEnd.
package events

import (
	json "github.com/goccy/go-json"

	"github.com/kotobadb/kotobadb/internal/model"
)

// Kind tags the Event sum type.
type Kind string

const (
	KindReset         Kind = "Reset"
	KindDownloadStart Kind = "DownloadStart"
	KindFileStart     Kind = "FileStart"
	KindRecord        Kind = "Record"
	KindFileEnd       Kind = "FileEnd"
	KindDownloadEnd   Kind = "DownloadEnd"
)

// RecordMode tags an individual patch/full record.
type RecordMode string

const (
	ModeAdd    RecordMode = "add"
	ModeDelete RecordMode = "delete"
	ModeChange RecordMode = "change"
)

// Event is the single variant type flowing from the Download Event
// Producer to the Update Applier. Only the fields relevant to Kind are
// populated; it is a tagged enum rather than a dynamic union, so callers
// should switch on Kind.
type Event struct {
	Kind Kind

	// DownloadStart
	TotalFiles int

	// FileStart
	Version      model.VersionNumber
	PartInfo     *model.PartInfo
	TotalRecords int

	// Record
	Mode    RecordMode
	Payload json.RawMessage

	// FileEnd carries no fields: the Applier writes the data-version row
	// from the Version/PartInfo it kept from the matching FileStart.
}
