// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package applier implements the Update Applier: it drives an
// events.Producer's stream into the Store, one file at a time, inside a
// single read-write transaction per file, committing the data-version row
// alongside the file's last record.
package applier

import (
	"context"

	"github.com/kotobadb/kotobadb/internal/errs"
	"github.com/kotobadb/kotobadb/internal/events"
	"github.com/kotobadb/kotobadb/internal/logging"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/store"
)

// progressEvery controls how often an in-file Progress notification fires;
// periodic progress, not per-record.
const progressEvery = 500

// Notification is the Applier's own outward signal, distinct from the
// Producer's events.Event: it is what the Sync Coordinator observes to
// update UpdateState and to persist lastCheck on each committed patch.
type Notification struct {
	Kind          NotificationKind
	FileProgress  float64
	TotalProgress float64
	Version       *model.DataVersion // set on FinishPatch
	ParseErr      error              // set on ParseError; non-fatal
}

type NotificationKind string

const (
	NotifyProgress    NotificationKind = "progress"
	NotifyParseError  NotificationKind = "parseerror"
	NotifyFinishPatch NotificationKind = "finishpatch"
)

// Applier owns no state across calls; each Apply call is one full download
// cycle for one series.
type Applier struct {
	store *store.Store
	log   *logging.Logger
}

func New(s *store.Store, log *logging.Logger) *Applier {
	if log == nil {
		log = logging.Nop()
	}
	return &Applier{store: s, log: log}
}

// Apply drains producer to completion (or the first fatal error), writing
// through one store.Tx per file and calling notify for every progress,
// parseerror, and finishpatch signal the Sync Coordinator cares about.
// Returns the series' final DataVersion once DownloadEnd is reached, or nil
// if the series ended up with no committed files (cannot happen once a
// Plan has any files, but keeps the zero-file case well-defined).
func (a *Applier) Apply(ctx context.Context, series model.DataSeries, lang string, producer *events.Producer, notify func(Notification)) (*model.DataVersion, error) {
	if notify == nil {
		notify = func(Notification) {}
	}

	var (
		tx            *store.Tx
		pendingReset  bool
		totalFiles    int
		completed     int
		fileTotal     int
		fileProcessed int
		fileVersion   model.VersionNumber
		filePartInfo  *model.PartInfo
		finalVersion  *model.DataVersion
	)

	abort := func() {
		if tx != nil {
			tx.Rollback()
			tx = nil
		}
	}

	for {
		ev, more, err := producer.Next(ctx)
		if err != nil {
			abort()
			return nil, err
		}
		if !more {
			abort()
			return finalVersion, nil
		}

		switch ev.Kind {
		case events.KindReset:
			pendingReset = true

		case events.KindDownloadStart:
			totalFiles = ev.TotalFiles

		case events.KindFileStart:
			newTx, err := a.store.BeginFileTx()
			if err != nil {
				return nil, err
			}
			tx = newTx
			if pendingReset {
				if err := tx.ClearSeries(series); err != nil {
					abort()
					return nil, err
				}
				if err := tx.DeleteDataVersion(series); err != nil {
					abort()
					return nil, err
				}
				pendingReset = false
			}
			fileTotal = ev.TotalRecords
			fileProcessed = 0
			fileVersion = ev.Version
			filePartInfo = ev.PartInfo

		case events.KindRecord:
			if err := a.applyRecord(tx, series, ev, notify); err != nil {
				abort()
				return nil, err
			}
			fileProcessed++
			if fileProcessed%progressEvery == 0 {
				notify(Notification{
					Kind:          NotifyProgress,
					FileProgress:  fraction(fileProcessed, fileTotal),
					TotalProgress: totalFraction(completed, fraction(fileProcessed, fileTotal), totalFiles),
				})
			}

		case events.KindFileEnd:
			partInfo := filePartInfo
			if partInfo != nil && partInfo.Done() {
				partInfo = nil
			}
			dv := model.DataVersion{
				VersionNumber: fileVersion,
				PartInfo:      partInfo,
				Lang:          lang,
			}
			if err := tx.PutDataVersion(series, dv); err != nil {
				abort()
				return nil, err
			}
			if err := tx.Commit(); err != nil {
				tx = nil
				return nil, errs.Wrap(errs.ConstraintError, err)
			}
			tx = nil
			completed++
			finalVersion = &dv
			notify(Notification{Kind: NotifyFinishPatch, Version: &dv})
			notify(Notification{
				Kind:          NotifyProgress,
				FileProgress:  1,
				TotalProgress: totalFraction(completed, 0, totalFiles),
			})

		case events.KindDownloadEnd:
			return finalVersion, nil
		}
	}
}

func fraction(n, total int) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(n) / float64(total)
	if f > 1 {
		f = 1
	}
	return f
}

func totalFraction(completedFiles int, currentFileFraction float64, totalFiles int) float64 {
	if totalFiles <= 0 {
		return 1
	}
	return (float64(completedFiles) + currentFileFraction) / float64(totalFiles)
}

// applyRecord validates and writes a single Record event's payload against
// series' schema, within tx. Parse/validation failures are non-fatal: they
// are reported via notify and the record is skipped.
func (a *Applier) applyRecord(tx *store.Tx, series model.DataSeries, ev events.Event, notify func(Notification)) error {
	switch series {
	case model.SeriesWords:
		return applyWordRecord(tx, ev, notify)
	case model.SeriesNames:
		return applyNameRecord(tx, ev, notify)
	case model.SeriesKanji:
		return applyKanjiRecord(tx, ev, notify)
	case model.SeriesRadicals:
		return applyRadicalRecord(tx, ev, notify)
	default:
		return errs.Newf(errs.DatabaseFileInvalidRecord, "unknown series %q", series)
	}
}

func applyWordRecord(tx *store.Tx, ev events.Event, notify func(Notification)) error {
	if ev.Mode == events.ModeDelete {
		id, err := decodeDeleteID(ev.Payload, "id")
		if err != nil {
			notify(Notification{Kind: NotifyParseError, ParseErr: err})
			return nil
		}
		return tx.DeleteWord(id)
	}
	w, err := decodeAndValidateWord(ev.Payload)
	if err != nil {
		notify(Notification{Kind: NotifyParseError, ParseErr: err})
		return nil
	}
	return tx.UpsertWord(w)
}

func applyNameRecord(tx *store.Tx, ev events.Event, notify func(Notification)) error {
	if ev.Mode == events.ModeDelete {
		id, err := decodeDeleteID(ev.Payload, "id")
		if err != nil {
			notify(Notification{Kind: NotifyParseError, ParseErr: err})
			return nil
		}
		return tx.DeleteName(id)
	}
	n, err := decodeAndValidateName(ev.Payload)
	if err != nil {
		notify(Notification{Kind: NotifyParseError, ParseErr: err})
		return nil
	}
	return tx.UpsertName(n)
}

func applyKanjiRecord(tx *store.Tx, ev events.Event, notify func(Notification)) error {
	if ev.Mode == events.ModeDelete {
		id, err := decodeDeleteID(ev.Payload, "c")
		if err != nil {
			notify(Notification{Kind: NotifyParseError, ParseErr: err})
			return nil
		}
		return tx.DeleteKanji(rune(id))
	}
	k, err := decodeAndValidateKanji(ev.Payload)
	if err != nil {
		notify(Notification{Kind: NotifyParseError, ParseErr: err})
		return nil
	}
	return tx.UpsertKanji(k)
}

func applyRadicalRecord(tx *store.Tx, ev events.Event, notify func(Notification)) error {
	if ev.Mode == events.ModeDelete {
		id, err := decodeDeleteStringID(ev.Payload, "id")
		if err != nil {
			notify(Notification{Kind: NotifyParseError, ParseErr: err})
			return nil
		}
		return tx.DeleteRadical(id)
	}
	r, err := decodeAndValidateRadical(ev.Payload)
	if err != nil {
		notify(Notification{Kind: NotifyParseError, ParseErr: err})
		return nil
	}
	return tx.UpsertRadical(r)
}
