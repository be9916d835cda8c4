// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package store

import (
	"fmt"

	"github.com/kotobadb/kotobadb/internal/model"
)

// ClearSeries empties every record (and index entry) for series within an
// already-open file transaction. Used by the Applier on a Reset event and
// by series-clobber on a language change.
func (t *Tx) ClearSeries(series model.DataSeries) error {
	switch series {
	case model.SeriesWords:
		return t.ClearWords()
	case model.SeriesKanji:
		return t.ClearKanji()
	case model.SeriesRadicals:
		return t.ClearRadicals()
	case model.SeriesNames:
		return t.ClearNames()
	default:
		return fmt.Errorf("store: unknown series %q", series)
	}
}

// DeleteSeriesData clears series' records and nulls its data-version row
// in one standalone transaction, for Sync Coordinator's deleteSeries
// operation, which is not nested inside a download's
// per-file transaction.
func (s *Store) DeleteSeriesData(series model.DataSeries) error {
	tx, err := s.BeginFileTx()
	if err != nil {
		return err
	}
	if err := tx.ClearSeries(series); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.DeleteDataVersion(series); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
