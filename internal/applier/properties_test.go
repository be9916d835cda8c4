// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package applier

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kotobadb/kotobadb/internal/events"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/planner"
	"github.com/kotobadb/kotobadb/internal/store"
	"github.com/kotobadb/kotobadb/internal/transport"
)

func applyPlan(t *rapid.T, s *store.Store, base string, plan planner.Plan) {
	producer := events.NewProducer(base, model.SeriesWords, "en", transport.NewFetcher(), plan)
	a := New(s, nil)
	_, err := a.Apply(context.Background(), model.SeriesWords, "en", producer, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func wordRecord(id int, kana string) string {
	return fmt.Sprintf(`{"id":%d,"r":[%q],"s":[{"g":["w%d"],"lang":"en"}]}`, id, kana, id)
}

// Applying a single full snapshot that carries N records must yield the
// same store contents as applying a smaller snapshot followed by a patch
// that adds the remaining records: a snapshot at version V plus every
// subsequent patch should equal a single full snapshot fetched at V.
func TestSnapshotPlusPatchEqualsLargerSnapshot(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "n")
		split := rapid.IntRange(1, n).Draw(t, "split")

		var all []string
		for i := 1; i <= n; i++ {
			all = append(all, wordRecord(i, fmt.Sprintf("かな%d", i)))
		}

		combined := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/words/en/1.0.0.jsonl" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			lines := append([]string{header("full", 1, 0, 0, n)}, all...)
			_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
		}))
		defer combined.Close()

		sCombined, err := store.Open(t.TempDir() + "/combined.db")
		require.NoError(t, err)
		defer sCombined.Close()
		applyPlan(t, sCombined, combined.URL, planner.Plan{
			Reset: true,
			Files: []planner.FileSpec{{Format: planner.FormatFull, Version: model.VersionNumber{Major: 1}}},
		})

		incremental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/words/en/1.0.0.jsonl":
				lines := append([]string{header("full", 1, 0, 0, split)}, all[:split]...)
				_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
			case "/words/en/1.0.1-patch.jsonl":
				var patchLines []string
				for _, rec := range all[split:] {
					patchLines = append(patchLines, strings.Replace(rec, `{"id"`, `{"_":"~","id"`, 1))
				}
				lines := append([]string{header("patch", 1, 0, 1, len(patchLines))}, patchLines...)
				_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer incremental.Close()

		sIncremental, err := store.Open(t.TempDir() + "/incremental.db")
		require.NoError(t, err)
		defer sIncremental.Close()
		applyPlan(t, sIncremental, incremental.URL, planner.Plan{
			Reset: true,
			Files: []planner.FileSpec{{Format: planner.FormatFull, Version: model.VersionNumber{Major: 1}}},
		})
		if split < n {
			applyPlan(t, sIncremental, incremental.URL, planner.Plan{
				Files: []planner.FileSpec{{Format: planner.FormatPatch, Version: model.VersionNumber{Major: 1, Patch: 1}}},
			})
		}

		for i := 1; i <= n; i++ {
			wc, err := sCombined.GetWord(uint32(i))
			if err != nil {
				t.Fatalf("combined GetWord(%d): %v", i, err)
			}
			wi, err := sIncremental.GetWord(uint32(i))
			if err != nil {
				t.Fatalf("incremental GetWord(%d): %v", i, err)
			}
			if wc == nil || wi == nil {
				t.Fatalf("word %d missing: combined=%v incremental=%v", i, wc, wi)
			}
			if wc.Kana[0] != wi.Kana[0] {
				t.Fatalf("word %d diverges: combined=%q incremental=%q", i, wc.Kana[0], wi.Kana[0])
			}
		}
	})
}

// A record added by a snapshot and then removed by a later patch's delete
// marker must be absent afterward, for any record id.
func TestAddThenDeleteLeavesRecordAbsent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.IntRange(1, 1000).Draw(t, "id")

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/words/en/1.0.0.jsonl":
				lines := []string{header("full", 1, 0, 0, 1), wordRecord(id, "かな")}
				_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
			case "/words/en/1.0.1-patch.jsonl":
				lines := []string{
					header("patch", 1, 0, 1, 1),
					fmt.Sprintf(`{"_":"-","id":%d,"deleted":true}`, id),
				}
				_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()

		s, err := store.Open(t.TempDir() + "/absence.db")
		require.NoError(t, err)
		defer s.Close()

		applyPlan(t, s, srv.URL, planner.Plan{
			Reset: true,
			Files: []planner.FileSpec{{Format: planner.FormatFull, Version: model.VersionNumber{Major: 1}}},
		})
		applyPlan(t, s, srv.URL, planner.Plan{
			Files: []planner.FileSpec{{Format: planner.FormatPatch, Version: model.VersionNumber{Major: 1, Patch: 1}}},
		})

		got, err := s.GetWord(uint32(id))
		if err != nil {
			t.Fatalf("GetWord(%d): %v", id, err)
		}
		if got != nil {
			t.Fatalf("word %d must be absent after delete, got %+v", id, got)
		}
	})
}
