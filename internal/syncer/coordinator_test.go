// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package syncer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/store"
	"github.com/kotobadb/kotobadb/internal/transport"
	"github.com/kotobadb/kotobadb/internal/version"
)

func jsonl(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func hdr(format string, major, minor, patch uint16, records int) string {
	return fmt.Sprintf(`{"type":"header","format":%q,"records":%d,"version":{"major":%d,"minor":%d,"patch":%d,"dateOfCreation":"2026-01-01"}}`,
		format, records, major, minor, patch)
}

func newBackend(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestCoordinator(t *testing.T, files map[string]string) (*Coordinator, *store.Store) {
	t.Helper()
	srv := newBackend(t, files)
	s, err := store.Open(t.TempDir() + "/kotoba.db")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	fetcher := transport.NewFetcher()
	vc := version.New(srv.URL, fetcher)
	return New(s, vc, fetcher, srv.URL, nil), s
}

const manifestAllSeries = `{
	"words":    {"1": {"major":1,"minor":0,"patch":0,"dateOfCreation":"2026-01-01"}},
	"kanji":    {"1": {"major":1,"minor":0,"patch":0,"dateOfCreation":"2026-01-01"}},
	"radicals": {"1": {"major":1,"minor":0,"patch":0,"dateOfCreation":"2026-01-01"}},
	"names":    {"1": {"major":1,"minor":0,"patch":0,"dateOfCreation":"2026-01-01"}}
}`

func TestUpdateCommitsWordsAndEmitsStateTransitions(t *testing.T) {
	c, s := newTestCoordinator(t, map[string]string{
		"/version-en.json": manifestAllSeries,
		"/words/en/1.0.0.jsonl": jsonl(
			hdr("full", 1, 0, 0, 1),
			`{"id":1,"r":["ひく"],"s":[{"g":["to pull"],"lang":"en"}]}`,
		),
	})

	var kinds []model.UpdateStateKind
	var mu sync.Mutex
	unsub := c.AddChangeListener(func(topic string, series model.DataSeries, state model.UpdateState) {
		if series != model.SeriesWords {
			return
		}
		mu.Lock()
		kinds = append(kinds, state.Kind)
		mu.Unlock()
	})
	defer unsub()

	err := c.Update(context.Background(), model.MajorWords, "en")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, kinds)
	assert.Equal(t, model.UpdateChecking, kinds[0])
	assert.Equal(t, model.UpdateIdle, kinds[len(kinds)-1])

	w, err := s.GetWord(1)
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestUpdateKanjiTriggersRadicalsFollowOn(t *testing.T) {
	c, s := newTestCoordinator(t, map[string]string{
		"/version-en.json": manifestAllSeries,
		"/kanji/en/1.0.0.jsonl": jsonl(
			hdr("full", 1, 0, 0, 1),
			`{"c":24341,"rad":{"x":57},"m":["pull"]}`,
		),
		"/radicals/en/1.0.0.jsonl": jsonl(
			hdr("full", 1, 0, 0, 1),
			`{"id":"057","r":57,"b":24358,"sc":3}`,
		),
	})

	err := c.Update(context.Background(), model.MajorKanji, "en")
	require.NoError(t, err)

	k, err := s.GetKanji(rune(24341))
	require.NoError(t, err)
	require.NotNil(t, k)

	radVersion, err := s.GetDataVersion(model.SeriesRadicals)
	require.NoError(t, err)
	require.NotNil(t, radVersion, "the kanji update must have pulled radicals along as a follow-on")
}

func TestUpdateCoalescesConcurrentCallersSameLanguage(t *testing.T) {
	c, _ := newTestCoordinator(t, map[string]string{
		"/version-en.json": manifestAllSeries,
		"/words/en/1.0.0.jsonl": jsonl(
			hdr("full", 1, 0, 0, 1),
			`{"id":1,"r":["ひく"],"s":[{"g":["to pull"],"lang":"en"}]}`,
		),
	})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Update(context.Background(), model.MajorWords, "en")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestUpdateAllFansOutAcrossSeries(t *testing.T) {
	c, s := newTestCoordinator(t, map[string]string{
		"/version-en.json": manifestAllSeries,
		"/words/en/1.0.0.jsonl": jsonl(
			hdr("full", 1, 0, 0, 1),
			`{"id":1,"r":["ひく"],"s":[{"g":["to pull"],"lang":"en"}]}`,
		),
		"/kanji/en/1.0.0.jsonl": jsonl(
			hdr("full", 1, 0, 0, 1),
			`{"c":24341,"rad":{"x":57},"m":["pull"]}`,
		),
		"/radicals/en/1.0.0.jsonl": jsonl(
			hdr("full", 1, 0, 0, 1),
			`{"id":"057","r":57,"b":24358,"sc":3}`,
		),
		"/names/en/1.0.0.jsonl": jsonl(
			hdr("full", 1, 0, 0, 1),
			`{"id":1,"r":["たなか"],"k":["田中"],"tr":[{"type":["surname"],"det":["Tanaka"]}]}`,
		),
	})

	err := c.UpdateAll(context.Background(), model.AllMajorSeries, "en")
	require.NoError(t, err)

	w, err := s.GetWord(1)
	require.NoError(t, err)
	assert.NotNil(t, w)

	var n *model.Name
	err = s.ViewNames(func(v *store.NamesView) error {
		var verr error
		n, verr = v.Get(1)
		return verr
	})
	require.NoError(t, err)
	assert.NotNil(t, n)

	k, err := s.GetKanji(rune(24341))
	require.NoError(t, err)
	assert.NotNil(t, k)
}

func TestCancelUpdateStopsInFlightRun(t *testing.T) {
	c, _ := newTestCoordinator(t, map[string]string{
		"/version-en.json": manifestAllSeries,
	})
	// No file registered for words/en/1.0.0.jsonl: the run fails with
	// DatabaseFileNotFound on the 404, or with Aborted if CancelUpdate
	// lands first; either way Update returns an error.
	done := make(chan error, 1)
	go func() {
		done <- c.Update(context.Background(), model.MajorWords, "en")
	}()
	c.CancelUpdate(model.MajorWords)
	err := <-done
	assert.Error(t, err)
}

func TestDestroyAwaitsInFlightRunAndNotifiesDeleted(t *testing.T) {
	srv := newBackend(t, map[string]string{
		"/version-en.json": manifestAllSeries,
	})
	s, err := store.Open(t.TempDir() + "/kotoba.db")
	require.NoError(t, err)
	fetcher := transport.NewFetcher()
	vc := version.New(srv.URL, fetcher)
	c := New(s, vc, fetcher, srv.URL, nil)

	var mu sync.Mutex
	var deletedSeries []model.DataSeries
	c.AddChangeListener(func(topic string, series model.DataSeries, state model.UpdateState) {
		if topic != "deleted" {
			return
		}
		mu.Lock()
		deletedSeries = append(deletedSeries, series)
		mu.Unlock()
	})

	// No file registered for words/en/1.0.0.jsonl: the run fails with
	// DatabaseFileNotFound on the 404, or with Aborted if Destroy cancels
	// it first; either way Update returns an error.
	done := make(chan error, 1)
	go func() {
		done <- c.Update(context.Background(), model.MajorWords, "en")
	}()

	c.Destroy()
	assert.Error(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, model.AllSeries, deletedSeries)
}
