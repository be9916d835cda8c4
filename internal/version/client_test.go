// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotobadb/kotobadb/internal/errs"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/transport"
)

func newManifestServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

const sampleManifest = `{
	"words": {"1": {"major":1,"minor":2,"patch":3,"dateOfCreation":"2026-01-01"}},
	"kanji": {"1": {"major":1,"minor":0,"patch":0,"dateOfCreation":"2026-01-01","parts":3}}
}`

func TestFetchManifestCachesAcrossCalls(t *testing.T) {
	srv, hits := newManifestServer(t, sampleManifest)
	c := New(srv.URL, transport.NewFetcher())

	_, err := c.FetchManifest(context.Background(), "en", false)
	require.NoError(t, err)
	_, err = c.FetchManifest(context.Background(), "en", false)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "second call must hit the cache, not the network")
}

func TestFetchManifestForceFetchBypassesCache(t *testing.T) {
	srv, hits := newManifestServer(t, sampleManifest)
	c := New(srv.URL, transport.NewFetcher())

	_, err := c.FetchManifest(context.Background(), "en", false)
	require.NoError(t, err)
	_, err = c.FetchManifest(context.Background(), "en", true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestClearCachedVersionInfoForcesRefetch(t *testing.T) {
	srv, hits := newManifestServer(t, sampleManifest)
	c := New(srv.URL, transport.NewFetcher())

	_, err := c.FetchManifest(context.Background(), "en", false)
	require.NoError(t, err)
	c.ClearCachedVersionInfo()
	_, err = c.FetchManifest(context.Background(), "en", false)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestLatestVersionPicksGreatestAcrossMajors(t *testing.T) {
	srv, _ := newManifestServer(t, `{
		"words": {
			"1": {"major":1,"minor":9,"patch":9,"dateOfCreation":"2026-01-01"},
			"2": {"major":2,"minor":0,"patch":0,"dateOfCreation":"2026-01-01"}
		}
	}`)
	c := New(srv.URL, transport.NewFetcher())

	e, err := c.LatestVersion(context.Background(), model.SeriesWords, "en", false)
	require.NoError(t, err)
	assert.Equal(t, model.VersionNumber{Major: 2}, e.Number())
}

func TestHasLanguageFalseOnMissingSeries(t *testing.T) {
	srv, _ := newManifestServer(t, `{"words": {"1": {"major":1,"minor":0,"patch":0,"dateOfCreation":"2026-01-01"}}}`)
	c := New(srv.URL, transport.NewFetcher())

	assert.True(t, c.HasLanguage(context.Background(), model.SeriesWords, "en"))
	assert.False(t, c.HasLanguage(context.Background(), model.SeriesKanji, "en"))
}

func TestFetchManifest404IsVersionFileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, transport.NewFetcher())

	_, err := c.FetchManifest(context.Background(), "en", false)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.VersionFileNotFound, e.Code)
}

func TestFetchManifestInvalidJSONIsVersionFileInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, transport.NewFetcher())

	_, err := c.FetchManifest(context.Background(), "en", false)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.VersionFileInvalid, e.Code)
}

func TestGetVersionInfoMajorVersionNotFound(t *testing.T) {
	srv, _ := newManifestServer(t, sampleManifest)
	c := New(srv.URL, transport.NewFetcher())

	_, err := c.GetVersionInfo(context.Background(), model.SeriesWords, "99", "en", false)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.MajorVersionNotFound, e.Code)
}
