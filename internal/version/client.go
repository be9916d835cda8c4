// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package version implements the Version Catalog Client: it
// fetches and caches the per-language manifest listing the latest
// {major,minor,patch,parts?} for each series.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/kotobadb/kotobadb/internal/errs"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/transport"
)

// Entry is one {major,minor,patch,...} manifest entry for a single
// (series, majorVersion) pair.
type Entry struct {
	Major           uint16  `json:"major"`
	Minor           uint16  `json:"minor"`
	Patch           uint16  `json:"patch"`
	DateOfCreation  string  `json:"dateOfCreation"`
	DatabaseVersion string  `json:"databaseVersion,omitempty"`
	Parts           *uint16 `json:"parts,omitempty"`
}

func (e Entry) Number() model.VersionNumber {
	return model.VersionNumber{Major: e.Major, Minor: e.Minor, Patch: e.Patch}
}

// Manifest is the per-language catalog: series -> majorVersion string ->
// Entry.
type Manifest map[model.DataSeries]map[string]Entry

// Client fetches and caches {base}/version-{lang}.json.
type Client struct {
	base    string
	fetcher *transport.Fetcher

	cache *lru.Cache[string, Manifest]
	group singleflight.Group
}

// New builds a Client. base is the remote content host root (no trailing
// slash), e.g. "https://content.example.test".
func New(base string, fetcher *transport.Fetcher) *Client {
	cache, _ := lru.New[string, Manifest](16)
	return &Client{base: base, fetcher: fetcher, cache: cache}
}

// ClearCachedVersionInfo drops every cached manifest. Spec §9 calls this
// out explicitly as a Client method rather than a module-level global, so
// that multiple Clients (e.g. under test) never share cache state.
func (c *Client) ClearCachedVersionInfo() {
	c.cache.Purge()
}

// FetchManifest returns the manifest for lang, using the cache unless
// forceFetch is set. Concurrent callers for the same lang are
// coalesced onto a single in-flight HTTP request via singleflight, the
// idiomatic Go analogue of the module-level "cached manifest" becoming
// coordinator-owned state.
func (c *Client) FetchManifest(ctx context.Context, lang string, forceFetch bool) (Manifest, error) {
	if !forceFetch {
		if m, ok := c.cache.Get(lang); ok {
			return m, nil
		}
	}

	v, err, _ := c.group.Do(lang, func() (any, error) {
		m, ferr := c.fetch(ctx, lang)
		if ferr != nil {
			return nil, ferr
		}
		c.cache.Add(lang, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Manifest), nil
}

func (c *Client) fetch(ctx context.Context, lang string) (Manifest, error) {
	url := fmt.Sprintf("%s/version-%s.json", c.base, lang)
	resp, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 404:
		return nil, errs.New(errs.VersionFileNotFound).WithURL(url)
	case resp.StatusCode != 200:
		return nil, errs.Newf(errs.VersionFileNotAccessible, "status %d", resp.StatusCode).WithURL(url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.VersionFileNotAccessible, err).WithURL(url)
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errs.Wrap(errs.VersionFileInvalid, err).WithURL(url)
	}
	if err := validateManifest(m); err != nil {
		return nil, errs.Wrap(errs.VersionFileInvalid, err).WithURL(url)
	}
	return m, nil
}

func validateManifest(m Manifest) error {
	for series, byMajor := range m {
		if !validSeries(series) {
			return fmt.Errorf("unknown series %q", series)
		}
		for major, e := range byMajor {
			if major == "" {
				return fmt.Errorf("empty majorVersion key for series %q", series)
			}
			if e.DateOfCreation == "" {
				return fmt.Errorf("missing dateOfCreation for %s/%s", series, major)
			}
			if e.Parts != nil && *e.Parts == 0 {
				return fmt.Errorf("parts must be >= 1 for %s/%s", series, major)
			}
		}
	}
	return nil
}

func validSeries(s model.DataSeries) bool {
	for _, known := range model.AllSeries {
		if s == known {
			return true
		}
	}
	return false
}

// GetVersionInfo resolves the Entry for (series, majorVersion, lang),
// returning a MajorVersionNotFound error when either is absent.
func (c *Client) GetVersionInfo(ctx context.Context, series model.DataSeries, majorVersion string, lang string, forceFetch bool) (*Entry, error) {
	m, err := c.FetchManifest(ctx, lang, forceFetch)
	if err != nil {
		return nil, err
	}
	byMajor, ok := m[series]
	if !ok {
		return nil, errs.Newf(errs.MajorVersionNotFound, "series %q not available for lang %q", series, lang)
	}
	e, ok := byMajor[majorVersion]
	if !ok {
		return nil, errs.Newf(errs.MajorVersionNotFound, "majorVersion %q not found for series %q", majorVersion, series)
	}
	return &e, nil
}

// HasLanguage probes whether series is listed for lang, suppressing every
// error encountered along the way.
func (c *Client) HasLanguage(ctx context.Context, series model.DataSeries, lang string) bool {
	m, err := c.FetchManifest(ctx, lang, false)
	if err != nil {
		return false
	}
	_, ok := m[series]
	return ok
}

// LatestVersion returns the version.Entry with the greatest VersionNumber
// across majorVersion keys for (series, lang) — the "latest manifest"
// value the Download Planner compares against the current local version.
func (c *Client) LatestVersion(ctx context.Context, series model.DataSeries, lang string, forceFetch bool) (*Entry, error) {
	m, err := c.FetchManifest(ctx, lang, forceFetch)
	if err != nil {
		return nil, err
	}
	byMajor, ok := m[series]
	if !ok {
		return nil, errs.Newf(errs.MajorVersionNotFound, "series %q not available for lang %q", series, lang)
	}
	var best *Entry
	for _, e := range byMajor {
		e := e
		if best == nil || e.Number().Compare(best.Number()) > 0 {
			best = &e
		}
	}
	if best == nil {
		return nil, errs.Newf(errs.MajorVersionNotFound, "no versions listed for series %q", series)
	}
	return best, nil
}
