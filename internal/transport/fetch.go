// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package transport implements a thin HTTP fetch-with-timeout-and-
// cancellation primitive: an HTTP client treated as a fetch with timeout
// and cancellation, nothing more.
package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kotobadb/kotobadb/internal/errs"
)

// Timeout is the fixed per-read timeout: 20s, shared by the manifest
// fetch and the body read.
const Timeout = 20 * time.Second

// Fetcher performs a GET with a timeout and returns the raw response so
// callers can branch on status code (404 vs. other non-OK vs. success).
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{}}
}

// Response is the minimal shape callers need: status and a body that must
// be closed by the caller.
type Response struct {
	StatusCode int
	Body       io.ReadCloser
}

// Get issues a GET to url bound by both ctx and a Timeout deadline,
// mapping context cancellation to errs.Aborted and deadline-exceeded to
// errs.Timeout carrying the URL.
func (f *Fetcher) Get(ctx context.Context, url string) (*Response, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, Timeout)
	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, errs.Wrap(errs.VersionFileNotAccessible, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, errs.New(errs.Aborted)
		}
		if timeoutCtx.Err() != nil {
			return nil, errs.New(errs.Timeout).WithURL(url)
		}
		return nil, errs.Wrap(errs.VersionFileNotAccessible, err).WithURL(url)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       &cancelingBody{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

// cancelingBody ties the per-request context's cancel func to Close so the
// timeout context is always released once the body is drained or closed.
type cancelingBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelingBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
