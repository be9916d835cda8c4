// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package stream implements the Line Stream Reader: reads an
// HTTP body as UTF-8, splits on line terminators, parses each line as
// JSON, and yields a lazy sequence honoring per-read timeout and
// cancellation.
package stream

import (
	"bufio"
	"context"
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kotobadb/kotobadb/internal/errs"
)

// Reader yields successive non-empty lines of body as raw JSON, one
// Next() call at a time.
type Reader struct {
	br      *bufio.Reader
	timeout time.Duration
	url     string
	done    bool
}

// New wraps body. url is attached to any Timeout error raised: an
// expired read raises Timeout bound to the URL.
func New(body io.Reader, timeout time.Duration, url string) *Reader {
	return &Reader{br: bufio.NewReader(body), timeout: timeout, url: url}
}

// Next returns the next non-empty line's raw JSON payload. ok is false
// once the stream is exhausted, including the final buffered fragment
// flushed at end-of-stream. Honors ctx between lines and applies
// Reader's timeout to each individual underlying read.
func (r *Reader) Next(ctx context.Context) (json.RawMessage, bool, error) {
	for {
		if r.done {
			return nil, false, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, false, errs.New(errs.Aborted)
		}

		line, readErr := r.readLineWithTimeout(ctx)
		if readErr != nil {
			return nil, false, readErr
		}
		if line == nil {
			r.done = true
			return nil, false, nil
		}

		trimmed := trimLineTerminators(line)
		if len(trimmed) == 0 {
			continue
		}
		if !json.Valid(trimmed) {
			return nil, false, errs.New(errs.DatabaseFileInvalidJSON).WithURL(r.url)
		}
		return json.RawMessage(trimmed), true, nil
	}
}

// readResult is the outcome of one background line read.
type readResult struct {
	line []byte
	err  error
}

// readLineWithTimeout reads up to and including the next '\n' (or to
// EOF), racing the read against ctx and r.timeout. A nil, nil result
// means clean end-of-stream with nothing left to flush.
func (r *Reader) readLineWithTimeout(ctx context.Context) ([]byte, error) {
	resultCh := make(chan readResult, 1)
	go func() {
		line, err := r.br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			resultCh <- readResult{err: err}
			return
		}
		if err == io.EOF && len(line) == 0 {
			resultCh <- readResult{line: nil}
			return
		}
		resultCh <- readResult{line: line}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, errs.Wrap(errs.DatabaseFileNotAccessible, res.err).WithURL(r.url)
		}
		return res.line, nil
	case <-ctx.Done():
		return nil, errs.New(errs.Aborted)
	case <-timer.C:
		return nil, errs.New(errs.Timeout).WithURL(r.url)
	}
}

// trimLineTerminators strips a trailing \n, \r\n, or \r.
func trimLineTerminators(line []byte) []byte {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return line[:n]
}
