// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package errs defines the closed error taxonomy shared by every stage of
// the sync and query pipelines.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies one of the sum-type error variants. It is
// exhaustive: callers that need to dispatch on error kind should switch on
// Code rather than compare error values directly, since Error carries
// dynamic fields (URL, retry count) alongside the code.
type Code string

const (
	VersionFileNotFound      Code = "VersionFileNotFound"
	VersionFileNotAccessible Code = "VersionFileNotAccessible"
	VersionFileInvalid       Code = "VersionFileInvalid"
	MajorVersionNotFound     Code = "MajorVersionNotFound"
	DatabaseFileNotFound     Code = "DatabaseFileNotFound"
	DatabaseFileNotAccessible Code = "DatabaseFileNotAccessible"
	DatabaseFileHeaderMissing Code = "DatabaseFileHeaderMissing"
	DatabaseFileHeaderDuplicate Code = "DatabaseFileHeaderDuplicate"
	DatabaseFileVersionMismatch Code = "DatabaseFileVersionMismatch"
	DatabaseFileInvalidJSON   Code = "DatabaseFileInvalidJSON"
	DatabaseFileInvalidRecord Code = "DatabaseFileInvalidRecord"
	DatabaseTooOld            Code = "DatabaseTooOld"
	Timeout                   Code = "Timeout"
	Aborted                   Code = "Aborted"
	Offline                   Code = "Offline"
	ConstraintError            Code = "ConstraintError"
)

// Error is the single error type carrying a Code plus the optional
// contextual fields: {code, url?, retryCount?}, plus a Message and a
// Wrapped cause.
type Error struct {
	Code       Code
	URL        string
	RetryCount int
	// Message holds a human-readable detail (e.g. the offending JSON
	// fragment for DatabaseFileInvalidRecord); it is never used for
	// control flow, only logging and parseerror events.
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.URL != "" {
		if e.Message != "" {
			return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.URL)
		}
		return fmt.Sprintf("%s: %s", e.Code, e.URL)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is lets errors.Is(err, &Error{Code: X}) match any *Error with the same
// Code, ignoring the contextual fields.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// New builds a bare *Error for the given code.
func New(code Code) *Error { return &Error{Code: code} }

// Newf builds an *Error with a formatted Message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithURL returns a copy of e with URL set; used when a network error needs
// to surface which endpoint failed.
func (e *Error) WithURL(url string) *Error {
	c := *e
	c.URL = url
	return &c
}

// Wrap attaches an underlying cause, preserving Code for errors.Is/As.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Wrapped: cause, Message: cause.Error()}
}

// IsNetwork reports whether err should be classified as a DownloadError for
// the Retry Supervisor's network-retry tier.
func IsNetwork(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case VersionFileNotAccessible, DatabaseFileNotAccessible, Timeout,
		DatabaseFileNotFound, VersionFileNotFound:
		return true
	default:
		return false
	}
}

// IsRunLevel reports whether err terminates the whole run rather than being
// retried transparently within a file.
func IsRunLevel(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case Aborted, Offline, ConstraintError, DatabaseTooOld:
		return true
	default:
		return false
	}
}
