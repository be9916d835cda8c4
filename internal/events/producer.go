// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package events

import (
	"context"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/kotobadb/kotobadb/internal/errs"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/planner"
	"github.com/kotobadb/kotobadb/internal/stream"
	"github.com/kotobadb/kotobadb/internal/transport"
)

// header is the first line of every downloaded file.
type header struct {
	Type            string              `json:"type"`
	Version         headerVersion       `json:"version"`
	Records         int                 `json:"records"`
	Part            *uint16             `json:"part,omitempty"`
	Format          string              `json:"format"`
}

type headerVersion struct {
	Major           uint16 `json:"major"`
	Minor           uint16 `json:"minor"`
	Patch           uint16 `json:"patch"`
	DatabaseVersion string `json:"databaseVersion,omitempty"`
	DateOfCreation  string `json:"dateOfCreation"`
}

func (h headerVersion) Number() model.VersionNumber {
	return model.VersionNumber{Major: h.Major, Minor: h.Minor, Patch: h.Patch}
}

// patchRecordEnvelope is used only to detect the "_" discriminator; the
// remaining payload is forwarded untouched for schema validation
// downstream.
type patchRecordEnvelope struct {
	Mode *string `json:"_"`
}

// Producer drives the Download Planner's file list through HTTP GETs and
// the Line Stream Reader, yielding Events in file order. It is a pull
// iterator (Next), not a push channel, so the
// Update Applier can keep a file's transaction open exactly between the
// FileStart and FileEnd events it receives.
type Producer struct {
	base    string
	series  model.DataSeries
	lang    string
	fetcher *transport.Fetcher

	files       []planner.FileSpec
	reset       bool
	fileIdx     int
	emittedReset bool
	emittedStart bool
	emittedEnd   bool

	current *fileCursor
}

type fileCursor struct {
	spec       planner.FileSpec
	body       io.ReadCloser
	reader     *stream.Reader
	header     *header
	yieldedStart bool
	finished     bool
}

// NewProducer builds a Producer for one planner.Plan.
func NewProducer(base string, series model.DataSeries, lang string, fetcher *transport.Fetcher, plan planner.Plan) *Producer {
	return &Producer{
		base:    base,
		series:  series,
		lang:    lang,
		fetcher: fetcher,
		files:   plan.Files,
		reset:   plan.Reset,
	}
}

// Next returns the next Event, or ok=false once DownloadEnd has been
// emitted. Honors ctx at every suspension point.
func (p *Producer) Next(ctx context.Context) (Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, false, errs.New(errs.Aborted)
	}

	if p.reset && !p.emittedReset {
		p.emittedReset = true
		return Event{Kind: KindReset}, true, nil
	}

	if !p.emittedStart {
		p.emittedStart = true
		return Event{Kind: KindDownloadStart, TotalFiles: len(p.files)}, true, nil
	}

	for {
		if p.current == nil {
			if p.fileIdx >= len(p.files) {
				if p.emittedEnd {
					return Event{}, false, nil
				}
				p.emittedEnd = true
				return Event{Kind: KindDownloadEnd}, true, nil
			}
			cur, err := p.openFile(ctx, p.files[p.fileIdx])
			if err != nil {
				return Event{}, false, err
			}
			p.current = cur
		}

		ev, more, err := p.current.next(ctx)
		if err != nil {
			return Event{}, false, err
		}
		if !more {
			p.current.body.Close()
			p.current = nil
			p.fileIdx++
			return Event{Kind: KindFileEnd}, true, nil
		}
		return ev, true, nil
	}
}

func (p *Producer) url(spec planner.FileSpec) string {
	v := spec.Version
	switch spec.Format {
	case planner.FormatPatch:
		return fmt.Sprintf("%s/%s/%s/%d.%d.%d-patch.jsonl", p.base, p.series, p.lang, v.Major, v.Minor, v.Patch)
	default:
		if spec.PartInfo != nil {
			return fmt.Sprintf("%s/%s/%s/%d.%d.%d-%d.jsonl", p.base, p.series, p.lang, v.Major, v.Minor, v.Patch, spec.PartInfo.Part)
		}
		return fmt.Sprintf("%s/%s/%s/%d.%d.%d.jsonl", p.base, p.series, p.lang, v.Major, v.Minor, v.Patch)
	}
}

func (p *Producer) openFile(ctx context.Context, spec planner.FileSpec) (*fileCursor, error) {
	u := p.url(spec)
	resp, err := p.fetcher.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == 404:
		resp.Body.Close()
		return nil, errs.New(errs.DatabaseFileNotFound).WithURL(u)
	case resp.StatusCode != 200:
		resp.Body.Close()
		return nil, errs.Newf(errs.DatabaseFileNotAccessible, "status %d", resp.StatusCode).WithURL(u)
	}

	r := stream.New(resp.Body, transport.Timeout, u)
	return &fileCursor{spec: spec, body: resp.Body, reader: r}, nil
}

// next drives one file's records, yielding FileStart once then one Record
// event per subsequent line; more=false signals FileEnd is due.
func (c *fileCursor) next(ctx context.Context) (Event, bool, error) {
	if c.finished {
		return Event{}, false, nil
	}

	if c.header == nil {
		raw, ok, err := c.reader.Next(ctx)
		if err != nil {
			return Event{}, false, err
		}
		if !ok {
			return Event{}, false, errs.New(errs.DatabaseFileHeaderMissing)
		}
		var h header
		if err := json.Unmarshal(raw, &h); err != nil || h.Type != "header" {
			return Event{}, false, errs.New(errs.DatabaseFileHeaderMissing)
		}
		if err := c.validateHeader(h); err != nil {
			return Event{}, false, err
		}
		c.header = &h
		c.yieldedStart = true
		ev := Event{
			Kind:         KindFileStart,
			Version:      h.Version.Number(),
			TotalRecords: h.Records,
		}
		if c.spec.PartInfo != nil {
			ev.PartInfo = c.spec.PartInfo
		}
		return ev, true, nil
	}

	raw, ok, err := c.reader.Next(ctx)
	if err != nil {
		return Event{}, false, err
	}
	if !ok {
		c.finished = true
		return Event{}, false, nil
	}

	var probe struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &probe)
	if probe.Type == "header" {
		return Event{}, false, errs.New(errs.DatabaseFileHeaderDuplicate)
	}

	if c.header.Format == "patch" {
		var env patchRecordEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Event{}, false, errs.New(errs.DatabaseFileInvalidRecord)
		}
		if env.Mode == nil {
			return Event{}, false, errs.New(errs.DatabaseFileInvalidRecord)
		}
		var mode RecordMode
		switch *env.Mode {
		case "+":
			mode = ModeAdd
		case "-":
			mode = ModeDelete
		case "~":
			mode = ModeChange
		default:
			return Event{}, false, errs.New(errs.DatabaseFileInvalidRecord)
		}
		payload, err := stripUnderscore(raw)
		if err != nil {
			return Event{}, false, errs.New(errs.DatabaseFileInvalidRecord)
		}
		return Event{Kind: KindRecord, Mode: mode, Payload: payload}, true, nil
	}

	// format == "full": must not contain "_".
	var env patchRecordEnvelope
	_ = json.Unmarshal(raw, &env)
	if env.Mode != nil {
		return Event{}, false, errs.New(errs.DatabaseFileInvalidRecord)
	}
	return Event{Kind: KindRecord, Mode: ModeAdd, Payload: raw}, true, nil
}

func (c *fileCursor) validateHeader(h header) error {
	if h.Format != "full" && h.Format != "patch" {
		return errs.New(errs.DatabaseFileHeaderMissing)
	}
	wantFormat := "full"
	if c.spec.Format == "patch" {
		wantFormat = "patch"
	}
	if h.Format != wantFormat {
		return errs.New(errs.DatabaseFileVersionMismatch)
	}
	if !h.Version.Number().Equal(c.spec.Version) {
		return errs.New(errs.DatabaseFileVersionMismatch)
	}
	if c.spec.PartInfo != nil {
		if h.Part == nil || *h.Part != c.spec.PartInfo.Part {
			return errs.New(errs.DatabaseFileVersionMismatch)
		}
	} else if h.Part != nil {
		return errs.New(errs.DatabaseFileVersionMismatch)
	}
	return nil
}

// stripUnderscore re-marshals raw without its top-level "_" field, since
// the remainder is either the full record schema ("+"/"~") or just the
// primary key ("-").
func stripUnderscore(raw json.RawMessage) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "_")
	return json.Marshal(m)
}
