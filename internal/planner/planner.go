// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package planner implements the Download Planner: given the
// current local version and the latest manifest entry, it computes the
// ordered list of files to fetch.
package planner

import (
	"github.com/kotobadb/kotobadb/internal/errs"
	"github.com/kotobadb/kotobadb/internal/model"
)

// resetPatchGap bounds how far a partitioned download can lag: past
// this many missed patches within the same (major,minor), an in-progress
// partitioned download is discarded in favor of a fresh full reset.
const resetPatchGap = 10

// Format distinguishes a full snapshot from a patch file.
type Format string

const (
	FormatFull  Format = "full"
	FormatPatch Format = "patch"
)

// FileSpec is one entry in the planner's ordered download list.
type FileSpec struct {
	Format   Format
	Version  model.VersionNumber
	PartInfo *model.PartInfo // only set for FormatFull when partitioned
}

// Plan is the planner's output: whether a Reset event must precede the
// downloads, and the ordered file list.
type Plan struct {
	Reset bool
	Files []FileSpec
}

// Current describes the local state the planner reasons about: absent
// entirely (nil) or a known VersionNumber with optional in-progress
// PartInfo.
type Current struct {
	Version  model.VersionNumber
	PartInfo *model.PartInfo
}

// Latest describes the manifest entry being planned against.
type Latest struct {
	Version model.VersionNumber
	Parts   *uint16 // non-nil when the manifest entry is a partitioned full snapshot
}

// Compute implements the planner's decision table.
func Compute(current *Current, latest Latest) (Plan, error) {
	if current == nil {
		if latest.Parts != nil {
			return resetPartitioned(latest.Version, *latest.Parts, 1), nil
		}
		return Plan{Reset: true, Files: []FileSpec{{Format: FormatFull, Version: latest.Version}}}, nil
	}

	if current.Version.Compare(latest.Version) > 0 {
		return Plan{}, errs.New(errs.DatabaseTooOld)
	}

	if current.Version.SameMajorMinor(latest.Version) {
		gap := int(latest.Version.Patch) - int(current.Version.Patch)
		if gap > resetPatchGap && current.PartInfo != nil {
			if latest.Parts != nil {
				return resetPartitioned(latest.Version, *latest.Parts, 1), nil
			}
			return Plan{Reset: true, Files: []FileSpec{{Format: FormatFull, Version: latest.Version}}}, nil
		}
		return planUpdate(current, latest), nil
	}

	// Different (major,minor): reset.
	if latest.Parts != nil {
		return resetPartitioned(latest.Version, *latest.Parts, 1), nil
	}
	return Plan{Reset: true, Files: []FileSpec{{Format: FormatFull, Version: latest.Version}}}, nil
}

func resetPartitioned(v model.VersionNumber, parts uint16, from uint16) Plan {
	var files []FileSpec
	for p := from; p <= parts; p++ {
		files = append(files, FileSpec{
			Format:   FormatFull,
			Version:  v,
			PartInfo: &model.PartInfo{Part: p, Parts: parts},
		})
	}
	return Plan{Reset: from == 1, Files: files}
}

// planUpdate handles the "same (major,minor)" branch: resume any
// in-progress partitioned download, then apply patches current.patch+1
// through latest.patch.
func planUpdate(current *Current, latest Latest) Plan {
	var files []FileSpec
	if current.PartInfo != nil && !current.PartInfo.Done() {
		for p := current.PartInfo.Part + 1; p <= current.PartInfo.Parts; p++ {
			files = append(files, FileSpec{
				Format:  FormatFull,
				Version: current.Version,
				PartInfo: &model.PartInfo{
					Part:  p,
					Parts: current.PartInfo.Parts,
				},
			})
		}
	}
	for patch := current.Version.Patch + 1; patch <= latest.Version.Patch; patch++ {
		files = append(files, FileSpec{
			Format: FormatPatch,
			Version: model.VersionNumber{
				Major: latest.Version.Major,
				Minor: latest.Version.Minor,
				Patch: patch,
			},
		})
	}
	return Plan{Reset: false, Files: files}
}
