// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionNumberCompareOrdersMajorThenMinorThenPatch(t *testing.T) {
	assert.True(t, VersionNumber{Major: 1}.Less(VersionNumber{Major: 2}))
	assert.True(t, VersionNumber{Major: 1, Minor: 1}.Less(VersionNumber{Major: 1, Minor: 2}))
	assert.True(t, VersionNumber{Major: 1, Minor: 1, Patch: 1}.Less(VersionNumber{Major: 1, Minor: 1, Patch: 2}))
	assert.True(t, VersionNumber{Major: 1, Minor: 2, Patch: 9}.Less(VersionNumber{Major: 2}))
	assert.True(t, VersionNumber{Major: 1}.Equal(VersionNumber{Major: 1}))
}

func TestVersionNumberSameMajorMinor(t *testing.T) {
	assert.True(t, VersionNumber{Major: 1, Minor: 2, Patch: 3}.SameMajorMinor(VersionNumber{Major: 1, Minor: 2, Patch: 9}))
	assert.False(t, VersionNumber{Major: 1, Minor: 2}.SameMajorMinor(VersionNumber{Major: 1, Minor: 3}))
}

func TestPartInfoValidAndDone(t *testing.T) {
	assert.True(t, PartInfo{Part: 1, Parts: 3}.Valid())
	assert.False(t, PartInfo{Part: 0, Parts: 3}.Valid())
	assert.False(t, PartInfo{Part: 4, Parts: 3}.Valid())
	assert.False(t, PartInfo{Part: 2, Parts: 3}.Done())
	assert.True(t, PartInfo{Part: 3, Parts: 3}.Done())
}
