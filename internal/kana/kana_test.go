// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

package kana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHiragana(t *testing.T) {
	assert.Equal(t, "ひく", ToHiragana("ヒク"))
	assert.Equal(t, "引く", ToHiragana("引く"))
	assert.Equal(t, "ひらがな漢字", ToHiragana("ひらがな漢字"))
}

func TestContainsHiragana(t *testing.T) {
	assert.True(t, ContainsHiragana("ひく"))
	assert.False(t, ContainsHiragana("引"))
	assert.False(t, ContainsHiragana("ABC"))
}

func TestIsKatakanaAndRomanize(t *testing.T) {
	assert.True(t, IsKatakana('ム'))
	assert.False(t, IsKatakana('ひ'))

	reading, ok := RomanizeKatakana('ム')
	assert.True(t, ok)
	assert.Equal(t, "mu", reading)

	reading, ok = RomanizeKatakana('ユ')
	assert.True(t, ok)
	assert.Equal(t, "yu", reading)

	_, ok = RomanizeKatakana('ひ')
	assert.False(t, ok)
}
