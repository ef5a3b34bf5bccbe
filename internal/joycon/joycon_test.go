package joycon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeButtons(t *testing.T) {
	report := make([]byte, 20)
	report[6] = 0b00001011

	layout := LayoutFor(SideLeft)
	require.Equal(t, 6, layout.ButtonByte)

	mask, err := layout.DecodeButtons(report)
	require.NoError(t, err)
	assert.Equal(t, ButtonMask(0x0b), mask)
	assert.Equal(t, []string{"Down", "Up", "Left"}, layout.Pressed(mask))
}

func TestDecodeButtonsShortBuffer(t *testing.T) {
	layout := LayoutFor(SideLeft)
	for size := 0; size <= layout.ButtonByte; size++ {
		_, err := layout.DecodeButtons(make([]byte, size))
		require.ErrorIs(t, err, ErrMalformedReport, "size %d", size)
	}
	_, err := layout.DecodeButtons(make([]byte, layout.ButtonByte+1))
	require.NoError(t, err)
}

func TestDecodeMotion(t *testing.T) {
	report := make([]byte, 20)
	report[16] = 0x34
	report[17] = 0x12
	report[18] = 0xfe
	report[19] = 0xff

	layout := LayoutFor(SideRight)
	x, y, err := layout.DecodeMotion(report)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), x)
	assert.Equal(t, uint16(0xfffe), y)

	// The short report variant carries no motion counters.
	short := make([]byte, 16)
	assert.False(t, layout.HasMotion(short))
	_, _, err = layout.DecodeMotion(short)
	assert.ErrorIs(t, err, ErrMalformedReport)
}

func TestLayoutsAreNotMirrored(t *testing.T) {
	left := LayoutFor(SideLeft)
	right := LayoutFor(SideRight)
	assert.NotEqual(t, left.ButtonByte, right.ButtonByte)
	assert.NotEqual(t, left.ButtonBits, right.ButtonBits)

	prevLeft, err := LayoutForRevision(RevisionPreview, SideLeft)
	require.NoError(t, err)
	assert.NotEqual(t, left.ButtonByte, prevLeft.ButtonByte)
}

func TestParseSide(t *testing.T) {
	for _, s := range []string{"left", "l", "L"} {
		side, err := ParseSide(s)
		require.NoError(t, err)
		assert.Equal(t, SideLeft, side)
	}
	side, err := ParseSide("right")
	require.NoError(t, err)
	assert.Equal(t, SideRight, side)

	_, err = ParseSide("middle")
	assert.Error(t, err)
}

func TestSideJSONRoundTrip(t *testing.T) {
	b, err := SideRight.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"right"`, string(b))

	var side Side
	require.NoError(t, side.UnmarshalJSON([]byte(`"left"`)))
	assert.Equal(t, SideLeft, side)

	err = side.UnmarshalJSON([]byte(`"up"`))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformedReport))
}
