// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelFormat_UnmarshalBinary(t *testing.T) {
	data := []byte{
		32, 24, 1, 1, // bpp, depth, big-endian, true color
		0x00, 0xff, 0x00, 0x3f, 0x00, 0x1f, // red, green, blue max
		16, 8, 0, // shifts
		0xaa, 0xbb, 0xcc, // padding is ignored
	}

	var pf PixelFormat
	require.NoError(t, pf.UnmarshalBinary(data))

	want := PixelFormat{
		BPP: 32, Depth: 24, BigEndian: true, TrueColor: true,
		RedMax: 255, GreenMax: 63, BlueMax: 31,
		RedShift: 16, GreenShift: 8, BlueShift: 0,
	}
	if diff := cmp.Diff(want, pf); diff != "" {
		t.Errorf("PixelFormat mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, pf.BytesPerPixel())
}

func TestPixelFormat_UnmarshalShort(t *testing.T) {
	var pf PixelFormat
	err := pf.UnmarshalBinary(make([]byte, 15))
	assert.True(t, IsRFBError(err, ErrShortRead))
}

func TestPixelFormat_MarshalLayout(t *testing.T) {
	data, err := PixelFormat16BitRGB565.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{16, 16, 0, 1, 0, 31, 0, 63, 0, 31, 11, 5, 0, 0, 0, 0}, data)
}

func TestPixelFormat_BytesPerPixel(t *testing.T) {
	assert.Equal(t, 4, PixelFormat32BitRGBA.BytesPerPixel())
	assert.Equal(t, 2, PixelFormat16BitRGB565.BytesPerPixel())
	assert.Equal(t, 1, PixelFormat8BitIndexed.BytesPerPixel())
}

func TestPixelFormat_ValidationError(t *testing.T) {
	err := (&PixelFormat{BPP: 12}).Validate()
	require.Error(t, err)
	assert.Equal(t, "pixel format validation failed for field BPP: bits per pixel must be 8, 16, or 32 (value: 12)", err.Error())
}
