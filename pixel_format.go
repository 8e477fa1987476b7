// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"encoding/binary"
	"fmt"
)

// pixelFormatLen is the wire size of a PIXEL_FORMAT structure, including
// its three trailing padding bytes.
const pixelFormatLen = 16

// PixelFormat describes how color channels are packed into each pixel of
// framebuffer data. It is received once in ServerInit and never changes
// for the session.
type PixelFormat struct {
	// BPP (bits-per-pixel) is the size of one pixel on the wire: 8, 16 or 32.
	BPP uint8

	// Depth is the number of useful bits within each pixel value.
	Depth uint8

	// BigEndian is the byte order the server announces. Raw pixels are read
	// little-endian unless the session is built WithServerByteOrder.
	BigEndian bool

	// TrueColor reports whether pixels carry channel values directly (true)
	// or are indices into a color map (false).
	TrueColor bool

	RedMax   uint16
	GreenMax uint16
	BlueMax  uint16

	// RedShift, GreenShift and BlueShift are the right-shifts that bring
	// each channel down to the least significant bits.
	RedShift   uint8
	GreenShift uint8
	BlueShift  uint8
}

// BytesPerPixel returns the size of one pixel on the wire.
func (pf *PixelFormat) BytesPerPixel() int {
	return int(pf.BPP) / 8
}

// UnmarshalBinary decodes the 16-byte wire form. All multi-byte fields are
// big-endian; the channel maxima and shifts are decoded regardless of the
// true color flag.
func (pf *PixelFormat) UnmarshalBinary(data []byte) error {
	if len(data) < pixelFormatLen {
		return shortReadError("PixelFormat.UnmarshalBinary",
			fmt.Sprintf("pixel format needs %d bytes, got %d", pixelFormatLen, len(data)), nil)
	}

	pf.BPP = data[0]
	pf.Depth = data[1]
	pf.BigEndian = data[2] != 0
	pf.TrueColor = data[3] != 0
	pf.RedMax = binary.BigEndian.Uint16(data[4:6])
	pf.GreenMax = binary.BigEndian.Uint16(data[6:8])
	pf.BlueMax = binary.BigEndian.Uint16(data[8:10])
	pf.RedShift = data[10]
	pf.GreenShift = data[11]
	pf.BlueShift = data[12]
	// data[13:16] is padding

	return nil
}

// MarshalBinary encodes the 16-byte wire form.
func (pf *PixelFormat) MarshalBinary() ([]byte, error) {
	data := make([]byte, pixelFormatLen)
	data[0] = pf.BPP
	data[1] = pf.Depth
	if pf.BigEndian {
		data[2] = 1
	}
	if pf.TrueColor {
		data[3] = 1
	}
	binary.BigEndian.PutUint16(data[4:6], pf.RedMax)
	binary.BigEndian.PutUint16(data[6:8], pf.GreenMax)
	binary.BigEndian.PutUint16(data[8:10], pf.BlueMax)
	data[10] = pf.RedShift
	data[11] = pf.GreenShift
	data[12] = pf.BlueShift
	return data, nil
}

// PixelFormatValidationError describes which pixel format field broke
// which rule.
type PixelFormatValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error returns the formatted error message for pixel format validation errors.
func (e *PixelFormatValidationError) Error() string {
	return fmt.Sprintf("pixel format validation failed for field %s: %s (value: %v)",
		e.Field, e.Message, e.Value)
}

// Validate checks that raw pixels in this format can be decoded.
func (pf *PixelFormat) Validate() error {
	if pf.BPP != 8 && pf.BPP != 16 && pf.BPP != 32 {
		return &PixelFormatValidationError{
			Field:   "BPP",
			Value:   pf.BPP,
			Message: "bits per pixel must be 8, 16, or 32",
		}
	}

	if pf.Depth == 0 || pf.Depth > pf.BPP {
		return &PixelFormatValidationError{
			Field:   "Depth",
			Value:   pf.Depth,
			Message: fmt.Sprintf("color depth must be between 1 and %d", pf.BPP),
		}
	}

	if !pf.TrueColor {
		return nil
	}

	if pf.RedMax == 0 || pf.GreenMax == 0 || pf.BlueMax == 0 {
		return &PixelFormatValidationError{
			Field:   "ColorMax",
			Value:   fmt.Sprintf("R:%d G:%d B:%d", pf.RedMax, pf.GreenMax, pf.BlueMax),
			Message: "color maximums cannot be zero in true color mode",
		}
	}

	shifts := []struct {
		name  string
		shift uint8
	}{
		{"RedShift", pf.RedShift},
		{"GreenShift", pf.GreenShift},
		{"BlueShift", pf.BlueShift},
	}
	for _, s := range shifts {
		if s.shift >= pf.BPP {
			return &PixelFormatValidationError{
				Field:   s.name,
				Value:   s.shift,
				Message: fmt.Sprintf("shift exceeds %d-bit pixel", pf.BPP),
			}
		}
	}

	return nil
}

// Common pixel formats.
var (
	// PixelFormat32BitRGBA is the 32 bpp, depth 24 true color layout most
	// servers default to.
	PixelFormat32BitRGBA = PixelFormat{
		BPP:        32,
		Depth:      24,
		TrueColor:  true,
		RedMax:     255,
		GreenMax:   255,
		BlueMax:    255,
		RedShift:   16,
		GreenShift: 8,
		BlueShift:  0,
	}

	// PixelFormat16BitRGB565 is 16 bpp true color with a 6-bit green channel.
	PixelFormat16BitRGB565 = PixelFormat{
		BPP:        16,
		Depth:      16,
		TrueColor:  true,
		RedMax:     31,
		GreenMax:   63,
		BlueMax:    31,
		RedShift:   11,
		GreenShift: 5,
		BlueShift:  0,
	}

	// PixelFormat8BitIndexed is 8 bpp color-mapped.
	PixelFormat8BitIndexed = PixelFormat{
		BPP:   8,
		Depth: 8,
	}
)
