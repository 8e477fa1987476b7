// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// pixelDecoder turns wire pixels in a negotiated PixelFormat into RGBA.
type pixelDecoder struct {
	pixelFormat PixelFormat
	colorMap    *ColorMap
	byteOrder   binary.ByteOrder
}

// newPixelDecoder reads multi-byte pixels in byteOrder, little-endian when
// byteOrder is nil.
func newPixelDecoder(pixelFormat PixelFormat, colorMap *ColorMap, byteOrder binary.ByteOrder) *pixelDecoder {
	if byteOrder == nil {
		byteOrder = binary.LittleEndian
	}
	if colorMap == nil {
		colorMap = NewColorMap()
	}

	return &pixelDecoder{
		pixelFormat: pixelFormat,
		colorMap:    colorMap,
		byteOrder:   byteOrder,
	}
}

func (pd *pixelDecoder) BytesPerPixel() int {
	return pd.pixelFormat.BytesPerPixel()
}

// DataSize is the number of bytes a raw width x height rectangle occupies.
func (pd *pixelDecoder) DataSize(width, height uint16) int {
	return int(width) * int(height) * pd.BytesPerPixel()
}

// Decode interprets data as row-major pixels of a width x height surface.
// data must be exactly DataSize(width, height) bytes long.
func (pd *pixelDecoder) Decode(data []byte, width, height uint16) (*image.RGBA, error) {
	want := pd.DataSize(width, height)
	if len(data) != want {
		return nil, validationError("pixelDecoder.Decode",
			fmt.Sprintf("pixel data is %d bytes, %dx%d at %d bpp needs %d",
				len(data), width, height, pd.pixelFormat.BPP, want), nil)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	bpp := pd.BytesPerPixel()
	for i, offset := 0, 0; offset < len(data); i, offset = i+1, offset+bpp {
		c := pd.pixelToColor(pd.bytesToPixel(data[offset : offset+bpp]))
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	return img, nil
}

func (pd *pixelDecoder) bytesToPixel(pixelBytes []byte) uint32 {
	switch pd.pixelFormat.BPP {
	case 8:
		return uint32(pixelBytes[0])
	case 16:
		return uint32(pd.byteOrder.Uint16(pixelBytes))
	case 32:
		return pd.byteOrder.Uint32(pixelBytes)
	default:
		return 0
	}
}

func (pd *pixelDecoder) pixelToColor(rawPixel uint32) color.RGBA {
	pf := pd.pixelFormat
	if !pf.TrueColor {
		if rawPixel >= ColorMapSize {
			return color.RGBA{A: 0xff}
		}
		return pd.colorMap.Get(uint8(rawPixel)).RGBA() // #nosec G115 - bounded by ColorMapSize
	}

	return color.RGBA{
		R: scaleChannel((rawPixel>>pf.RedShift)&uint32(pf.RedMax), pf.RedMax),
		G: scaleChannel((rawPixel>>pf.GreenShift)&uint32(pf.GreenMax), pf.GreenMax),
		B: scaleChannel((rawPixel>>pf.BlueShift)&uint32(pf.BlueMax), pf.BlueMax),
		A: 0xff,
	}
}

// scaleChannel maps value in [0, maxValue] onto [0, 255].
func scaleChannel(value uint32, maxValue uint16) uint8 {
	if maxValue == 0 {
		return 0
	}
	if maxValue == 0xff {
		return uint8(value) // #nosec G115 - masked by maxValue
	}
	return uint8(value * 0xff / uint32(maxValue)) // #nosec G115 - value <= maxValue
}
