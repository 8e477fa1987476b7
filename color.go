// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"image/color"
	"sync"
)

// ColorMapSize is the number of entries in an RFB color map.
const ColorMapSize = 256

// Color is a color map entry with 16-bit channels, as RFB color maps carry
// them on the wire.
type Color struct {
	R uint16
	G uint16
	B uint16
}

// RGBA narrows c to an opaque 8-bit color.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{
		R: uint8(c.R >> 8), // #nosec G115 - shifted into range
		G: uint8(c.G >> 8), // #nosec G115 - shifted into range
		B: uint8(c.B >> 8), // #nosec G115 - shifted into range
		A: 0xff,
	}
}

// ColorMap translates pixel values to colors for indexed pixel formats.
//
// This client never asks the server for a palette, so the map keeps its
// default ramp: entry i is the gray level i.
type ColorMap struct {
	colors [ColorMapSize]Color
	mu     sync.RWMutex
}

// NewColorMap returns a color map holding the default grayscale ramp.
func NewColorMap() *ColorMap {
	cm := &ColorMap{}
	for i := 0; i < ColorMapSize; i++ {
		value := uint16(i * 257) // #nosec G115 - i is bounded by ColorMapSize (256)
		cm.colors[i] = Color{R: value, G: value, B: value}
	}
	return cm
}

// Get returns the color at index.
func (cm *ColorMap) Get(index uint8) Color {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.colors[index]
}

// Set replaces the color at index.
func (cm *ColorMap) Set(index uint8, c Color) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.colors[index] = c
}
