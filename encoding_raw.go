// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
)

// RawEncoding carries uncompressed pixels in row-major order
// (RFC 6143 Section 7.7.1).
type RawEncoding struct{}

// Type returns EncodingRaw.
func (*RawEncoding) Type() int32 {
	return EncodingRaw
}

// Read reads exactly width*height*BPP/8 bytes into one buffer and decodes
// them with the session's pixel format. The payload is accumulated by the
// byte-exact reader, so the result does not depend on how the transport
// splits it.
func (*RawEncoding) Read(ctx context.Context, s *Session, rect *Rectangle) error {
	const op = "RawEncoding.Read"

	info := s.ServerInit()
	if info == nil {
		return stateError(op, "pixel format is not known before Initialize", nil)
	}

	s.mu.RLock()
	colorMap := s.colorMap
	s.mu.RUnlock()

	decoder := newPixelDecoder(info.PixelFormat, colorMap, s.pixelByteOrder(info.PixelFormat))
	pixels := make([]byte, decoder.DataSize(rect.Width, rect.Height))
	if err := s.readInto(ctx, op, pixels); err != nil {
		return err
	}

	img, err := decoder.Decode(pixels, rect.Width, rect.Height)
	if err != nil {
		return err
	}

	rect.Pixels = pixels
	rect.Image = img
	return nil
}
