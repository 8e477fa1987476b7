// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// serverInitLen is the fixed part of ServerInit: width, height, pixel
// format and the desktop name length.
const serverInitLen = 2 + 2 + pixelFormatLen + 4

// ServerInitInfo is the server's capability record from ServerInit.
type ServerInitInfo struct {
	FrameBufferWidth  uint16
	FrameBufferHeight uint16
	PixelFormat       PixelFormat
	DesktopName       string
}

// Initialize sends ClientInit with the share flag and decodes ServerInit
// (RFC 6143 Sections 7.3.1-7.3.2). The session must be Authenticated.
//
// The fixed 24-byte header and the desktop name are each read in full
// regardless of how the transport splits them; a transport that closes
// first fails with ErrShortRead. Dimensions, pixel format and name length
// outside protocol limits fail with ErrValidation.
func (s *Session) Initialize(ctx context.Context, shared bool) (*ServerInitInfo, error) {
	const op = "Initialize"
	if err := s.begin(op, StateInitialized); err != nil {
		return nil, err
	}
	defer s.end()

	var sharedFlag uint8
	if shared {
		sharedFlag = 1
	}

	s.logger.Debug("Sending client init", Field{Key: "shared", Value: shared})
	if err := s.write(ctx, op, []byte{sharedFlag}); err != nil {
		return nil, s.fail(op, err)
	}

	info, err := s.readServerInit(ctx, op)
	if err != nil {
		return nil, s.fail(op, err)
	}

	fb := image.NewRGBA(image.Rect(0, 0, int(info.FrameBufferWidth), int(info.FrameBufferHeight)))

	s.mu.Lock()
	s.info = info
	s.framebuffer = fb
	s.mu.Unlock()
	s.advance(StateInitialized)

	s.logger.Info("Session initialized",
		Field{Key: "desktop_name", Value: info.DesktopName},
		Field{Key: "framebuffer_width", Value: info.FrameBufferWidth},
		Field{Key: "framebuffer_height", Value: info.FrameBufferHeight},
		Field{Key: "bpp", Value: info.PixelFormat.BPP},
		Field{Key: "depth", Value: info.PixelFormat.Depth})

	return info, nil
}

func (s *Session) readServerInit(ctx context.Context, op string) (*ServerInitInfo, error) {
	validator := newInputValidator()

	header, err := s.readExact(ctx, op, serverInitLen)
	if err != nil {
		return nil, err
	}

	info := &ServerInitInfo{
		FrameBufferWidth:  binary.BigEndian.Uint16(header[0:2]),
		FrameBufferHeight: binary.BigEndian.Uint16(header[2:4]),
	}
	if err := info.PixelFormat.UnmarshalBinary(header[4 : 4+pixelFormatLen]); err != nil {
		return nil, err
	}
	nameLength := binary.BigEndian.Uint32(header[4+pixelFormatLen:])

	if err := validator.ValidateFramebufferDimensions(info.FrameBufferWidth, info.FrameBufferHeight); err != nil {
		return nil, validationError(op, "server sent invalid framebuffer dimensions", err)
	}
	if err := validator.ValidatePixelFormat(&info.PixelFormat); err != nil {
		return nil, validationError(op, "server sent invalid pixel format", err)
	}
	if err := validator.ValidateLength(nameLength, s.config.MaxDesktopNameLength); err != nil {
		return nil, validationError(op, "server sent invalid desktop name length", err)
	}

	name, err := s.readExact(ctx, op, int(nameLength))
	if err != nil {
		return nil, err
	}

	info.DesktopName = decodeText(name)
	if sanitized := validator.SanitizeText(info.DesktopName); sanitized != info.DesktopName {
		s.logger.Warn("Desktop name contained control characters, sanitizing",
			Field{Key: "original_name", Value: fmt.Sprintf("%q", info.DesktopName)})
		info.DesktopName = sanitized
	}

	return info, nil
}

// decodeText keeps valid UTF-8 as is and otherwise treats the bytes as
// ISO-8859-1, the encoding RFC 6143 specifies for desktop names.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(decoded)
}
