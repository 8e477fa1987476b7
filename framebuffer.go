// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
)

// Message type identifiers used by this client.
const (
	framebufferUpdateMessageType        uint8 = 0
	framebufferUpdateRequestMessageType uint8 = 3
)

const (
	updateHeaderLen    = 4
	rectangleHeaderLen = 12
	updateRequestLen   = 10
)

// Rectangle is one region of a FramebufferUpdate.
type Rectangle struct {
	X      uint16
	Y      uint16
	Width  uint16
	Height uint16

	// EncodingType is the signed encoding identifier from the rectangle
	// header.
	EncodingType int32

	// Pixels holds the payload exactly as received, width*height*BPP/8
	// bytes for Raw.
	Pixels []byte

	// Image is the decoded payload, positioned at the origin.
	Image *image.RGBA
}

// Bounds returns the region the rectangle covers in the framebuffer.
func (r *Rectangle) Bounds() image.Rectangle {
	return image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Width), int(r.Y)+int(r.Height))
}

// FramebufferUpdate is a decoded FramebufferUpdate message.
type FramebufferUpdate struct {
	Rectangles []Rectangle

	// Warnings lists non-fatal anomalies, such as an
	// ErrRectangleCountMismatch when the server sent a different number of
	// rectangles than the caller expected.
	Warnings []error
}

// RequestUpdate sends FramebufferUpdateRequest (RFC 6143 Section 7.5.3)
// for the given region. It is allowed once encodings are set and again
// after each ReceiveUpdate.
//
// A region that is empty or outside the framebuffer fails with
// ErrValidation; since nothing is written the session stays usable.
func (s *Session) RequestUpdate(ctx context.Context, incremental bool, x, y, width, height uint16) error {
	const op = "RequestUpdate"
	if err := s.begin(op, StateAwaitingUpdate); err != nil {
		return err
	}
	defer s.end()

	info := s.ServerInit()
	if err := newInputValidator().ValidateRectangle(x, y, width, height,
		info.FrameBufferWidth, info.FrameBufferHeight); err != nil {
		return validationError(op, "invalid update region", err)
	}

	s.logger.Debug("Requesting framebuffer update",
		Field{Key: "incremental", Value: incremental},
		Field{Key: "x", Value: x},
		Field{Key: "y", Value: y},
		Field{Key: "width", Value: width},
		Field{Key: "height", Value: height})

	if err := s.write(ctx, op, encodeUpdateRequest(incremental, x, y, width, height)); err != nil {
		return s.fail(op, err)
	}

	s.advance(StateAwaitingUpdate)
	return nil
}

// RequestFullUpdate requests the whole framebuffer non-incrementally.
func (s *Session) RequestFullUpdate(ctx context.Context) error {
	info := s.ServerInit()
	if info == nil {
		return stateError("RequestFullUpdate", fmt.Sprintf("cannot request an update in state %s", s.State()), nil)
	}
	return s.RequestUpdate(ctx, false, 0, 0, info.FrameBufferWidth, info.FrameBufferHeight)
}

func encodeUpdateRequest(incremental bool, x, y, width, height uint16) []byte {
	msg := make([]byte, updateRequestLen)
	msg[0] = framebufferUpdateRequestMessageType
	if incremental {
		msg[1] = 1
	}
	binary.BigEndian.PutUint16(msg[2:4], x)
	binary.BigEndian.PutUint16(msg[4:6], y)
	binary.BigEndian.PutUint16(msg[6:8], width)
	binary.BigEndian.PutUint16(msg[8:10], height)
	return msg
}

// ReceiveUpdate reads one FramebufferUpdate (RFC 6143 Section 7.6.1),
// decodes every rectangle and draws each into Framebuffer.
//
// The server's rectangle count is authoritative. When it differs from
// expectedRectangles the mismatch is logged and reported in Warnings, and
// the update is still decoded.
func (s *Session) ReceiveUpdate(ctx context.Context, expectedRectangles uint16) (*FramebufferUpdate, error) {
	const op = "ReceiveUpdate"
	if err := s.begin(op, StateUpdateReceived); err != nil {
		return nil, err
	}
	defer s.end()

	update, err := s.readUpdate(ctx, op, expectedRectangles)
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.advance(StateUpdateReceived)
	s.logger.Info("Framebuffer update received",
		Field{Key: "rectangles", Value: len(update.Rectangles)},
		Field{Key: "warnings", Value: len(update.Warnings)})
	return update, nil
}

func (s *Session) readUpdate(ctx context.Context, op string, expectedRectangles uint16) (*FramebufferUpdate, error) {
	header, err := s.readExact(ctx, op, updateHeaderLen)
	if err != nil {
		return nil, err
	}

	if header[0] != framebufferUpdateMessageType {
		return nil, unexpectedMessageError(op,
			fmt.Sprintf("expected FramebufferUpdate (type %d), got type %d", framebufferUpdateMessageType, header[0]), nil)
	}

	count := binary.BigEndian.Uint16(header[2:4])
	if count > MaxRectanglesPerUpdate {
		return nil, validationError(op,
			fmt.Sprintf("too many rectangles: %d (max %d)", count, MaxRectanglesPerUpdate), nil)
	}

	update := &FramebufferUpdate{Rectangles: make([]Rectangle, 0, count)}
	if count != expectedRectangles {
		warning := NewError(op, ErrRectangleCountMismatch,
			fmt.Sprintf("expected %d rectangles, server sent %d", expectedRectangles, count), nil)
		s.logger.Warn("Rectangle count mismatch, decoding the server's count",
			Field{Key: "expected", Value: expectedRectangles},
			Field{Key: "received", Value: count})
		update.Warnings = append(update.Warnings, warning)
	}

	for i := 0; i < int(count); i++ {
		rect, err := s.readRectangle(ctx, op, i)
		if err != nil {
			return nil, err
		}
		s.composite(rect)
		update.Rectangles = append(update.Rectangles, *rect)
	}

	return update, nil
}

func (s *Session) readRectangle(ctx context.Context, op string, index int) (*Rectangle, error) {
	header, err := s.readExact(ctx, op, rectangleHeaderLen)
	if err != nil {
		return nil, err
	}

	rect := &Rectangle{
		X:            binary.BigEndian.Uint16(header[0:2]),
		Y:            binary.BigEndian.Uint16(header[2:4]),
		Width:        binary.BigEndian.Uint16(header[4:6]),
		Height:       binary.BigEndian.Uint16(header[6:8]),
		EncodingType: int32(binary.BigEndian.Uint32(header[8:12])), // #nosec G115 - signed on the wire
	}

	enc, ok := s.encodingFor(rect.EncodingType)
	if !ok {
		return nil, unsupportedEncodingError(op,
			fmt.Sprintf("rectangle %d uses encoding type %d, which was not negotiated", index, rect.EncodingType), nil)
	}

	info := s.ServerInit()
	if err := newInputValidator().ValidateRectangle(rect.X, rect.Y, rect.Width, rect.Height,
		info.FrameBufferWidth, info.FrameBufferHeight); err != nil {
		return nil, validationError(op, fmt.Sprintf("rectangle %d is invalid", index), err)
	}

	s.logger.Debug("Decoding rectangle",
		Field{Key: "index", Value: index},
		Field{Key: "x", Value: rect.X},
		Field{Key: "y", Value: rect.Y},
		Field{Key: "width", Value: rect.Width},
		Field{Key: "height", Value: rect.Height},
		Field{Key: "encoding", Value: encodingName(rect.EncodingType)})

	if err := enc.Read(ctx, s, rect); err != nil {
		return nil, err
	}
	return rect, nil
}

// composite draws a decoded rectangle into the session framebuffer.
func (s *Session) composite(rect *Rectangle) {
	if rect.Image == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.framebuffer == nil {
		return
	}
	draw.Draw(s.framebuffer, rect.Bounds(), rect.Image, image.Point{}, draw.Src)
}
