// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Encoding type identifiers (RFC 6143 Section 7.7).
const (
	EncodingRaw int32 = 0
)

const setEncodingsMessageType uint8 = 2

// Encoding decodes the pixel payload of one rectangle.
type Encoding interface {
	Type() int32

	// Read consumes the rectangle's payload from the session transport and
	// fills rect.Pixels and rect.Image.
	Read(ctx context.Context, s *Session, rect *Rectangle) error
}

// decodableEncodings lists the encoding types this client can decode.
var decodableEncodings = map[int32]string{
	EncodingRaw: "Raw",
}

// encodingName returns a printable name for an encoding type.
func encodingName(encType int32) string {
	if name, ok := decodableEncodings[encType]; ok {
		return name
	}
	return fmt.Sprintf("%d", encType)
}

// SetEncodings sends SetEncodings (RFC 6143 Section 7.5.2) advertising encs
// in preference order. With no arguments it advertises only Raw. Every
// encoding must be one this client can decode; otherwise the call fails with
// ErrUnsupportedEncoding before anything is written, and the session stays
// usable.
//
// The server does not answer SetEncodings, so the only other failures come
// from the transport.
func (s *Session) SetEncodings(ctx context.Context, encs ...Encoding) error {
	const op = "SetEncodings"
	if err := s.begin(op, StateEncodingsSet); err != nil {
		return err
	}
	defer s.end()

	if len(encs) == 0 {
		encs = []Encoding{&RawEncoding{}}
	}

	for i, enc := range encs {
		if enc == nil {
			return validationError(op, fmt.Sprintf("encoding at index %d is nil", i), nil)
		}
		if _, ok := decodableEncodings[enc.Type()]; !ok {
			return unsupportedEncodingError(op,
				fmt.Sprintf("cannot decode encoding type %d", enc.Type()), nil)
		}
	}

	msg := encodeSetEncodings(encs)

	types := make([]string, len(encs))
	for i, enc := range encs {
		types[i] = encodingName(enc.Type())
	}
	s.logger.Debug("Sending encodings", Field{Key: "encodings", Value: types})

	if err := s.write(ctx, op, msg); err != nil {
		return s.fail(op, err)
	}

	s.mu.Lock()
	s.encodings = append([]Encoding(nil), encs...)
	s.mu.Unlock()
	s.advance(StateEncodingsSet)

	s.logger.Info("Encodings set", Field{Key: "count", Value: len(encs)})
	return nil
}

func encodeSetEncodings(encs []Encoding) []byte {
	msg := make([]byte, 4+4*len(encs))
	msg[0] = setEncodingsMessageType
	binary.BigEndian.PutUint16(msg[2:4], uint16(len(encs))) // #nosec G115 - bounded by the decodable set
	for i, enc := range encs {
		binary.BigEndian.PutUint32(msg[4+4*i:], uint32(enc.Type())) // #nosec G115 - two's complement on the wire
	}
	return msg
}

// encodingFor returns the advertised encoding that decodes encType.
func (s *Session) encodingFor(encType int32) (Encoding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, enc := range s.encodings {
		if enc.Type() == encType {
			return enc, true
		}
	}
	return nil, false
}
