// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"math"
	"unicode"
)

// Limits applied to values decoded from the server.
const (
	MaxFramebufferDimension = 32768
	MaxDesktopNameLength    = 1024 * 1024
	MaxRectanglesPerUpdate  = 10000
	maxReasonLength         = 64 * 1024
)

// inputValidator checks values received from the server before they are
// used to size buffers or index the framebuffer.
type inputValidator struct{}

func newInputValidator() *inputValidator {
	return &inputValidator{}
}

// ValidateProtocolVersion checks the "RFB xxx.yyy\n" shape of a version line.
func (iv *inputValidator) ValidateProtocolVersion(version string) error {
	if len(version) != protocolVersionLen {
		return validationError("ValidateProtocolVersion",
			fmt.Sprintf("protocol version must be exactly %d characters, got %d", protocolVersionLen, len(version)), nil)
	}

	if version[:4] != "RFB " {
		return validationError("ValidateProtocolVersion", "protocol version must start with 'RFB '", nil)
	}

	if version[11] != '\n' {
		return validationError("ValidateProtocolVersion", "protocol version must end with newline", nil)
	}

	if version[7] != '.' {
		return validationError("ValidateProtocolVersion", "protocol version format must be XXX.YYY", nil)
	}

	for i := 4; i < 11; i++ {
		if i == 7 {
			continue
		}
		if version[i] < '0' || version[i] > '9' {
			return validationError("ValidateProtocolVersion",
				"protocol version must contain only digits and dot", nil)
		}
	}

	return nil
}

// ValidateFramebufferDimensions rejects empty or oversized framebuffers.
func (iv *inputValidator) ValidateFramebufferDimensions(width, height uint16) error {
	if width == 0 || height == 0 {
		return validationError("ValidateFramebufferDimensions",
			fmt.Sprintf("framebuffer dimensions cannot be zero: %dx%d", width, height), nil)
	}

	if width > MaxFramebufferDimension || height > MaxFramebufferDimension {
		return validationError("ValidateFramebufferDimensions",
			fmt.Sprintf("framebuffer dimensions too large: %dx%d (max %d)",
				width, height, MaxFramebufferDimension), nil)
	}

	return nil
}

// ValidateRectangle requires a non-empty rectangle inside the framebuffer.
func (iv *inputValidator) ValidateRectangle(x, y, width, height, fbWidth, fbHeight uint16) error {
	if width == 0 || height == 0 {
		return validationError("ValidateRectangle",
			fmt.Sprintf("rectangle dimensions cannot be zero: %dx%d", width, height), nil)
	}

	if x > math.MaxUint16-width || y > math.MaxUint16-height {
		return validationError("ValidateRectangle",
			"rectangle coordinates would cause integer overflow", nil)
	}

	if x+width > fbWidth || y+height > fbHeight {
		return validationError("ValidateRectangle",
			fmt.Sprintf("rectangle (%d,%d,%d,%d) exceeds framebuffer bounds (%d,%d)",
				x, y, width, height, fbWidth, fbHeight), nil)
	}

	return nil
}

// ValidatePixelFormat wraps PixelFormat.Validate as a validation error.
func (iv *inputValidator) ValidatePixelFormat(pf *PixelFormat) error {
	if pf == nil {
		return validationError("ValidatePixelFormat", "pixel format cannot be nil", nil)
	}
	if err := pf.Validate(); err != nil {
		return validationError("ValidatePixelFormat", "unusable pixel format", err)
	}
	return nil
}

// ValidateLength bounds a length prefix before a buffer of that size is
// allocated. Zero is allowed.
func (iv *inputValidator) ValidateLength(length uint32, maxLength uint32) error {
	if length > maxLength {
		return validationError("ValidateLength",
			fmt.Sprintf("length %d exceeds maximum %d", length, maxLength), nil)
	}
	return nil
}

// SanitizeText replaces control characters (other than tab and newlines)
// with spaces and non-printable runes with U+FFFD.
func (iv *inputValidator) SanitizeText(text string) string {
	if text == "" {
		return text
	}

	sanitized := make([]rune, 0, len(text))
	for _, r := range text {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			sanitized = append(sanitized, r)
		case r < 32:
			sanitized = append(sanitized, ' ')
		case unicode.IsPrint(r):
			sanitized = append(sanitized, r)
		default:
			sanitized = append(sanitized, '\uFFFD')
		}
	}

	return string(sanitized)
}
