// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// ProtocolVersion is the only version line this client speaks.
const ProtocolVersion = "RFB 003.008\n"

const protocolVersionLen = len(ProtocolVersion)

// Security types (RFC 6143 Section 7.1.2).
const (
	SecurityTypeInvalid uint8 = 0
	SecurityTypeNone    uint8 = 1
)

// reasonReadTimeout bounds the best-effort read of a failure reason string,
// so a server that never sends one cannot hold up the error report.
const reasonReadTimeout = time.Second

// PerformHandshake exchanges version lines, selects the "None" security
// type and checks the SecurityResult (RFC 6143 Sections 7.1.1-7.1.3).
//
// On success the session is Authenticated. A version other than
// ProtocolVersion fails with ErrProtocolVersionMismatch before anything is
// written; a server that does not offer "None" fails with
// ErrSecurityTypeUnsupported; a nonzero SecurityResult fails with
// ErrAuthenticationFailed.
func (s *Session) PerformHandshake(ctx context.Context) error {
	const op = "PerformHandshake"
	if err := s.begin(op, StateVersionNegotiated); err != nil {
		return err
	}
	defer s.end()

	s.logger.Info("Starting RFB handshake")

	if err := s.negotiateVersion(ctx, op); err != nil {
		return s.fail(op, err)
	}
	s.advance(StateVersionNegotiated)

	if err := s.negotiateSecurity(ctx, op); err != nil {
		return s.fail(op, err)
	}
	s.advance(StateSecurityNegotiated)

	if err := s.readSecurityResult(ctx, op); err != nil {
		return s.fail(op, err)
	}
	s.advance(StateAuthenticated)

	s.logger.Info("RFB handshake completed")
	return nil
}

func (s *Session) negotiateVersion(ctx context.Context, op string) error {
	buf, err := s.readExact(ctx, op, protocolVersionLen)
	if err != nil {
		return err
	}
	version := string(buf)

	if err := newInputValidator().ValidateProtocolVersion(version); err != nil {
		return versionMismatchError(op, fmt.Sprintf("server sent malformed version line %q", version), err)
	}
	if version != ProtocolVersion {
		return versionMismatchError(op,
			fmt.Sprintf("server version %q is not %q",
				strings.TrimSuffix(version, "\n"), strings.TrimSuffix(ProtocolVersion, "\n")), nil)
	}

	s.logger.Debug("Received protocol version", Field{Key: "version", Value: strings.TrimSuffix(version, "\n")})

	return s.write(ctx, op, []byte(ProtocolVersion))
}

func (s *Session) negotiateSecurity(ctx context.Context, op string) error {
	countBuf, err := s.readExact(ctx, op, 1)
	if err != nil {
		return err
	}
	count := countBuf[0]

	if count == 0 {
		reason := s.readReason(ctx, op)
		return securityUnsupportedError(op, fmt.Sprintf("server offered no security types: %s", reason), nil)
	}

	types, err := s.readExact(ctx, op, int(count))
	if err != nil {
		return err
	}

	s.logger.Debug("Received security types", Field{Key: "types", Value: types})

	if bytes.IndexByte(types, SecurityTypeNone) < 0 {
		return securityUnsupportedError(op,
			fmt.Sprintf("server does not offer security type %d (offered %v)", SecurityTypeNone, types), nil)
	}

	return s.write(ctx, op, []byte{SecurityTypeNone})
}

func (s *Session) readSecurityResult(ctx context.Context, op string) error {
	buf, err := s.readExact(ctx, op, 4)
	if err != nil {
		return err
	}

	result := binary.BigEndian.Uint32(buf)
	if result != 0 {
		reason := s.readReason(ctx, op)
		return authenticationError(op, fmt.Sprintf("security result %d: %s", result, reason), nil)
	}
	return nil
}

// readReason reads the length-prefixed reason string a server sends after
// refusing a connection. It never fails; problems are reported in the
// returned text.
func (s *Session) readReason(ctx context.Context, op string) string {
	ctx, cancel := context.WithTimeout(ctx, reasonReadTimeout)
	defer cancel()

	lenBuf, err := s.readExact(ctx, op, 4)
	if err != nil {
		s.logger.Debug("No failure reason from server", Field{Key: "error", Value: err})
		return "no reason given"
	}

	length := binary.BigEndian.Uint32(lenBuf)
	if err := newInputValidator().ValidateLength(length, maxReasonLength); err != nil {
		s.logger.Warn("Ignoring oversized failure reason", Field{Key: "length", Value: length})
		return "reason too long to read"
	}

	reason, err := s.readExact(ctx, op, int(length))
	if err != nil {
		s.logger.Debug("Truncated failure reason from server", Field{Key: "error", Value: err})
		return "no reason given"
	}
	if len(reason) == 0 {
		return "no reason given"
	}
	return decodeText(reason)
}
