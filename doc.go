// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package rfb implements the client side of a small subset of the RFB
// (remote framebuffer) protocol defined in RFC 6143: version 3.8, the "None"
// security type, ServerInit, SetEncodings with Raw, and framebuffer updates
// decoded to an image.
//
// The package consumes an already-connected transport and never dials or
// closes it.
//
// # Basic Usage
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	conn, err := net.Dial("tcp", "localhost:5900")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	snapshot, err := rfb.Capture(ctx, conn, rfb.WithTimeout(10*time.Second))
//	if err != nil {
//		log.Fatal(err)
//	}
//	png.Encode(out, snapshot.Image)
//
// # Step by Step
//
//	s := rfb.NewSession(conn, rfb.WithLogger(&rfb.StandardLogger{}))
//	if err := s.PerformHandshake(ctx); err != nil {
//		return err
//	}
//	info, err := s.Initialize(ctx, true)
//	if err != nil {
//		return err
//	}
//	if err := s.SetEncodings(ctx); err != nil {
//		return err
//	}
//	if err := s.RequestFullUpdate(ctx); err != nil {
//		return err
//	}
//	update, err := s.ReceiveUpdate(ctx, 1)
//
// Calls must follow that order. A call made out of order fails with
// ErrInvalidState, and the first failure ends the session.
//
// # Error Handling
//
//	if rfb.IsRFBError(err, rfb.ErrShortRead, rfb.ErrTimeout) {
//		log.Printf("server went away: %v", err)
//	}
package rfb
