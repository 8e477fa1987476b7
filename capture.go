// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"image"
	"io"
)

// Snapshot is the outcome of a successful Capture.
type Snapshot struct {
	Info   *ServerInitInfo
	Update *FramebufferUpdate

	// Image is the session framebuffer after the update was drawn.
	Image *image.RGBA
}

// CaptureResult is delivered by CaptureAsync. Exactly one of Snapshot and
// Err is set.
type CaptureResult struct {
	Snapshot *Snapshot
	Err      error
}

// Capture runs one complete session over rw: handshake, initialization with
// the configured share flag, SetEncodings advertising Raw, a full
// non-incremental update request, and one update expected to hold a single
// rectangle. rw is not closed.
func Capture(ctx context.Context, rw io.ReadWriter, options ...Option) (*Snapshot, error) {
	s := NewSession(rw, options...)

	if err := s.PerformHandshake(ctx); err != nil {
		return nil, err
	}

	info, err := s.Initialize(ctx, s.config.Shared)
	if err != nil {
		return nil, err
	}

	if err := s.SetEncodings(ctx, &RawEncoding{}); err != nil {
		return nil, err
	}

	if err := s.RequestFullUpdate(ctx); err != nil {
		return nil, err
	}

	update, err := s.ReceiveUpdate(ctx, 1)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Info:   info,
		Update: update,
		Image:  s.Framebuffer(),
	}, nil
}

// CaptureAsync runs Capture on its own goroutine. The returned channel
// yields exactly one CaptureResult and is then closed.
func CaptureAsync(ctx context.Context, rw io.ReadWriter, options ...Option) <-chan CaptureResult {
	results := make(chan CaptureResult, 1)
	go func() {
		defer close(results)
		snapshot, err := Capture(ctx, rw, options...)
		results <- CaptureResult{Snapshot: snapshot, Err: err}
	}()
	return results
}
