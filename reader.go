// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// maxEmptyReads bounds consecutive (0, nil) results from a transport before
// a read is abandoned with io.ErrNoProgress.
const maxEmptyReads = 100

// aLongTimeAgo is a non-zero deadline in the past, used to unblock a read
// or write that is already in progress.
var aLongTimeAgo = time.Unix(1, 0)

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// ReadExact reads exactly n bytes from r. It keeps calling r.Read and
// appends each chunk at the running offset until n bytes have arrived, so
// the result does not depend on how the transport fragments the stream.
//
// If r closes or fails first, the error has code ErrShortRead. If ctx is
// done, or a deadline set on r expires, the error has code ErrTimeout. When
// r implements SetReadDeadline (every net.Conn does), cancelling ctx
// interrupts a Read that is already blocked; otherwise ctx is only checked
// between reads.
func ReadExact(ctx context.Context, r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, validationError("ReadExact", fmt.Sprintf("negative length %d", n), nil)
	}
	buf := make([]byte, n)
	if _, err := readExactInto(ctx, "ReadExact", r, buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// readExactInto fills buf completely and reports how many underlying Read
// calls it took.
func readExactInto(ctx context.Context, op string, r io.Reader, buf []byte, timeout time.Duration) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, timeoutError(op, fmt.Sprintf("read of %d bytes cancelled", len(buf)), err)
	}

	if d, ok := r.(readDeadliner); ok {
		release := armDeadline(ctx, timeout, d.SetReadDeadline)
		defer release()
	}

	var (
		off   int
		reads int
		empty int
	)
	for off < len(buf) {
		n, err := r.Read(buf[off:])
		reads++
		if n < 0 || n > len(buf)-off {
			return reads, shortReadError(op,
				fmt.Sprintf("transport reported %d bytes for a %d byte read", n, len(buf)-off), nil)
		}
		off += n

		if off == len(buf) {
			return reads, nil
		}
		if err != nil {
			return reads, classifyReadError(ctx, op, off, len(buf), err)
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return reads, shortReadError(op,
					fmt.Sprintf("received %d of %d bytes", off, len(buf)), io.ErrNoProgress)
			}
			continue
		}
		empty = 0
		if err := ctx.Err(); err != nil {
			return reads, timeoutError(op,
				fmt.Sprintf("read cancelled after %d of %d bytes", off, len(buf)), err)
		}
	}
	return reads, nil
}

func classifyReadError(ctx context.Context, op string, got, want int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return timeoutError(op, fmt.Sprintf("read cancelled after %d of %d bytes", got, want), ctxErr)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return timeoutError(op, fmt.Sprintf("read deadline exceeded after %d of %d bytes", got, want), err)
	}
	if err == io.EOF && got > 0 {
		err = io.ErrUnexpectedEOF
	}
	return shortReadError(op, fmt.Sprintf("received %d of %d bytes", got, want), err)
}

// writeAll writes data completely or fails with ErrNetwork (ErrTimeout on
// cancellation or deadline expiry).
func writeAll(ctx context.Context, op string, w io.Writer, data []byte, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return timeoutError(op, "write cancelled", err)
	}

	if d, ok := w.(writeDeadliner); ok {
		release := armDeadline(ctx, timeout, d.SetWriteDeadline)
		defer release()
	}

	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return timeoutError(op, "write cancelled", ctxErr)
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return timeoutError(op, "write deadline exceeded", err)
			}
			return networkError(op, "failed to write to transport", err)
		}
		if n <= 0 {
			return networkError(op, "failed to write to transport", io.ErrShortWrite)
		}
		data = data[n:]
	}
	return nil
}

// armDeadline applies the earlier of the ctx deadline and now+timeout, and
// forces the deadline into the past if ctx is cancelled while the operation
// is in flight. The returned func clears the deadline again.
func armDeadline(ctx context.Context, timeout time.Duration, set func(time.Time) error) func() {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = set(deadline)

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = set(aLongTimeAgo)
		close(fired)
	})

	return func() {
		if !stop() {
			<-fired
		}
		_ = set(time.Time{})
	}
}
