// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// Logger receives diagnostic output. Defaults to NoOpLogger.
	Logger Logger

	// ReadTimeout bounds each individual read from the transport. Zero
	// leaves reads bounded only by the operation's context.
	ReadTimeout time.Duration

	// WriteTimeout bounds each individual write to the transport.
	WriteTimeout time.Duration

	// Shared is the share flag Capture sends in ClientInit. Callers of
	// Initialize pass the flag explicitly.
	Shared bool

	// MaxDesktopNameLength caps the desktop name length the server may
	// announce. Defaults to MaxDesktopNameLength.
	MaxDesktopNameLength uint32

	// ServerByteOrder makes raw pixels follow the BigEndian flag of the
	// server's pixel format. Off by default: pixels are read little-endian.
	ServerByteOrder bool

	// ColorMap supplies the palette for color-mapped pixel formats.
	// Defaults to a grayscale ramp.
	ColorMap *ColorMap
}

// Option configures a Session.
type Option func(*SessionConfig)

// WithLogger sets the logger for the session.
func WithLogger(logger Logger) Option {
	return func(cfg *SessionConfig) {
		cfg.Logger = logger
	}
}

// WithReadTimeout sets the per-read timeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(cfg *SessionConfig) {
		cfg.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the per-write timeout.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(cfg *SessionConfig) {
		cfg.WriteTimeout = timeout
	}
}

// WithTimeout sets both read and write timeouts to the same value.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *SessionConfig) {
		cfg.ReadTimeout = timeout
		cfg.WriteTimeout = timeout
	}
}

// WithShared sets the share flag used by Capture.
func WithShared(shared bool) Option {
	return func(cfg *SessionConfig) {
		cfg.Shared = shared
	}
}

// WithMaxDesktopNameLength overrides the desktop name length limit.
func WithMaxDesktopNameLength(n uint32) Option {
	return func(cfg *SessionConfig) {
		cfg.MaxDesktopNameLength = n
	}
}

// WithServerByteOrder decodes raw pixels in the byte order announced by
// the server's pixel format instead of little-endian.
func WithServerByteOrder(enabled bool) Option {
	return func(cfg *SessionConfig) {
		cfg.ServerByteOrder = enabled
	}
}

// WithColorMap sets the palette used to decode color-mapped pixels. The
// map is shared, so later Set calls affect subsequent updates.
func WithColorMap(cm *ColorMap) Option {
	return func(cfg *SessionConfig) {
		cfg.ColorMap = cm
	}
}

func newSessionConfig(options []Option) *SessionConfig {
	cfg := &SessionConfig{
		Shared:               true,
		MaxDesktopNameLength: MaxDesktopNameLength,
	}
	for _, option := range options {
		option(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = &NoOpLogger{}
	}
	if cfg.ColorMap == nil {
		cfg.ColorMap = NewColorMap()
	}
	return cfg
}

// Session is one RFB conversation over one already-connected transport.
//
// Operations must be called in protocol order: PerformHandshake,
// Initialize, SetEncodings, then RequestUpdate and ReceiveUpdate
// alternately. A call made out of order fails with ErrInvalidState without
// touching the transport. The first failure is terminal: State keeps the
// last phase that succeeded, Err reports the failure, and every later call
// fails with ErrInvalidState.
//
// A Session is meant to be driven by a single goroutine. Overlapping calls
// are rejected with ErrConcurrentUse rather than interleaved on the wire.
// The Session never closes the transport.
type Session struct {
	id     string
	rw     io.ReadWriter
	config *SessionConfig
	logger Logger

	busy atomic.Bool

	mu          sync.RWMutex
	state       State
	err         error
	info        *ServerInitInfo
	encodings   []Encoding
	framebuffer *image.RGBA
	colorMap    *ColorMap
}

// NewSession wraps rw, which must already be connected to an RFB server.
func NewSession(rw io.ReadWriter, options ...Option) *Session {
	cfg := newSessionConfig(options)
	id := uuid.NewString()
	return &Session{
		id:       id,
		rw:       rw,
		config:   cfg,
		logger:   cfg.Logger.With(Field{Key: "session_id", Value: id}),
		state:    StateDisconnected,
		colorMap: cfg.ColorMap,
	}
}

// ID returns the random identifier attached to every log entry of this
// session.
func (s *Session) ID() string {
	return s.id
}

// State returns the last protocol phase that completed successfully.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the failure that terminated the session, or nil.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ServerInit returns the server's initialization record, or nil before
// Initialize has succeeded.
func (s *Session) ServerInit() *ServerInitInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Framebuffer returns the composite image of every rectangle received so
// far, or nil before Initialize has succeeded. The image is updated in
// place by ReceiveUpdate.
func (s *Session) Framebuffer() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.framebuffer
}

// begin claims the session for op and checks that op may move the session
// from its current state to next.
func (s *Session) begin(op string, next State) error {
	if !s.busy.CompareAndSwap(false, true) {
		return NewError(op, ErrConcurrentUse, "another call is in progress on this session", nil)
	}

	s.mu.RLock()
	state, failed := s.state, s.err
	s.mu.RUnlock()

	if failed != nil {
		s.busy.Store(false)
		return stateError(op, "session has already failed", failed)
	}
	if !state.CanTransitionTo(next) {
		s.busy.Store(false)
		return stateError(op, fmt.Sprintf("cannot move from %s to %s", state, next), nil)
	}
	return nil
}

func (s *Session) end() {
	s.busy.Store(false)
}

// advance records a successful phase.
func (s *Session) advance(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	s.logger.Debug("Session state changed",
		Field{Key: "from", Value: prev},
		Field{Key: "to", Value: next})
}

// fail records err as terminal and returns it.
func (s *Session) fail(op string, err error) error {
	s.mu.Lock()
	s.err = err
	state := s.state
	s.mu.Unlock()

	s.logger.Error("Session operation failed",
		Field{Key: "op", Value: op},
		Field{Key: "state", Value: state},
		Field{Key: "error", Value: err})
	return err
}

func (s *Session) readExact(ctx context.Context, op string, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := s.readInto(ctx, op, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Session) readInto(ctx context.Context, op string, buf []byte) error {
	reads, err := readExactInto(ctx, op, s.rw, buf, s.config.ReadTimeout)
	if reads > 1 {
		s.logger.Debug("Accumulated fragmented read",
			Field{Key: "op", Value: op},
			Field{Key: "bytes", Value: len(buf)},
			Field{Key: "reads", Value: reads})
	}
	return err
}

// pixelByteOrder is the order raw pixels of pf are read in.
func (s *Session) pixelByteOrder(pf PixelFormat) binary.ByteOrder {
	if s.config.ServerByteOrder && pf.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (s *Session) write(ctx context.Context, op string, data []byte) error {
	return writeAll(ctx, op, s.rw, data, s.config.WriteTimeout)
}
