// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"
)

// scriptConn replays a scripted server stream and records what the client
// writes.
type scriptConn struct {
	r io.Reader

	mu sync.Mutex
	w  bytes.Buffer

	// writeErr, when set, fails every later Write.
	writeErr error
}

func newScriptConn(r io.Reader) *scriptConn {
	return &scriptConn{r: r}
}

func (c *scriptConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *scriptConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.w.Write(p)
}

func (c *scriptConn) failWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *scriptConn) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.w.Bytes()...)
}

// chunkedReader delivers data in reads of the given sizes, then whatever is
// left in one read. Each delivered chunk size is recorded.
type chunkedReader struct {
	data      []byte
	sizes     []int
	delivered []int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}

	size := len(c.data)
	if len(c.sizes) > 0 {
		size = min(c.sizes[0], len(c.data))
	}
	if size > len(p) {
		size = len(p)
		if len(c.sizes) > 0 {
			c.sizes[0] -= size
		}
	} else if len(c.sizes) > 0 {
		c.sizes = c.sizes[1:]
	}

	n := copy(p, c.data[:size])
	c.data = c.data[n:]
	c.delivered = append(c.delivered, n)
	return n, nil
}

// stallReader never returns data.
type stallReader struct{}

func (stallReader) Read([]byte) (int, error) {
	return 0, nil
}

// logEntry is one call recorded by recordingLogger.
type logEntry struct {
	level  Level
	msg    string
	fields []Field
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level Level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Debug(msg string, fields ...Field) { l.record(LevelDebug, msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...Field)  { l.record(LevelInfo, msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...Field)  { l.record(LevelWarn, msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...Field) { l.record(LevelError, msg, fields) }
func (l *recordingLogger) With(...Field) Logger              { return l }

func (l *recordingLogger) messages(level Level) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.entries {
		if e.level == level {
			msgs = append(msgs, e.msg)
		}
	}
	return msgs
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// handshakeBytes is a server accepting version 3.8 with security "None".
func handshakeBytes() []byte {
	return concat([]byte(ProtocolVersion), []byte{1, SecurityTypeNone}, []byte{0, 0, 0, 0})
}

func serverInitBytes(width, height uint16, pf PixelFormat, name string) []byte {
	buf := make([]byte, 4, serverInitLen+len(name))
	binary.BigEndian.PutUint16(buf[0:2], width)
	binary.BigEndian.PutUint16(buf[2:4], height)
	pfBytes, _ := pf.MarshalBinary()
	buf = append(buf, pfBytes...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(name))) // #nosec G115 - test names are short
	return append(buf, name...)
}

func updateHeaderBytes(count uint16) []byte {
	buf := []byte{framebufferUpdateMessageType, 0, 0, 0}
	binary.BigEndian.PutUint16(buf[2:4], count)
	return buf
}

func rectangleHeaderBytes(x, y, width, height uint16, encType int32) []byte {
	buf := make([]byte, rectangleHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], x)
	binary.BigEndian.PutUint16(buf[2:4], y)
	binary.BigEndian.PutUint16(buf[4:6], width)
	binary.BigEndian.PutUint16(buf[6:8], height)
	binary.BigEndian.PutUint32(buf[8:12], uint32(encType)) // #nosec G115 - two's complement on the wire
	return buf
}

// patternPixels returns n distinct bytes.
func patternPixels(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*7 + 3)
	}
	return buf
}

// MockRFBServer is a TCP server that speaks the server side of the
// protocol subset this package implements and sends one raw update.
type MockRFBServer struct {
	listener net.Listener
	addr     string
	wg       sync.WaitGroup
	stop     chan struct{}

	Version       string
	SecurityTypes []uint8
	AcceptAuth    bool
	FrameWidth    uint16
	FrameHeight   uint16
	PixelFormat   PixelFormat
	DesktopName   string

	// Pixels is the raw payload of the single full-screen rectangle.
	Pixels []byte

	// Received collects the bytes the client sent after the handshake.
	mu       sync.Mutex
	Received []byte
}

// NewMockRFBServer creates a server with a small 32 bpp framebuffer.
func NewMockRFBServer() *MockRFBServer {
	m := &MockRFBServer{
		Version:       ProtocolVersion,
		SecurityTypes: []uint8{SecurityTypeNone},
		AcceptAuth:    true,
		FrameWidth:    8,
		FrameHeight:   4,
		PixelFormat:   PixelFormat32BitRGBA,
		DesktopName:   "Mock RFB Server",
		stop:          make(chan struct{}),
	}
	m.Pixels = patternPixels(int(m.FrameWidth) * int(m.FrameHeight) * 4)
	return m
}

// Start starts the mock server on a random available port.
func (m *MockRFBServer) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	m.listener = listener
	m.addr = listener.Addr().String()

	m.wg.Add(1)
	go m.serve()

	return nil
}

// Stop stops the mock server.
func (m *MockRFBServer) Stop() {
	close(m.stop)
	if m.listener != nil {
		_ = m.listener.Close()
	}
	m.wg.Wait()
}

// Addr returns the server address.
func (m *MockRFBServer) Addr() string {
	return m.addr
}

func (m *MockRFBServer) received() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.Received...)
}

func (m *MockRFBServer) serve() {
	defer m.wg.Done()

	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.stop:
				return
			default:
				continue
			}
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.handleConnection(conn)
		}()
	}
}

func (m *MockRFBServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return
	}

	if err := m.handleProtocolVersion(conn); err != nil {
		return
	}
	if err := m.handleSecurity(conn); err != nil {
		return
	}
	if err := m.handleInit(conn); err != nil {
		return
	}
	_ = m.handleUpdate(conn)
}

func (m *MockRFBServer) handleProtocolVersion(conn net.Conn) error {
	if _, err := conn.Write([]byte(m.Version)); err != nil {
		return err
	}
	buf := make([]byte, protocolVersionLen)
	_, err := io.ReadFull(conn, buf)
	return err
}

func (m *MockRFBServer) handleSecurity(conn net.Conn) error {
	msg := append([]byte{uint8(len(m.SecurityTypes))}, m.SecurityTypes...) // #nosec G115 - test code with small arrays
	if _, err := conn.Write(msg); err != nil {
		return err
	}

	var chosen uint8
	if err := binary.Read(conn, binary.BigEndian, &chosen); err != nil {
		return err
	}

	if m.AcceptAuth && chosen == SecurityTypeNone {
		return binary.Write(conn, binary.BigEndian, uint32(0))
	}

	reason := "access denied"
	msg = binary.BigEndian.AppendUint32([]byte{0, 0, 0, 1}, uint32(len(reason))) // #nosec G115 - constant
	msg = append(msg, reason...)
	if _, err := conn.Write(msg); err != nil {
		return err
	}
	return io.EOF
}

func (m *MockRFBServer) handleInit(conn net.Conn) error {
	shared := make([]byte, 1)
	if _, err := io.ReadFull(conn, shared); err != nil {
		return err
	}
	m.record(shared)

	_, err := conn.Write(serverInitBytes(m.FrameWidth, m.FrameHeight, m.PixelFormat, m.DesktopName))
	return err
}

func (m *MockRFBServer) handleUpdate(conn net.Conn) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return err
	}
	encodings := make([]byte, 4*int(binary.BigEndian.Uint16(header[2:4])))
	if _, err := io.ReadFull(conn, encodings); err != nil {
		return err
	}
	m.record(header)
	m.record(encodings)

	request := make([]byte, updateRequestLen)
	if _, err := io.ReadFull(conn, request); err != nil {
		return err
	}
	m.record(request)

	update := concat(
		updateHeaderBytes(1),
		rectangleHeaderBytes(0, 0, m.FrameWidth, m.FrameHeight, EncodingRaw),
		m.Pixels,
	)
	// Dribble the update out so the client has to reassemble it.
	for len(update) > 0 {
		n := min(7, len(update))
		if _, err := conn.Write(update[:n]); err != nil {
			return err
		}
		update = update[n:]
	}
	return nil
}

func (m *MockRFBServer) record(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Received = append(m.Received, b...)
}
