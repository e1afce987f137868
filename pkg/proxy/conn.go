package proxy

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/hyproxy/hyproxy/pkg/proto/codec"
)

// ErrClosedConn indicates a connection is already closed.
var ErrClosedConn = errors.New("connection is closed")

// conn is one half of a session: the client-side or the server-side
// duplex stream, wrapped in the frame codec.
type conn struct {
	c    net.Conn
	side string // "client" or "server", for logs

	// the read loop owns these fields
	readBuf *bufio.Reader
	decoder *codec.Decoder

	writeMu  sync.Mutex // serializes encoder + flush
	writeBuf *bufio.Writer
	encoder  *codec.Encoder

	closeOnce sync.Once
	closed    atomic.Bool

	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newConn(base net.Conn, side string, readTimeout, writeTimeout time.Duration) *conn {
	readBuf := bufio.NewReader(base)
	writeBuf := bufio.NewWriter(base)
	return &conn{
		c:            base,
		side:         side,
		readBuf:      readBuf,
		decoder:      codec.NewDecoder(readBuf),
		writeBuf:     writeBuf,
		encoder:      codec.NewEncoder(writeBuf),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadFrame reads the next frame. Only the session's reader goroutine for
// this side may call it.
func (c *conn) ReadFrame() (*codec.Frame, error) {
	if c.Closed() {
		return nil, ErrClosedConn
	}
	if c.readTimeout > 0 {
		_ = c.c.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.decoder.ReadFrame()
}

// WriteFrame encodes and writes one frame, flushing the buffer. Safe for
// concurrent use.
func (c *conn) WriteFrame(id int32, fragments ...[]byte) error {
	if c.Closed() {
		return ErrClosedConn
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.c.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	if err := c.encoder.WriteFrame(id, fragments...); err != nil {
		return err
	}
	return c.writeBuf.Flush()
}

// ForwardFrame writes a previously read frame verbatim.
func (c *conn) ForwardFrame(f *codec.Frame) error {
	return c.WriteFrame(f.ID, f.Payload)
}

// SetCompressionThreshold switches both codec halves to the compressed
// frame layout. Called exactly once, at the end of the login phase.
func (c *conn) SetCompressionThreshold(threshold int) {
	zap.S().Debugf("Set %s compression threshold %d", c.side, threshold)
	c.decoder.SetCompressionThreshold(threshold)
	c.writeMu.Lock()
	c.encoder.SetCompressionThreshold(threshold)
	c.writeMu.Unlock()
}

// EnableEncryption flips both directions into AES/CFB8 keyed with secret.
// Irreversible.
func (c *conn) EnableEncryption(secret []byte) error {
	if err := c.decoder.EnableEncryption(secret); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.encoder.EnableEncryption(secret)
}

// Close closes the underlying connection once; later calls return
// ErrClosedConn.
func (c *conn) Close() error {
	err := ErrClosedConn
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.c.Close()
	})
	return err
}

func (c *conn) Closed() bool { return c.closed.Load() }

func (c *conn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }
