// Package i3ipc is a client for the i3/sway IPC protocol.
// It frames typed command messages over a Unix domain socket, reassembles
// replies and events from arbitrary short reads, and decodes their JSON
// payloads into caller-supplied types.
package i3ipc

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Stream is the duplex byte stream a Conn runs on. *net.UnixConn and every
// other net.Conn satisfy it.
//
// Reads and writes block the calling goroutine until the stream is ready;
// the runtime parks it meanwhile. Deadlines are used to wake a blocked call
// when its context is canceled.
type Stream interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// maxEmptyReads is how many consecutive (0, nil) reads Receive tolerates.
const maxEmptyReads = 100

// Conn is one client connection. It owns its stream for its whole lifetime.
//
// A Conn must be driven by a single goroutine at a time: frames are sent and
// received in call order and no internal locking protects the decoder.
// Close may be called from any goroutine.
type Conn struct {
	stream Stream
	dec    *Decoder
	logger Logger
	opts   options

	// err is the fatal error that ended the connection, returned by every later call.
	err    error
	closed atomic.Bool
}

// NewConn wraps an open stream. It is used by Dial and by callers that
// obtained the stream some other way.
func NewConn(s Stream, opt ...Option) *Conn {
	opts := newOptions(opt)
	return &Conn{
		stream: s,
		dec:    NewDecoder(opts.maxPayload),
		logger: opts.logger,
		opts:   opts,
	}
}

// Send frames payload as a message of type t and writes the whole frame.
// It returns the number of bytes written, which is always
// HeaderLength+len(payload) on success.
//
// A failed write leaves the peer with an unknown framing position, so the
// connection is closed and every later call returns the same error. A send
// canceled before any byte went out leaves the connection usable.
func (c *Conn) Send(ctx context.Context, t MessageType, payload string) (int, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if len(payload) > c.opts.maxPayload {
		return 0, errors.Wrapf(ErrMessageTooLarge, "%s payload is %d bytes, limit %d", t, len(payload), c.opts.maxPayload)
	}

	frame, err := EncodeFrame(t, []byte(payload))
	if err != nil {
		return 0, err
	}

	stop := c.interruptOnDone(ctx, c.stream.SetWriteDeadline)
	n, err := writeFull(c.stream, frame)
	stop()

	if err != nil {
		if ctx.Err() != nil && n == 0 {
			return 0, ctx.Err()
		}
		return n, c.fail(&OpError{Op: "write", Err: c.cause(ctx, err)})
	}

	return n, nil
}

// Receive returns the next frame from the peer, reading as many times as it
// takes to assemble it. Frames already buffered by an earlier read are
// returned without touching the stream.
//
// Errors:
//   - io.EOF: the peer closed the stream between frames
//   - ErrIncompleteFrame: the peer closed the stream mid-frame
//   - ErrProtocolDesync: the frame did not start with Magic
//   - ErrMessageTooLarge: the header announced a payload above the limit
//   - *OpError: the stream failed
//   - ctx.Err(): the context ended before a frame arrived
//
// All but the last are fatal. Cancellation is fatal only when part of a
// frame had already been read. A stream that keeps returning no bytes and
// no error fails with io.ErrNoProgress.
func (c *Conn) Receive(ctx context.Context) (Message, error) {
	if err := c.usable(); err != nil {
		return Message{}, err
	}

	stop := c.interruptOnDone(ctx, c.stream.SetReadDeadline)
	defer stop()

	eof := false
	empty := 0
	for {
		msg, ok, err := c.dec.Next()
		if err != nil {
			return Message{}, c.fail(err)
		}
		if ok {
			return msg, nil
		}

		if eof {
			if c.dec.Buffered() == 0 {
				return Message{}, c.fail(io.EOF)
			}
			return Message{}, c.fail(errors.Wrapf(ErrIncompleteFrame, "%d bytes buffered", c.dec.Buffered()))
		}

		n, err := c.dec.fill(c.stream, c.opts.readBufferSize)
		switch {
		case err == nil && n == 0:
			if empty++; empty >= maxEmptyReads {
				return Message{}, c.fail(&OpError{Op: "read", Err: io.ErrNoProgress})
			}
		case err == nil:
			empty = 0
		case errors.Is(err, io.EOF):
			eof = true
		case ctx.Err() != nil && c.dec.Buffered() == 0:
			return Message{}, ctx.Err()
		default:
			return Message{}, c.fail(&OpError{Op: "read", Err: c.cause(ctx, err)})
		}
	}
}

// Close closes the connection. Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.logger.Debug("connection closed", "addr", c.Addr())
	return c.stream.Close()
}

// IsClosed returns true if the connection has been closed, either by Close
// or because of a fatal error.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Err returns the fatal error that ended the connection, if any.
func (c *Conn) Err() error {
	return c.err
}

// Addr returns the remote address of the stream, or "" if it has none.
func (c *Conn) Addr() string {
	if a, ok := c.stream.(interface{ RemoteAddr() net.Addr }); ok && a.RemoteAddr() != nil {
		return a.RemoteAddr().String()
	}
	return ""
}

// usable reports why the connection can no longer be used, if it can't.
func (c *Conn) usable() error {
	if c.err != nil {
		return c.err
	}
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return nil
}

// fail records a fatal error, discards buffered bytes and closes the stream.
func (c *Conn) fail(err error) error {
	if c.closed.Load() && c.err == nil {
		err = ErrConnectionClosed
	}
	c.err = err
	c.dec.Reset()
	_ = c.Close()
	return err
}

// cause prefers the context error over the deadline error it provoked.
func (c *Conn) cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, "interrupted mid-frame")
	}
	return err
}

// interruptOnDone moves the stream deadline into the past when ctx ends, so
// a blocked read or write returns. The returned func must be called once the
// I/O is over; it clears the deadline again if it was moved.
func (c *Conn) interruptOnDone(ctx context.Context, setDeadline func(time.Time) error) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}

	moved := make(chan struct{})
	stopAfter := context.AfterFunc(ctx, func() {
		_ = setDeadline(aLongTimeAgo)
		close(moved)
	})

	return func() {
		if !stopAfter() {
			<-moved
			_ = setDeadline(time.Time{})
		}
	}
}
