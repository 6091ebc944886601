package i3ipc

import (
	"io"
	"slices"

	"github.com/pkg/errors"
)

type decodeState int

// maxRetainedBuffer is the largest buffer capacity kept once it drains.
const maxRetainedBuffer = 64 * 1024

const (
	awaitingHeader decodeState = iota
	awaitingPayload
)

// Decoder reassembles frames from a byte stream delivered in arbitrary chunks.
//
// Bytes are accumulated in a buffer that lives as long as the Decoder, so a
// frame split over any number of reads is reconstructed exactly. Bytes that
// follow a complete frame stay buffered and start the next one.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf        []byte
	state      decodeState
	hdr        header
	maxPayload int
	err        error
}

// NewDecoder returns a Decoder that rejects payloads longer than maxPayload.
// A non-positive maxPayload selects the default limit.
func NewDecoder(maxPayload int) *Decoder {
	if maxPayload <= 0 {
		maxPayload = defaultMaxPayloadLength
	}
	return &Decoder{maxPayload: maxPayload}
}

// Write appends p to the accumulation buffer. It fails only after the
// Decoder has hit a fatal error.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame. ok is false when more bytes are
// needed. Errors are sticky: once the stream is desynchronized every later
// call returns the same error.
func (d *Decoder) Next() (msg Message, ok bool, err error) {
	if d.err != nil {
		return Message{}, false, d.err
	}

	if d.state == awaitingHeader {
		if len(d.buf) < HeaderLength {
			return Message{}, false, nil
		}
		h, err := parseHeader(d.buf)
		if err != nil {
			d.err = err
			return Message{}, false, err
		}
		if uint64(h.length) > uint64(d.maxPayload) {
			d.err = errors.Wrapf(ErrMessageTooLarge, "%s frame announces %d bytes, limit %d", h.typ, h.length, d.maxPayload)
			return Message{}, false, d.err
		}
		d.hdr = h
		d.state = awaitingPayload
	}

	end := HeaderLength + int(d.hdr.length)
	if len(d.buf) < end {
		return Message{}, false, nil
	}

	payload := make([]byte, d.hdr.length)
	copy(payload, d.buf[HeaderLength:end])
	msg = Message{Type: d.hdr.typ, Payload: payload}

	d.consume(end)
	d.state = awaitingHeader
	return msg, true, nil
}

// Buffered returns the number of bytes received but not yet returned as a frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Err returns the fatal error that stopped the Decoder, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Reset drops all buffered bytes and clears any error.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.state = awaitingHeader
	d.hdr = header{}
	d.err = nil
}

// fill performs one Read from r directly into the free tail of the buffer.
// While a payload is outstanding the buffer is grown to hold all of it.
func (d *Decoder) fill(r io.Reader, chunk int) (int, error) {
	want := chunk
	if d.state == awaitingPayload {
		if need := HeaderLength + int(d.hdr.length) - len(d.buf); need > want {
			want = need
		}
	}
	d.buf = slices.Grow(d.buf, want)

	n, err := r.Read(d.buf[len(d.buf):cap(d.buf)])
	d.buf = d.buf[:len(d.buf)+n]
	return n, err
}

// consume drops the first n bytes, keeping the remainder at the front of
// the same backing array. A drained buffer grown past maxRetainedBuffer by
// a large payload is released.
func (d *Decoder) consume(n int) {
	rest := copy(d.buf, d.buf[n:])
	if rest == 0 && cap(d.buf) > maxRetainedBuffer {
		d.buf = nil
		return
	}
	d.buf = d.buf[:rest]
}
