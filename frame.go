package i3ipc

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Magic is the literal every frame starts with.
const Magic = "i3-ipc"

// HeaderLength is the size of the fixed frame header:
// magic, payload length (LE uint32) and message type (LE uint32).
const HeaderLength = len(Magic) + 4 + 4

const (
	lengthOffset = len(Magic)
	typeOffset   = lengthOffset + 4
)

type header struct {
	length uint32
	typ    MessageType
}

// EncodeFrame serializes a message into a single buffer holding the header
// followed by the payload. The result is exactly HeaderLength+len(payload) bytes.
func EncodeFrame(t MessageType, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, errors.Wrapf(ErrMessageTooLarge, "payload is %d bytes", len(payload))
	}

	buf := make([]byte, HeaderLength+len(payload))
	copy(buf, Magic)
	binary.LittleEndian.PutUint32(buf[lengthOffset:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[typeOffset:], uint32(t))
	copy(buf[HeaderLength:], payload)
	return buf, nil
}

// parseHeader decodes the first HeaderLength bytes of b.
// The magic is checked before anything else is interpreted.
func parseHeader(b []byte) (header, error) {
	if string(b[:lengthOffset]) != Magic {
		return header{}, errors.Wrapf(ErrProtocolDesync, "expected magic %q, got %q", Magic, b[:lengthOffset])
	}
	return header{
		length: binary.LittleEndian.Uint32(b[lengthOffset:typeOffset]),
		typ:    MessageType(binary.LittleEndian.Uint32(b[typeOffset:HeaderLength])),
	}, nil
}

// writeFull writes buf to w, resuming from the unwritten tail after each
// short write. It returns the number of bytes accepted by w.
func writeFull(w io.Writer, buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}
