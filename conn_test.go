package i3ipc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chunkStream serves data in reads of at most size bytes, then io.EOF.
// Writes are recorded; writeLimit caps the bytes accepted per Write.
type chunkStream struct {
	data       []byte
	size       int
	written    bytes.Buffer
	writeLimit int
	writeErr   error
	closed     bool
}

func (s *chunkStream) Read(p []byte) (int, error) {
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	n := min(len(p), s.size, len(s.data))
	copy(p, s.data[:n])
	s.data = s.data[n:]
	return n, nil
}

func (s *chunkStream) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	if s.writeLimit > 0 && len(p) > s.writeLimit {
		p = p[:s.writeLimit]
	}
	return s.written.Write(p)
}

func (s *chunkStream) Close() error {
	s.closed = true
	return nil
}

func (s *chunkStream) SetReadDeadline(time.Time) error  { return nil }
func (s *chunkStream) SetWriteDeadline(time.Time) error { return nil }

// zeroStream returns no bytes and no error from every Read.
type zeroStream struct {
	chunkStream
	reads int
}

func (s *zeroStream) Read(p []byte) (int, error) {
	s.reads++
	return 0, nil
}

func frames(t *testing.T, msgs ...Message) []byte {
	t.Helper()
	var out []byte
	for _, m := range msgs {
		out = append(out, mustEncode(t, m.Type, string(m.Payload))...)
	}
	return out
}

// shortSocketDir returns a directory whose paths fit in a sockaddr_un.
func shortSocketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "i3ipc")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// listenPeer starts a Unix socket peer that accepts one connection and
// hands it to serve. It returns the socket path.
func listenPeer(t *testing.T, serve func(c net.Conn)) string {
	t.Helper()

	path := filepath.Join(shortSocketDir(t), "ipc.sock")
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := l.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		serve(c)
	}()

	t.Cleanup(func() {
		l.Close()
		<-done
	})
	return path
}

// peerRead reads one frame the way the window manager would.
func peerRead(r io.Reader) (Message, error) {
	d := NewDecoder(0)
	for {
		msg, ok, err := d.Next()
		if err != nil {
			return Message{}, err
		}
		if ok {
			return msg, nil
		}
		if _, err := d.fill(r, 64); err != nil {
			return Message{}, err
		}
	}
}

func TestNewConn_Defaults(t *testing.T) {
	conn := NewConn(&chunkStream{})

	if conn.opts.readBufferSize != defaultReadBufferSize {
		t.Errorf("readBufferSize = %d, want %d", conn.opts.readBufferSize, defaultReadBufferSize)
	}
	if conn.dec.maxPayload != defaultMaxPayloadLength {
		t.Errorf("decoder maxPayload = %d, want %d", conn.dec.maxPayload, defaultMaxPayloadLength)
	}
	if conn.IsClosed() {
		t.Error("new connection reports closed")
	}
	if conn.Addr() != "" {
		t.Errorf("Addr = %q, want empty", conn.Addr())
	}
}

func TestConn_Send(t *testing.T) {
	s := &chunkStream{writeLimit: 3}
	conn := NewConn(s)

	n, err := conn.Send(context.Background(), MsgRunCommand, "workspace 2")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if n != HeaderLength+len("workspace 2") {
		t.Errorf("n = %d, want %d", n, HeaderLength+len("workspace 2"))
	}
	if !bytes.Equal(s.written.Bytes(), mustEncode(t, MsgRunCommand, "workspace 2")) {
		t.Errorf("written = %q", s.written.Bytes())
	}
}

func TestConn_Send_WriteError(t *testing.T) {
	writeErr := errors.New("broken pipe")
	s := &chunkStream{writeErr: writeErr}
	conn := NewConn(s)

	_, err := conn.Send(context.Background(), MsgGetTree, "")
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != "write" || !errors.Is(err, writeErr) {
		t.Fatalf("expected write OpError, got %v", err)
	}
	if !conn.IsClosed() || !s.closed {
		t.Error("connection not closed after write error")
	}

	if _, err2 := conn.Send(context.Background(), MsgGetTree, ""); err2 != err {
		t.Errorf("second Send = %v, want %v", err2, err)
	}
}

func TestConn_Send_MessageTooLarge(t *testing.T) {
	s := &chunkStream{}
	conn := NewConn(s, MessageMaxSize(4))

	_, err := conn.Send(context.Background(), MsgRunCommand, "nop 1")
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
	if conn.IsClosed() || s.written.Len() != 0 {
		t.Error("oversized payload must be rejected before writing")
	}
}

func TestConn_Receive_ChunkedReads(t *testing.T) {
	stream := frames(t,
		Message{Type: MsgGetMarks, Payload: []byte(`["a","b"]`)},
		Message{Type: EventTick, Payload: []byte(`{"first":true,"payload":""}`)},
	)

	for size := 1; size <= len(stream); size++ {
		conn := NewConn(&chunkStream{data: stream, size: size}, ReadBufferSizeOption(size))

		first, err := conn.Receive(context.Background())
		if err != nil {
			t.Fatalf("size %d: first Receive failed: %v", size, err)
		}
		second, err := conn.Receive(context.Background())
		if err != nil {
			t.Fatalf("size %d: second Receive failed: %v", size, err)
		}
		if first.Type != MsgGetMarks || string(first.Payload) != `["a","b"]` {
			t.Errorf("size %d: first = %v %q", size, first.Type, first.Payload)
		}
		if second.Type != EventTick || !second.Type.IsEvent() {
			t.Errorf("size %d: second = %v", size, second.Type)
		}

		if _, err := conn.Receive(context.Background()); err != io.EOF {
			t.Errorf("size %d: expected io.EOF, got %v", size, err)
		}
	}
}

func TestConn_Receive_IncompleteHeader(t *testing.T) {
	frame := mustEncode(t, MsgGetVersion, "{}")
	conn := NewConn(&chunkStream{data: frame[:13], size: 5})

	_, err := conn.Receive(context.Background())
	if !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame, got %v", err)
	}
	if !conn.IsClosed() {
		t.Error("connection should be closed")
	}
}

func TestConn_Receive_IncompletePayload(t *testing.T) {
	frame := mustEncode(t, MsgGetVersion, `{"major":4}`)
	conn := NewConn(&chunkStream{data: frame[:len(frame)-1], size: 64})

	_, err := conn.Receive(context.Background())
	if !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame, got %v", err)
	}
}

func TestConn_Receive_Desync(t *testing.T) {
	stream := []byte("HTTP/1.1 200 OK\r\n\r\n")
	stream = append(stream, mustEncode(t, MsgGetTree, "{}")...)
	conn := NewConn(&chunkStream{data: stream, size: 64})

	_, err := conn.Receive(context.Background())
	if !errors.Is(err, ErrProtocolDesync) {
		t.Fatalf("expected ErrProtocolDesync, got %v", err)
	}
	if !conn.IsClosed() {
		t.Error("connection should be closed after desync")
	}
	if _, err := conn.Receive(context.Background()); !errors.Is(err, ErrProtocolDesync) {
		t.Errorf("second Receive = %v, want ErrProtocolDesync", err)
	}
	if !errors.Is(conn.Err(), ErrProtocolDesync) {
		t.Errorf("Err = %v", conn.Err())
	}
}

func TestConn_Receive_PayloadErrorIsRecoverable(t *testing.T) {
	stream := frames(t,
		Message{Type: MsgGetWorkspaces, Payload: []byte(`[{"num":`)},
		Message{Type: MsgGetWorkspaces, Payload: []byte(`[{"num":3,"name":"3"}]`)},
	)
	conn := NewConn(&chunkStream{data: stream, size: 7})

	_, err := Receive[[]workspace](context.Background(), conn)
	var payloadErr *PayloadError
	if !errors.As(err, &payloadErr) || payloadErr.Type != MsgGetWorkspaces {
		t.Fatalf("expected PayloadError, got %v", err)
	}
	if conn.IsClosed() {
		t.Fatal("payload error must not close the connection")
	}

	resp, err := Receive[[]workspace](context.Background(), conn)
	if err != nil {
		t.Fatalf("Receive after payload error failed: %v", err)
	}
	if len(resp.Body) != 1 || resp.Body[0].Num != 3 {
		t.Errorf("Body = %+v", resp.Body)
	}
}

func TestConn_Receive_ContextCanceledBetweenFrames(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()
	conn := NewConn(client)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.Receive(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if conn.IsClosed() {
		t.Fatal("nothing was read, connection should stay usable")
	}

	go peer.Write(mustEncode(t, MsgSync, `{"success":true}`))

	msg, err := conn.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive after cancel failed: %v", err)
	}
	if msg.Type != MsgSync {
		t.Errorf("Type = %v, want %v", msg.Type, MsgSync)
	}
}

func TestConn_Receive_ContextCanceledMidFrame(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()
	conn := NewConn(client)

	go peer.Write(mustEncode(t, MsgGetTree, "{}")[:5])

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := conn.Receive(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !conn.IsClosed() {
		t.Error("connection with a partial frame must be closed")
	}
}

func TestConn_Close(t *testing.T) {
	s := &chunkStream{}
	conn := NewConn(s)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if !s.closed {
		t.Error("stream not closed")
	}

	if _, err := conn.Send(context.Background(), MsgGetTree, ""); err != ErrConnectionClosed {
		t.Errorf("Send after Close = %v, want ErrConnectionClosed", err)
	}
	if _, err := conn.Receive(context.Background()); err != ErrConnectionClosed {
		t.Errorf("Receive after Close = %v, want ErrConnectionClosed", err)
	}
}

func TestConn_CloseUnblocksReceive(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()
	conn := NewConn(client)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	conn.Close()

	select {
	case err := <-errCh:
		if err != ErrConnectionClosed {
			t.Errorf("expected ErrConnectionClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

func TestConn_Receive_NoProgress(t *testing.T) {
	s := &zeroStream{}
	conn := NewConn(s)

	_, err := conn.Receive(context.Background())
	if !errors.Is(err, io.ErrNoProgress) {
		t.Fatalf("expected io.ErrNoProgress, got %v", err)
	}
	if s.reads != maxEmptyReads {
		t.Errorf("reads = %d, want %d", s.reads, maxEmptyReads)
	}
	if !conn.IsClosed() {
		t.Error("connection should be closed")
	}
}

func TestConn_Send_CanceledBeforeWrite(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()
	conn := NewConn(client)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := conn.Send(ctx, MsgGetTree, "")
	if err != context.Canceled || n != 0 {
		t.Fatalf("Send = (%d, %v), want (0, context.Canceled)", n, err)
	}
	if conn.IsClosed() {
		t.Fatal("nothing was written, connection should stay usable")
	}

	got := make(chan Message, 1)
	go func() {
		msg, _ := peerRead(peer)
		got <- msg
	}()

	if _, err := conn.Send(context.Background(), MsgGetMarks, ""); err != nil {
		t.Fatalf("Send after cancel failed: %v", err)
	}
	if msg := <-got; msg.Type != MsgGetMarks {
		t.Errorf("peer got %v, want %v", msg.Type, MsgGetMarks)
	}
}

func TestConn_Send_CanceledMidFrame(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()
	conn := NewConn(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The peer takes part of the header, then stops reading.
	go func() {
		buf := make([]byte, 5)
		io.ReadFull(peer, buf)
		cancel()
	}()

	n, err := conn.Send(ctx, MsgRunCommand, "workspace 3")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
	if !conn.IsClosed() {
		t.Error("connection with a partial frame written must be closed")
	}
	if _, err2 := conn.Send(context.Background(), MsgGetTree, ""); err2 != err {
		t.Errorf("Send after failure = %v, want %v", err2, err)
	}
}
