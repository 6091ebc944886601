package i3ipc

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// socketPathEnv lists the environment variables consulted by SocketPath, in order.
var socketPathEnv = []string{"I3SOCK", "SWAYSOCK"}

// socketPathCommand asks a running i3 for its socket path.
var socketPathCommand = []string{"i3", "--get-socketpath"}

// Dial connects to the IPC socket at path. It makes exactly one attempt;
// on failure it returns a *ConnectError describing why.
func Dial(ctx context.Context, path string, opt ...Option) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &ConnectError{Path: path, Reason: connectReason(err), Err: err}
	}

	c := NewConn(raw, opt...)
	c.logger.Info("connection established", "path", path)
	c.logger.Debug("connection options", "path", path,
		"read_buffer_size", c.opts.readBufferSize,
		"max_payload", c.opts.maxPayload,
		"buffer_size", c.opts.bufferSize)
	return c, nil
}

// DialDefault connects to the socket found by SocketPath.
func DialDefault(ctx context.Context, opt ...Option) (*Conn, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	return Dial(ctx, path, opt...)
}

// SocketPath returns the path of the window manager's IPC socket:
// $I3SOCK, then $SWAYSOCK, then the output of `i3 --get-socketpath`.
func SocketPath() (string, error) {
	for _, env := range socketPathEnv {
		if path := os.Getenv(env); path != "" {
			return path, nil
		}
	}

	out, err := exec.Command(socketPathCommand[0], socketPathCommand[1:]...).Output()
	if err != nil {
		return "", errors.Wrapf(ErrNoSocketPath, "%s: %v", strings.Join(socketPathCommand, " "), err)
	}

	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", ErrNoSocketPath
	}
	return path, nil
}
