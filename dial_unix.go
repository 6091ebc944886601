//go:build unix

package i3ipc

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func connectReason(err error) ConnectReason {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENOTDIR):
		return ReasonNotFound
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return ReasonPermissionDenied
	case errors.Is(err, unix.ECONNREFUSED):
		return ReasonRefused
	default:
		return ReasonOther
	}
}
