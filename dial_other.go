//go:build !unix

package i3ipc

import (
	"io/fs"

	"github.com/pkg/errors"
)

func connectReason(err error) ConnectReason {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	default:
		return ReasonOther
	}
}
