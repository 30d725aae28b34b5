//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"

	"rwmem/process"

	"golang.org/x/sys/unix"
)

// classifyErrno maps syscall failures onto the process error sentinels
func classifyErrno(err error) error {
	var errno unix.Errno
	switch {
	case errors.As(err, &errno):
		switch errno {
		case unix.EPERM, unix.EACCES:
			return fmt.Errorf("%w: %s", process.ErrAccessDenied, errno.Error())
		case unix.EFAULT, unix.EIO:
			return fmt.Errorf("%w: %s", process.ErrAddressNotMapped, errno.Error())
		case unix.ESRCH:
			return fmt.Errorf("%w: %s", process.ErrProcessExited, errno.Error())
		case unix.EINVAL:
			return fmt.Errorf("%w: %s", process.ErrUsage, errno.Error())
		}
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", process.ErrAccessDenied, err)
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %v", process.ErrProcessExited, err)
	}
	return err
}

// transferError builds the error for a transfer that copied nothing; op
// names the mechanism that failed
func transferError(op string, pidfd int, err error) error {
	if !alive(pidfd) {
		return fmt.Errorf("%s: %w", op, process.ErrProcessExited)
	}
	return fmt.Errorf("%s: %w", op, classifyErrno(err))
}
