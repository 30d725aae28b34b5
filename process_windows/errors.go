//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"syscall"

	"rwmem/process"

	"golang.org/x/sys/windows"
)

// classifyError maps Win32 errors onto the process error sentinels
func classifyError(err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return err
	}

	switch errno {
	case windows.ERROR_ACCESS_DENIED:
		return fmt.Errorf("%w: %s", process.ErrAccessDenied, errno.Error())
	case windows.ERROR_PARTIAL_COPY, windows.ERROR_NOACCESS, windows.ERROR_INVALID_ADDRESS:
		return fmt.Errorf("%w: %s", process.ErrAddressNotMapped, errno.Error())
	case windows.ERROR_INVALID_HANDLE:
		return fmt.Errorf("%w: %s", process.ErrProcessNotOpen, errno.Error())
	}
	return err
}

// transferError builds the error for a failed Read/WriteProcessMemory call
func transferError(op string, handle windows.Handle, err error) error {
	var code uint32
	if windows.GetExitCodeProcess(handle, &code) == nil && code != stillActive {
		return fmt.Errorf("%s: %w", op, process.ErrProcessExited)
	}
	return fmt.Errorf("%s: %w", op, classifyError(err))
}
