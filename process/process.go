// Package process provides interfaces and types for process memory access
package process

import (
	"errors"
	"fmt"
)

// Platform backends live in their own packages:
// - process_linux: process_vm_readv / process_vm_writev
// - process_windows: ReadProcessMemory / WriteProcessMemory
// - process_blob: a simulated address space
// - process_find: name based process lookup

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrProcessNotFound is returned when no running process matches a name or PID.
	ErrProcessNotFound = errors.New("process not found")

	// ErrProcessExited is returned when the target went away while it was open.
	ErrProcessExited = errors.New("process exited")

	// ErrAccessDenied is returned when the OS refuses to read or write the target.
	ErrAccessDenied = errors.New("access denied")

	// ErrPartialTransfer matches any *PartialTransferError.
	ErrPartialTransfer = errors.New("partial transfer")

	// ErrUsage is returned for invalid arguments, such as a decode width that
	// does not match the requested length.
	ErrUsage = errors.New("usage error")
)

// PartialTransferError reports that fewer bytes than requested were copied.
type PartialTransferError struct {
	Op          string // "read" or "write"
	Address     ProcessMemoryAddress
	Requested   ProcessMemorySize
	Transferred ProcessMemorySize
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("partial %s at %s: %d of %d bytes", e.Op, e.Address.ToString(), e.Transferred, e.Requested)
}

func (e *PartialTransferError) Is(target error) bool {
	return target == ErrPartialTransfer
}
