//go:build windows

package rwm

import (
	"rwmem/process"
	"rwmem/process_windows"
)

func openNative(pid process.ProcessID) (process.Process, error) {
	return process_windows.NewWithPID(pid)
}
