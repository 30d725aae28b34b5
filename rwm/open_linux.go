//go:build linux

package rwm

import (
	"rwmem/process"
	"rwmem/process_linux"
)

func openNative(pid process.ProcessID) (process.Process, error) {
	return process_linux.NewWithPID(pid)
}
