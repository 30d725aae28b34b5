//go:build !linux && !windows

package rwm

import (
	"fmt"
	"runtime"

	"rwmem/process"
)

func openNative(pid process.ProcessID) (process.Process, error) {
	return nil, fmt.Errorf("no process memory backend for %s", runtime.GOOS)
}
