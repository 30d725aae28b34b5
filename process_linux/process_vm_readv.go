//go:build linux

package process_linux

import (
	"rwmem/process"

	"golang.org/x/sys/unix"
)

// process_vm_readv uses the process_vm_readv syscall to read memory from another process.
// It returns the number of bytes copied into localBuf.
func process_vm_readv(
	pid process.ProcessID,
	localBuf []byte,
	remoteAddr process.ProcessMemoryAddress,
) (int, error) {
	// Create iovec for local buffer
	localIov := []unix.Iovec{
		{Base: &localBuf[0]},
	}
	localIov[0].SetLen(len(localBuf))

	// Create iovec for remote buffer
	remoteIov := []unix.RemoteIovec{
		{Base: uintptr(remoteAddr), Len: len(localBuf)},
	}

	return unix.ProcessVMReadv(int(pid), localIov, remoteIov, 0)
}

// ReadMemory reads memory from the process at the specified address.
// A short read returns the bytes that were copied and a *process.PartialTransferError.
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	pid, pidfd, log, err := p.snapshot()
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)

	// Use process_vm_readv to read memory without holding the lock
	n, err := process_vm_readv(pid, buf, addr)
	if n <= 0 && err != nil {
		return nil, transferError("process_vm_readv", pidfd, err)
	}

	log.Debugln("read", n, "bytes at", addr.ToString())

	if n != len(buf) {
		return buf[:n], &process.PartialTransferError{
			Op:          "read",
			Address:     addr,
			Requested:   size,
			Transferred: process.ProcessMemorySize(n),
		}
	}

	return buf, nil
}
