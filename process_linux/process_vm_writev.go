//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"

	"rwmem/process"
	"rwmem/process/memory_map"

	"golang.org/x/sys/unix"
)

// process_vm_writev uses the process_vm_writev syscall to write memory to another process.
// It returns the number of bytes copied out of localBuf.
func process_vm_writev(
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

	return unix.ProcessVMWritev(int(pid), localIov, remoteIov, 0)
}

const (
	opVMWritev = "process_vm_writev"
	opMemFile  = "/proc/pid/mem"
)

// WriteMemory writes data to the process memory at the specified address.
//
// process_vm_writev honours page protections, so writes that start in a
// mapped region without write permission (code patches) go through
// /proc/<pid>/mem instead, which the kernel lets a ptrace-capable writer
// use regardless of protection. A process_vm_writev EFAULT refreshes the
// memory map and retries through /proc/<pid>/mem when the page turns out to
// be mapped read-only after the last snapshot.
func (p *LinuxProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	pid, pidfd, log, err := p.snapshot()
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	// Create a copy of the data to avoid potential modification during the write
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	op := opVMWritev
	var written int
	if p.isProtected(addr) {
		op = opMemFile
		written, err = p.writeMemFile(pid, dataCopy, addr)
	} else {
		written, err = process_vm_writev(pid, dataCopy, addr)
		if written == 0 && errors.Is(err, unix.EFAULT) {
			if uerr := p.UpdateMemoryMap(); uerr != nil {
				log.Warn("memory map refresh after EFAULT: ", uerr)
			} else if p.isProtected(addr) {
				op = opMemFile
				written, err = p.writeMemFile(pid, dataCopy, addr)
			}
		}
	}

	if written == 0 && err != nil {
		return transferError(op, pidfd, err)
	}

	log.Debugln("wrote", written, "bytes at", addr.ToString(), "via", op)

	if written != len(data) {
		return &process.PartialTransferError{
			Op:          "write",
			Address:     addr,
			Requested:   process.ProcessMemorySize(len(data)),
			Transferred: process.ProcessMemorySize(written),
		}
	}

	return nil
}

// isProtected reports whether addr lies in a mapped region without write permission
func (p *LinuxProcess) isProtected(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	region := memory_map.FindRegion(uint64(addr), p.mm)
	return region != nil && !region.IsWritable()
}

func (p *LinuxProcess) writeMemFile(pid process.ProcessID, data []byte, addr process.ProcessMemoryAddress) (int, error) {
	p.mu.Lock()
	if p.mem == nil {
		f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDWR, 0)
		if err != nil {
			p.mu.Unlock()
			return 0, err
		}
		p.mem = f
	}
	mem := p.mem
	p.mu.Unlock()

	return mem.WriteAt(data, int64(addr))
}
