//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"rwmem/process"
	"rwmem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/unix"
)

// LinuxProcess implements the process.Process interface for Linux systems.
// The pidfd is the handle held for the lifetime of the open process; failed
// transfers consult it to tell an exited target from a refused one.
type LinuxProcess struct {
	pid    process.ProcessID
	pidfd  int
	mem    *os.File // /proc/<pid>/mem, opened on the first protected write
	log    *logger.Logger
	mm     []memory_map.MemoryMapItem
	module process.ModuleInfo
	mu     sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := &LinuxProcess{
		pidfd: -1,
		log:   logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d: %w", pid, process.ErrUsage)
	}

	// Check if process exists
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d: %w", pid, process.ErrProcessNotFound)
	}

	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	pidfd, err := unix.PidfdOpen(int(pid), 0)
	if err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("process with PID %d: %w", pid, process.ErrProcessNotFound)
		}
		// kernels before 5.3 have no pidfd, fall back to the bare pid
		log.Warn("pidfd_open unavailable: ", err)
		pidfd = -1
	}

	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		if pidfd >= 0 {
			unix.Close(pidfd)
		}
		return fmt.Errorf("failed to resolve executable of PID %d: %w", pid, classifyErrno(err))
	}

	p.mu.Lock()
	if p.pidfd >= 0 {
		unix.Close(p.pidfd)
	}
	if p.mem != nil {
		p.mem.Close()
		p.mem = nil
	}
	p.pid = pid
	p.pidfd = pidfd
	p.log = log
	p.module = process.ModuleInfo{Path: exe}
	p.mu.Unlock()

	// Initialize memory map - call without holding the lock to avoid deadlock
	if err := p.UpdateMemoryMap(); err != nil {
		p.Close()
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.mu.Lock()
	base, end, ok := memory_map.ModuleSpan(exe, p.mm)
	if ok {
		p.module.BaseAddress = process.ProcessMemoryAddress(base)
		p.module.Size = process.ProcessMemorySize(end - base)
	}
	module := p.module
	p.mu.Unlock()

	if !ok {
		p.Close()
		return fmt.Errorf("executable %s is not mapped in PID %d: %w", exe, pid, process.ErrAddressNotMapped)
	}

	p.log.Infoln("Process opened", module.String())

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil
	}

	p.log.Infoln("Closing process")

	var err error
	if p.mem != nil {
		err = p.mem.Close()
		p.mem = nil
	}
	if p.pidfd >= 0 {
		if cerr := unix.Close(p.pidfd); err == nil {
			err = cerr
		}
		p.pidfd = -1
	}

	// Reset process state
	p.pid = 0
	p.mm = nil
	p.module = process.ModuleInfo{}

	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	p.log.Infoln("Process closed")

	return err
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// MainModule returns the span of the mappings backed by /proc/<pid>/exe
func (p *LinuxProcess) MainModule() (process.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ModuleInfo{}, process.ErrProcessNotOpen
	}
	return p.module, nil
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.NewLinuxMemoryMap().ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", classifyErrno(err))
	}

	p.mm = mm
	return nil
}

func (p *LinuxProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return memory_map.IsValidAddress(uint64(addr), p.mm)
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	// Make a copy of the memory map to prevent external modification
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)

	return result, nil
}

// snapshot returns the fields a syscall needs without holding the lock across it
func (p *LinuxProcess) snapshot() (process.ProcessID, int, *logger.Logger, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return 0, -1, p.log, process.ErrProcessNotOpen
	}
	return p.pid, p.pidfd, p.log, nil
}

// alive reports whether the process behind pidfd still exists
func alive(pidfd int) bool {
	if pidfd < 0 {
		return true
	}
	return unix.PidfdSendSignal(pidfd, 0, nil, 0) == nil
}
