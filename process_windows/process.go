//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"rwmem/process"
	"rwmem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

const (
	PROCESS_RWM_ACCESS = windows.PROCESS_QUERY_INFORMATION |
		windows.PROCESS_VM_READ |
		windows.PROCESS_VM_WRITE |
		windows.PROCESS_VM_OPERATION

	stillActive = 259
)

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	log    *logger.Logger
	mm     []memory_map.MemoryMapItem
	module process.ModuleInfo
	mu     sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := &WindowsProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *WindowsProcess) Open(pid process.ProcessID) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d: %w", pid, process.ErrUsage)
	}

	handle, err := windows.OpenProcess(PROCESS_RWM_ACCESS, false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return fmt.Errorf("OpenProcess %d: %w", pid, process.ErrProcessNotFound)
		}
		return fmt.Errorf("OpenProcess %d: %w", pid, classifyError(err))
	}

	module, err := mainModule(pid)
	if err != nil {
		windows.CloseHandle(handle)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		windows.CloseHandle(p.handle)
	}
	p.pid = pid
	p.handle = handle
	p.module = module
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	if err := p.updateMemoryMapInternal(); err != nil {
		p.log.Warn("Failed to initialize memory map: ", err)
	}

	p.log.Infoln("Process opened", module.String())
	return nil
}

// mainModule returns the first module of the Toolhelp32 module list, which is the executable
func mainModule(pid process.ProcessID) (process.ModuleInfo, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return process.ModuleInfo{}, fmt.Errorf("CreateToolhelp32Snapshot %d: %w", pid, classifyError(err))
	}
	defer windows.CloseHandle(snapshot)

	var me32 windows.ModuleEntry32
	me32.Size = uint32(unsafe.Sizeof(me32))
	if err := windows.Module32First(snapshot, &me32); err != nil {
		return process.ModuleInfo{}, fmt.Errorf("Module32First %d: %w", pid, classifyError(err))
	}

	return process.ModuleInfo{
		Path:        windows.UTF16ToString(me32.ExePath[:]),
		BaseAddress: process.ProcessMemoryAddress(me32.ModBaseAddr),
		Size:        process.ProcessMemorySize(me32.ModBaseSize),
	}, nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return nil
	}

	p.log.Infoln("Closing process")

	err := windows.CloseHandle(p.handle)
	p.handle = 0
	p.pid = 0
	p.mm = nil
	p.module = process.ModuleInfo{}
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	if err != nil {
		return fmt.Errorf("CloseHandle failed: %w", err)
	}
	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *WindowsProcess) MainModule() (process.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return process.ModuleInfo{}, process.ErrProcessNotOpen
	}
	return p.module, nil
}

func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMemoryMapInternal()
}

func (p *WindowsProcess) updateMemoryMapInternal() error {
	if p.handle == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.NewWindowsMemoryMap(p.handle).ReadMemoryMap(int(p.pid))
	if err != nil {
		return err
	}
	p.mm = mm
	return nil
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.IsValidAddress(uint64(addr), p.mm)
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

func (p *WindowsProcess) currentHandle() (windows.Handle, *logger.Logger, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return 0, p.log, process.ErrProcessNotOpen
	}
	return p.handle, p.log, nil
}

// ReadMemory reads memory with ReadProcessMemory.
// A short read returns the bytes that were copied and a *process.PartialTransferError.
func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	handle, log, err := p.currentHandle()
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	err = windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead)
	log.Debugln("read", bytesRead, "bytes at", addr.ToString())

	if err != nil && bytesRead == 0 {
		return nil, transferError("ReadProcessMemory", handle, err)
	}

	if bytesRead != uintptr(size) {
		return buf[:bytesRead], &process.PartialTransferError{
			Op:          "read",
			Address:     addr,
			Requested:   size,
			Transferred: process.ProcessMemorySize(bytesRead),
		}
	}

	return buf, nil
}

// WriteMemory writes memory with WriteProcessMemory, which also patches
// image pages mapped without write permission.
func (p *WindowsProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	handle, log, err := p.currentHandle()
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var written uintptr
	err = windows.WriteProcessMemory(handle, uintptr(addr), &data[0], uintptr(len(data)), &written)
	log.Debugln("wrote", written, "bytes at", addr.ToString())

	if err != nil && written == 0 {
		return transferError("WriteProcessMemory", handle, err)
	}

	if written != uintptr(len(data)) {
		return &process.PartialTransferError{
			Op:          "write",
			Address:     addr,
			Requested:   process.ProcessMemorySize(len(data)),
			Transferred: process.ProcessMemorySize(written),
		}
	}

	return nil
}
