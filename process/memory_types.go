package process

import (
	"fmt"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// Offset returns the address displaced by a signed offset.
func (pma ProcessMemoryAddress) Offset(offset int) ProcessMemoryAddress {
	return ProcessMemoryAddress(int64(pma) + int64(offset))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// ModuleInfo describes the main executable image of a process
type ModuleInfo struct {
	Path        string               // Path of the image on disk
	BaseAddress ProcessMemoryAddress // Load address of the image
	Size        ProcessMemorySize    // Size of the image in memory
}

// EndAddress returns BaseAddress + Size.
func (m ModuleInfo) EndAddress() ProcessMemoryAddress {
	return m.BaseAddress + ProcessMemoryAddress(m.Size)
}

func (m ModuleInfo) String() string {
	return fmt.Sprintf("%s [%s-%s]", m.Path, m.BaseAddress.ToString(), m.EndAddress().ToString())
}
