package process_blob

import (
	"fmt"
	"sync"

	"rwmem/process"
	"rwmem/process/memory_map"
)

// OpKind distinguishes recorded transfers
type OpKind string

const (
	OpRead  OpKind = "read"
	OpWrite OpKind = "write"
)

// Op is one ReadMemory or WriteMemory call seen by a ProcessBlob
type Op struct {
	Kind    OpKind
	Address process.ProcessMemoryAddress
	Size    process.ProcessMemorySize
}

type region struct {
	item memory_map.MemoryMapItem
	data []byte
}

// ProcessBlob is a simulated process: a set of byte regions at fixed
// addresses. The first region is reported as the main module. It fails the
// same way a live process does (unmapped addresses, protections, short
// transfers at region ends) and records every transfer.
type ProcessBlob struct {
	pid     process.ProcessID
	name    string
	open    bool
	regions []region
	ops     []Op
	mu      sync.Mutex
}

var _ process.Process = (*ProcessBlob)(nil)

// NewProcessBlob creates an open ProcessBlob whose main module is a read-write copy of data at baseAddress.
func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	p := &ProcessBlob{
		pid:  1,
		name: "blob",
		open: true,
	}
	p.AddRegion(baseAddress, data, "rw-p")
	return p
}

// SetName sets the process name the blob answers to in a Finder.
func (p *ProcessBlob) SetName(name string) *ProcessBlob {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
	return p
}

// Name returns the simulated process name.
func (p *ProcessBlob) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// AddRegion maps a copy of data at addr with the given /proc/<pid>/maps style permissions.
func (p *ProcessBlob) AddRegion(addr process.ProcessMemoryAddress, data []byte, perms string) *ProcessBlob {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)

	p.regions = append(p.regions, region{
		item: memory_map.MemoryMapItem{
			Address: uint64(addr),
			Size:    uint(len(buf)),
			Perms:   perms,
			Path:    fmt.Sprintf("[blob:%d]", len(p.regions)),
		},
		data: buf,
	})
	return p
}

// Data returns the main module bytes.
func (p *ProcessBlob) Data() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.regions) == 0 {
		return nil
	}
	return p.regions[0].data
}

// Ops returns a copy of the recorded transfers.
func (p *ProcessBlob) Ops() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]Op, len(p.ops))
	copy(result, p.ops)
	return result
}

// Count returns how many transfers of kind were recorded.
func (p *ProcessBlob) Count(kind OpKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, op := range p.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// ResetOps clears the recorded transfers.
func (p *ProcessBlob) ResetOps() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = nil
}

func (p *ProcessBlob) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pid = pid
	p.open = true
	return nil
}

func (p *ProcessBlob) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

// IsOpen reports whether Close has not been called since the last Open.
func (p *ProcessBlob) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *ProcessBlob) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *ProcessBlob) MainModule() (process.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return process.ModuleInfo{}, process.ErrProcessNotOpen
	}
	if len(p.regions) == 0 {
		return process.ModuleInfo{}, process.ErrAddressNotMapped
	}
	main := p.regions[0].item
	return process.ModuleInfo{
		Path:        main.Path,
		BaseAddress: process.ProcessMemoryAddress(main.Address),
		Size:        process.ProcessMemorySize(main.Size),
	}, nil
}

func (p *ProcessBlob) UpdateMemoryMap() error {
	return nil
}

func (p *ProcessBlob) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.find(addr)
	return r != nil && r.item.IsReadable()
}

func (p *ProcessBlob) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, 0, len(p.regions))
	for _, r := range p.regions {
		result = append(result, r.item)
	}
	memory_map.Sort(result)
	return result, nil
}

// find returns the region containing addr, the lock must be held
func (p *ProcessBlob) find(addr process.ProcessMemoryAddress) *region {
	for i := range p.regions {
		r := &p.regions[i]
		if uint64(addr) >= r.item.Address && uint64(addr) < r.item.End() {
			return r
		}
	}
	return nil
}

// transfer copies between buf and the regions starting at addr, crossing
// into adjacent regions. It returns the number of bytes copied before the
// first gap or protection violation.
func (p *ProcessBlob) transfer(kind OpKind, addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	done := 0
	for done < len(buf) {
		cur := addr + process.ProcessMemoryAddress(done)
		r := p.find(cur)
		if r == nil {
			if done == 0 {
				return 0, fmt.Errorf("%w: %s", process.ErrAddressNotMapped, cur.ToString())
			}
			break
		}

		allowed := r.item.IsReadable()
		if kind == OpWrite {
			allowed = r.item.IsWritable()
		}
		if !allowed {
			if done == 0 {
				return 0, fmt.Errorf("%w: %s %s in %s region", process.ErrAccessDenied, kind, cur.ToString(), r.item.Perms)
			}
			break
		}

		off := uint64(cur) - r.item.Address
		var n int
		if kind == OpWrite {
			n = copy(r.data[off:], buf[done:])
		} else {
			n = copy(buf[done:], r.data[off:])
		}
		done += n
	}
	return done, nil
}

// ReadMemory reads from the simulated regions
func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return nil, process.ErrProcessNotOpen
	}

	p.ops = append(p.ops, Op{Kind: OpRead, Address: addr, Size: size})

	buf := make([]byte, size)
	n, err := p.transfer(OpRead, addr, buf)
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return buf[:n], &process.PartialTransferError{
			Op:          string(OpRead),
			Address:     addr,
			Requested:   size,
			Transferred: process.ProcessMemorySize(n),
		}
	}
	return buf, nil
}

// WriteMemory writes into the simulated regions
func (p *ProcessBlob) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return process.ErrProcessNotOpen
	}

	p.ops = append(p.ops, Op{Kind: OpWrite, Address: addr, Size: process.ProcessMemorySize(len(data))})

	n, err := p.transfer(OpWrite, addr, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return &process.PartialTransferError{
			Op:          string(OpWrite),
			Address:     addr,
			Requested:   process.ProcessMemorySize(len(data)),
			Transferred: process.ProcessMemorySize(n),
		}
	}
	return nil
}
