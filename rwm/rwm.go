// Package rwm reads and writes the memory of another running process.
//
// An Accessor is bound to the first process matching a name. Addresses are
// absolute unless a method says otherwise; chain methods start from the base
// address of the target's main executable image.
//
//	acc, err := rwm.New("Lightshot")
//	if err != nil {
//		return err
//	}
//	defer acc.Close()
//
//	before, err := acc.ReadString(0x00DC7FF5, 8)
package rwm

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"rwmem/process"
	"rwmem/process/memory_map"
	"rwmem/process_find"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	// DefaultLength is the read length used for 4-byte values
	DefaultLength process.ProcessMemorySize = 4

	// NopByte is the x86 single-byte no-operation instruction
	NopByte byte = 0x90

	// NopLength is the number of bytes WriteNop patches
	NopLength = 27
)

// Accessor reads and writes the memory of one target process.
// The OS calls themselves are not serialized; the lock only guards the
// attached process so Reattach and Close can run alongside readers.
type Accessor struct {
	name   string
	finder process.ProcessFinder
	opener process.ProcessOpener
	fixed  process.Process
	pid    process.ProcessID
	ctx    context.Context
	log    *logger.Logger

	mu     sync.RWMutex
	proc   process.Process
	info   process.ProcessInfo
	module process.ModuleInfo
	closed bool
}

// Option configures an Accessor
type Option func(*Accessor)

// WithFinder replaces the gopsutil based process lookup.
func WithFinder(finder process.ProcessFinder) Option {
	return func(a *Accessor) {
		a.finder = finder
	}
}

// WithOpener replaces the native backend used to open the PID the finder returns.
func WithOpener(opener process.ProcessOpener) Option {
	return func(a *Accessor) {
		a.opener = opener
	}
}

// WithProcess attaches to an already open process instead of searching by name.
// Reattach reopens the same PID.
func WithProcess(proc process.Process) Option {
	return func(a *Accessor) {
		a.fixed = proc
	}
}

// WithContext bounds the default process lookup by ctx, in New and in
// every Reattach. It has no effect on a finder set with WithFinder.
func WithContext(ctx context.Context) Option {
	return func(a *Accessor) {
		a.ctx = ctx
	}
}

// WithLogger replaces the accessor's logger.
func WithLogger(log *logger.Logger) Option {
	return func(a *Accessor) {
		a.log = log
	}
}

// New attaches to the first running process called name (lowest PID) and
// captures the base address of its main module. It returns an error wrapping
// process.ErrProcessNotFound when nothing matches.
func New(name string, options ...Option) (*Accessor, error) {
	a := &Accessor{
		name:   name,
		finder: process_find.NewProcessFinder(),
		opener: openNative,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "rwm-"+name)),
	}

	for _, option := range options {
		option(a)
	}

	if f, ok := a.finder.(*process_find.Finder); ok && a.ctx != nil {
		a.finder = f.WithContext(a.ctx)
	}

	if a.fixed != nil {
		a.pid = a.fixed.GetPID()
	}

	proc, info, module, err := a.resolve(false)
	if err != nil {
		return nil, err
	}

	a.proc = proc
	a.info = info
	a.module = module
	a.log.Infoln("Attached to", name, "pid", info.PID, "ppid", info.PPID, module.String())

	runtime.SetFinalizer(a, func(a *Accessor) {
		a.Close()
	})

	return a, nil
}

// resolve finds and opens the target. reopen is set when a fixed process
// was closed by Reattach and has to be opened again.
func (a *Accessor) resolve(reopen bool) (process.Process, process.ProcessInfo, process.ModuleInfo, error) {
	var proc process.Process
	var info process.ProcessInfo

	if a.fixed != nil {
		if reopen {
			if err := a.fixed.Open(a.pid); err != nil {
				return nil, info, process.ModuleInfo{}, fmt.Errorf("reopen pid %d: %w", a.pid, err)
			}
		}
		proc = a.fixed
		info = process.ProcessInfo{PID: a.pid, Name: a.name}
	} else {
		infos, err := a.finder.FindProcessByName(a.name)
		if err != nil {
			return nil, info, process.ModuleInfo{}, fmt.Errorf("find process '%s': %w", a.name, err)
		}

		if len(infos) == 0 {
			return nil, info, process.ModuleInfo{}, fmt.Errorf("no process found with name '%s': %w", a.name, process.ErrProcessNotFound)
		}

		info = infos[0]
		proc, err = a.opener(info.PID)
		if err != nil {
			return nil, info, process.ModuleInfo{}, fmt.Errorf("open process '%s' (pid %d): %w", a.name, info.PID, err)
		}
	}

	module, err := proc.MainModule()
	if err != nil {
		proc.Close()
		return nil, info, process.ModuleInfo{}, fmt.Errorf("main module of '%s': %w", a.name, err)
	}

	if info.Exe == "" {
		info.Exe = module.Path
	}

	return proc, info, module, nil
}

// current returns the attached process and its main module
func (a *Accessor) current() (process.Process, process.ModuleInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed || a.proc == nil {
		return nil, process.ModuleInfo{}, process.ErrProcessNotOpen
	}
	return a.proc, a.module, nil
}

// Reattach closes the current handle and resolves the process by name again,
// picking up a restarted target. If no process matches, the accessor stays
// detached and operations fail with process.ErrProcessNotOpen until a later
// Reattach succeeds.
func (a *Accessor) Reattach() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return process.ErrProcessNotOpen
	}

	if a.proc != nil {
		if err := a.proc.Close(); err != nil {
			a.log.Warn("close before reattach: ", err)
		}
		a.proc = nil
		a.info = process.ProcessInfo{}
		a.module = process.ModuleInfo{}
	}

	proc, info, module, err := a.resolve(true)
	if err != nil {
		return err
	}

	a.proc = proc
	a.info = info
	a.module = module
	a.log.Infoln("Reattached to", a.name, "pid", proc.GetPID(), module.String())
	return nil
}

// Close releases the process handle. It is safe to call more than once.
func (a *Accessor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	runtime.SetFinalizer(a, nil)

	var err error
	if a.proc != nil {
		err = a.proc.Close()
		a.proc = nil
	}
	a.log.Infoln("Detached from", a.name)
	return err
}

// Name returns the process name the accessor resolves.
func (a *Accessor) Name() string {
	return a.name
}

// PID returns the attached process ID, 0 when detached.
func (a *Accessor) PID() process.ProcessID {
	proc, _, err := a.current()
	if err != nil {
		return 0
	}
	return proc.GetPID()
}

// Process returns what the finder reported for the attached process, the
// zero value when detached.
func (a *Accessor) Process() process.ProcessInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed || a.proc == nil {
		return process.ProcessInfo{}
	}
	return a.info
}

// BaseAddress returns the load address of the target's main module.
func (a *Accessor) BaseAddress() process.ProcessMemoryAddress {
	_, module, _ := a.current()
	return module.BaseAddress
}

// EndAddress returns BaseAddress plus the module size. It is informational,
// accesses past it are not rejected.
func (a *Accessor) EndAddress() process.ProcessMemoryAddress {
	_, module, _ := a.current()
	return module.EndAddress()
}

// ModuleSize returns the in-memory size of the target's main module.
func (a *Accessor) ModuleSize() process.ProcessMemorySize {
	_, module, _ := a.current()
	return module.Size
}

// ModulePath returns the on-disk path of the target's main module.
func (a *Accessor) ModulePath() string {
	_, module, _ := a.current()
	return module.Path
}

// IsValidAddress checks addr against the last memory map snapshot.
func (a *Accessor) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	proc, _, err := a.current()
	if err != nil {
		return false
	}
	return proc.IsValidAddress(addr)
}

// UpdateMemoryMap refreshes the memory map snapshot used by IsValidAddress.
func (a *Accessor) UpdateMemoryMap() error {
	proc, _, err := a.current()
	if err != nil {
		return err
	}
	return proc.UpdateMemoryMap()
}

// GetMemoryMap returns a copy of the last memory map snapshot, sorted by address.
func (a *Accessor) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	proc, _, err := a.current()
	if err != nil {
		return nil, err
	}
	return proc.GetMemoryMap()
}
