// Package process_find looks up running processes by name or PID with gopsutil.
package process_find

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"rwmem/process"

	ps "github.com/shirou/gopsutil/v4/process"
)

// Finder implements process.ProcessFinder for the local machine
type Finder struct {
	ctx context.Context
}

var _ process.ProcessFinder = (*Finder)(nil)

// NewProcessFinder creates a new Finder
func NewProcessFinder() *Finder {
	return &Finder{ctx: context.Background()}
}

// WithContext returns a Finder whose lookups are bound to ctx
func (f *Finder) WithContext(ctx context.Context) *Finder {
	return &Finder{ctx: ctx}
}

// FindProcessByPID finds a process by its PID
func (f *Finder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	proc, err := ps.NewProcessWithContext(f.ctx, int32(pid))
	if err != nil {
		if errors.Is(err, ps.ErrorProcessNotRunning) {
			return nil, fmt.Errorf("pid %d: %w", pid, process.ErrProcessNotFound)
		}
		return nil, err
	}
	return f.info(proc), nil
}

// FindProcessByName finds processes whose name or executable basename equals
// name, lowest PID first. The calling process is never returned.
func (f *Finder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("empty process name: %w", process.ErrUsage)
	}

	procs, err := ps.ProcessesWithContext(f.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	self := int32(os.Getpid())
	var results []process.ProcessInfo

	for _, proc := range procs {
		if proc.Pid == self {
			continue
		}

		// Processes may exit while we iterate, errors just mean no match
		procName, _ := proc.NameWithContext(f.ctx)
		if MatchName(procName, name) {
			results = append(results, *f.info(proc))
			continue
		}

		exe, _ := proc.ExeWithContext(f.ctx)
		if exe != "" && MatchName(filepath.Base(exe), name) {
			results = append(results, *f.info(proc))
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})

	return results, nil
}

func (f *Finder) info(proc *ps.Process) *process.ProcessInfo {
	name, _ := proc.NameWithContext(f.ctx)
	exe, _ := proc.ExeWithContext(f.ctx)
	ppid, _ := proc.PpidWithContext(f.ctx)
	return &process.ProcessInfo{
		PID:  process.ProcessID(proc.Pid),
		PPID: process.ProcessID(ppid),
		Name: name,
		Exe:  exe,
	}
}

// MatchName reports whether a process called actual answers to want.
// Names match exactly; on Windows the comparison ignores case and the
// ".exe" suffix, so "Lightshot" finds "Lightshot.exe".
func MatchName(actual, want string) bool {
	if actual == "" {
		return false
	}
	if actual == want {
		return true
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(trimExe(actual), trimExe(want))
	}
	return false
}

func trimExe(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name[:len(name)-len(".exe")]
	}
	return name
}
