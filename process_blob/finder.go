package process_blob

import (
	"fmt"
	"sort"

	"rwmem/process"
)

// Finder resolves names and PIDs to a fixed set of ProcessBlobs
type Finder struct {
	blobs map[process.ProcessID]*ProcessBlob
}

var _ process.ProcessFinder = (*Finder)(nil)

// NewFinder indexes blobs by PID. Each blob must have a distinct PID.
func NewFinder(blobs ...*ProcessBlob) *Finder {
	f := &Finder{blobs: make(map[process.ProcessID]*ProcessBlob)}
	for _, b := range blobs {
		f.blobs[b.GetPID()] = b
	}
	return f
}

func (f *Finder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	b, ok := f.blobs[pid]
	if !ok {
		return nil, fmt.Errorf("pid %d: %w", pid, process.ErrProcessNotFound)
	}
	return &process.ProcessInfo{PID: pid, Name: b.Name()}, nil
}

func (f *Finder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	var results []process.ProcessInfo
	for pid, b := range f.blobs {
		if b.Name() == name {
			results = append(results, process.ProcessInfo{PID: pid, Name: name})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})
	return results, nil
}

// Open reopens the blob registered under pid; it satisfies process.ProcessOpener.
func (f *Finder) Open(pid process.ProcessID) (process.Process, error) {
	b, ok := f.blobs[pid]
	if !ok {
		return nil, fmt.Errorf("pid %d: %w", pid, process.ErrProcessNotFound)
	}
	if err := b.Open(pid); err != nil {
		return nil, err
	}
	return b, nil
}
