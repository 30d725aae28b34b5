//go:build linux

package process_linux

import (
	"errors"
	"os"
	"runtime"
	"testing"
	"unsafe"

	"rwmem/process"

	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"
)

func openSelf(t *testing.T) process.Process {
	t.Helper()
	proc, err := NewWithPID(process.ProcessID(os.Getpid()))
	if err != nil {
		t.Fatalf("open self: %v", err)
	}
	t.Cleanup(func() { proc.Close() })
	return proc
}

func skipIfDenied(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, process.ErrAccessDenied) {
		t.Skipf("process_vm_* not permitted here: %v", err)
	}
}

func TestOpenSelf(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)

	g.Expect(proc.GetPID()).To(Equal(process.ProcessID(os.Getpid())))

	module, err := proc.MainModule()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(module.BaseAddress).NotTo(BeZero())
	g.Expect(module.Size).NotTo(BeZero())
	g.Expect(module.EndAddress()).To(BeNumerically(">", module.BaseAddress))

	exe, _ := os.Readlink("/proc/self/exe")
	g.Expect(module.Path).To(Equal(exe))
	g.Expect(proc.IsValidAddress(module.BaseAddress)).To(BeTrue())
}

func TestReadWriteSelf(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)

	buf := []byte("This is a test\x00\x00")
	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&buf[0])))

	data, err := proc.ReadMemory(addr, process.ProcessMemorySize(len(buf)))
	skipIfDenied(t, err)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(data).To(Equal(buf))

	err = proc.WriteMemory(addr, []byte("THIS"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(buf[:7])).To(Equal("THIS is"))

	runtime.KeepAlive(buf)
}

func TestReadUnmapped(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)

	_, err := proc.ReadMemory(0x10, 4)
	skipIfDenied(t, err)
	g.Expect(err).To(MatchError(process.ErrAddressNotMapped))
}

func TestZeroSize(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)

	data, err := proc.ReadMemory(0x10, 0)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(data).To(BeEmpty())
	g.Expect(proc.WriteMemory(0x10, nil)).To(Succeed())
}

func TestClosed(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)

	g.Expect(proc.Close()).To(Succeed())
	g.Expect(proc.Close()).To(Succeed(), "close is idempotent")

	_, err := proc.ReadMemory(0x1000, 4)
	g.Expect(err).To(MatchError(process.ErrProcessNotOpen))
	g.Expect(proc.WriteMemory(0x1000, []byte{1})).To(MatchError(process.ErrProcessNotOpen))

	_, err = proc.MainModule()
	g.Expect(err).To(MatchError(process.ErrProcessNotOpen))
}

func TestOpenMissing(t *testing.T) {
	g := NewWithT(t)

	_, err := NewWithPID(0x3fffffff)
	g.Expect(err).To(MatchError(process.ErrProcessNotFound))

	_, err = NewWithPID(0)
	g.Expect(err).To(MatchError(process.ErrUsage))
}

func TestClassifyErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"eperm", unix.EPERM, process.ErrAccessDenied},
		{"efault", unix.EFAULT, process.ErrAddressNotMapped},
		{"eio", unix.EIO, process.ErrAddressNotMapped},
		{"esrch", unix.ESRCH, process.ErrProcessExited},
		{"not exist", os.ErrNotExist, process.ErrProcessExited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewWithT(t).Expect(classifyErrno(tt.err)).To(MatchError(tt.want))
		})
	}
}

// readOnlyEdge maps a read-only page followed by an unmapped hole and
// returns the page. The last four bytes are aa bb cc dd.
func readOnlyEdge(t *testing.T) []byte {
	t.Helper()
	page := unix.Getpagesize()

	mem, err := unix.Mmap(-1, 0, 2*page, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		t.Fatalf("mmap: %v", err)
	}
	copy(mem[page-4:page], []byte{0xaa, 0xbb, 0xcc, 0xdd})

	if err := unix.MunmapPtr(unsafe.Pointer(&mem[page]), uintptr(page)); err != nil {
		t.Fatalf("munmap second page: %v", err)
	}
	if err := unix.Mprotect(mem[:page], unix.PROT_READ); err != nil {
		t.Fatalf("mprotect: %v", err)
	}

	edge := mem[:page:page]
	t.Cleanup(func() { unix.MunmapPtr(unsafe.Pointer(&edge[0]), uintptr(page)) })
	return edge
}

func addrOf(b []byte) process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&b[0])))
}

func TestPartialReadAtHole(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)
	edge := readOnlyEdge(t)
	end := addrOf(edge) + process.ProcessMemoryAddress(len(edge))

	data, err := proc.ReadMemory(end-2, 4)
	skipIfDenied(t, err)
	g.Expect(err).To(MatchError(process.ErrPartialTransfer))
	g.Expect(data).To(Equal([]byte{0xcc, 0xdd}))

	_, err = proc.ReadMemory(end, 4)
	g.Expect(err).To(MatchError(process.ErrAddressNotMapped))
}

func TestPartialWriteProtectedAtHole(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)
	edge := readOnlyEdge(t)
	g.Expect(proc.UpdateMemoryMap()).To(Succeed())
	end := addrOf(edge) + process.ProcessMemoryAddress(len(edge))

	err := proc.WriteMemory(end-2, []byte{1, 2, 3, 4})
	skipIfDenied(t, err)
	g.Expect(err).To(MatchError(process.ErrPartialTransfer))

	var partial *process.PartialTransferError
	g.Expect(errors.As(err, &partial)).To(BeTrue())
	g.Expect(partial.Op).To(Equal("write"))
	g.Expect(partial.Requested).To(Equal(process.ProcessMemorySize(4)))
	g.Expect(partial.Transferred).To(Equal(process.ProcessMemorySize(2)))
	g.Expect(edge[len(edge)-2:]).To(Equal([]byte{1, 2}))
}

func TestPartialWriteWritableAtHole(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)
	edge := readOnlyEdge(t)
	g.Expect(unix.Mprotect(edge, unix.PROT_READ|unix.PROT_WRITE)).To(Succeed())
	g.Expect(proc.UpdateMemoryMap()).To(Succeed())
	end := addrOf(edge) + process.ProcessMemoryAddress(len(edge))

	err := proc.WriteMemory(end-1, []byte{7, 8})
	skipIfDenied(t, err)
	g.Expect(err).To(MatchError(process.ErrPartialTransfer))
	g.Expect(edge[len(edge)-1]).To(Equal(byte(7)))
}

func TestWriteProtectedPage(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)
	edge := readOnlyEdge(t)
	g.Expect(proc.UpdateMemoryMap()).To(Succeed())

	nops := []byte{0x90, 0x90, 0x90, 0x90}
	err := proc.WriteMemory(addrOf(edge)+16, nops)
	skipIfDenied(t, err)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(edge[16:20]).To(Equal(nops))

	// the hole is not mapped, whatever the protection of its neighbour
	end := addrOf(edge) + process.ProcessMemoryAddress(len(edge))
	err = proc.WriteMemory(end, nops)
	g.Expect(err).To(MatchError(process.ErrAddressNotMapped))
	g.Expect(err.Error()).To(HavePrefix("process_vm_writev"))
}

func TestWriteReadOnlyMappedAfterOpen(t *testing.T) {
	g := NewWithT(t)
	proc := openSelf(t)

	// mapped after the memory map snapshot taken by Open
	edge := readOnlyEdge(t)

	err := proc.WriteMemory(addrOf(edge), []byte("patched"))
	skipIfDenied(t, err)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(edge[:7])).To(Equal("patched"))
	g.Expect(proc.IsValidAddress(addrOf(edge))).To(BeTrue(), "the map was refreshed")
}

func TestOpenDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root may open any process")
	}
	g := NewWithT(t)

	proc, err := NewWithPID(1)
	if err == nil {
		proc.Close()
		t.Skip("pid 1 is accessible here")
	}
	g.Expect(err).To(MatchError(process.ErrAccessDenied))
}
