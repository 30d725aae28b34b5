package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rwmem/process"
	"rwmem/process_blob"
	"rwmem/rwm"

	. "github.com/onsi/gomega"
)

const bannerAddr = 0x00DC7FF5

type harness struct {
	blob     *process_blob.ProcessBlob
	attached []string
	out      bytes.Buffer
}

func newHarness() *harness {
	data := make([]byte, 0x2000)
	copy(data[0xFF5:], "Capture!")
	blob := process_blob.NewProcessBlob(0x00DC7000, data).
		AddRegion(0x00E00000, make([]byte, 0x100), "rw-p").
		AddRegion(0x00F00000, make([]byte, 0x100), "r-xp")
	return &harness{blob: blob}
}

func (h *harness) run(args ...string) error {
	root := newRootCmdWith(func(ctx context.Context, name string) (*rwm.Accessor, error) {
		h.attached = append(h.attached, name)
		if err := h.blob.Open(1); err != nil {
			return nil, err
		}
		return rwm.New(name, rwm.WithProcess(h.blob))
	})
	root.SetOut(&h.out)
	root.SetErr(&h.out)
	root.SetArgs(args)
	return root.Execute()
}

func TestDemo(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	g.Expect(h.run("demo")).To(Succeed())

	g.Expect(h.attached).To(Equal([]string{"Lightshot"}))
	g.Expect(h.out.String()).To(ContainSubstring(`Before: "Capture!"`))
	g.Expect(h.out.String()).To(ContainSubstring(`After:  "This is a test\x00\x00"`))
	g.Expect(h.out.String()).NotTo(ContainSubstring("\x1b["))
	g.Expect(h.blob.IsOpen()).To(BeFalse())
}

func TestDemoIsDefault(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	g.Expect(h.run("--text", "Hi")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring(`After:  "Hipture!`))
}

func TestDemoConfigFile(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	path := filepath.Join(t.TempDir(), "rwm.yaml")
	g.Expect(os.WriteFile(path, []byte(`
process: notepad
demo:
  text: hello
  after-length: 5
`), 0o644)).To(Succeed())

	g.Expect(h.run("demo", "--config", path)).To(Succeed())
	g.Expect(h.attached).To(Equal([]string{"notepad"}))
	g.Expect(h.out.String()).To(ContainSubstring(`After:  "hello"`))

	// flags win over the file
	h.out.Reset()
	g.Expect(h.run("demo", "--config", path, "-p", "Lightshot", "--text", "bye")).To(Succeed())
	g.Expect(h.attached).To(Equal([]string{"notepad", "Lightshot"}))
	g.Expect(h.out.String()).To(ContainSubstring(`After:  "byelo"`))
}

func TestDemoProcessNotFound(t *testing.T) {
	g := NewWithT(t)

	root := newRootCmdWith(func(ctx context.Context, name string) (*rwm.Accessor, error) {
		return rwm.New(name, rwm.WithFinder(process_blob.NewFinder()))
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"demo"})

	g.Expect(root.Execute()).To(MatchError(process.ErrProcessNotFound))
	g.Expect(out.String()).To(ContainSubstring("Error:"))
}

func TestReadWrite(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	g.Expect(h.run("write", "0x00E00010", "-1234")).To(Succeed())
	g.Expect(h.run("read", "0x00E00010")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("-1234 (0xfffffb2e)"))

	h.out.Reset()
	g.Expect(h.run("write", "-k", "float", "0x00E00020", "2.5")).To(Succeed())
	g.Expect(h.run("read", "-k", "float", "0x00E00020")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("2.5\n"))

	h.out.Reset()
	g.Expect(h.run("write", "-k", "float", "0x00E00024", "-0.75")).To(Succeed())
	g.Expect(h.run("read", "-k", "float", "0x00E00024")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("-0.75\n"))

	h.out.Reset()
	g.Expect(h.run("write", "-k", "bytes", "0x00E00030", "deadbeef")).To(Succeed())
	g.Expect(h.run("read", "-k", "string", "-n", "4", "0x00DC7FF5")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring(`"Capt"`))
	g.Expect(h.run("read", "-k", "bytes", "-n", "4", "0x00E00030")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("de ad be ef"))
}

func TestChains(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	// [base+0x10] = 0xE00000, [0xE00008] = 0xE00040
	g.Expect(h.run("write", "0x00DC7010", "0x00E00000")).To(Succeed())
	g.Expect(h.run("write", "0x00E00008", "0x00E00040")).To(Succeed())

	g.Expect(h.run("write", "-k", "float", "--offsets", "0x8,0x4", "0x10", "1.5")).To(Succeed())
	g.Expect(h.run("read", "-k", "float", "0x00E00044")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("1.5\n"))

	h.out.Reset()
	g.Expect(h.run("write", "0x00E00044", "77")).To(Succeed())
	g.Expect(h.run("read", "--offsets", "0x8,0x4", "0x10")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("77 (0x4d)"))
}

func TestNop(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	g.Expect(h.run("nop", "0x00E00000")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring(strings.Repeat("90 ", 8)))

	g.Expect(h.run("nop", "0x00F00000")).To(MatchError(process.ErrAccessDenied))
}

func TestUsageErrorsDoNotAttach(t *testing.T) {
	h := newHarness()

	for _, args := range [][]string{
		{"write", "0x10", "not-a-number"},
		{"write", "-k", "bytes", "0x10", "zz"},
		{"write", "-k", "int", "--offsets", "0x4", "0x10", "1"},
		{"read", "-k", "string", "--offsets", "0x4", "0x10"},
		{"read", "nowhere"},
		{"demo", "--address", "banner"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(h.run(args...)).To(MatchError(process.ErrUsage))
			g.Expect(h.attached).To(BeEmpty())
		})
	}
}

func TestParseOffsets(t *testing.T) {
	g := NewWithT(t)

	offsets, err := parseOffsets([]string{"0x8", "-0x10", "12"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(offsets).To(Equal([]int{8, -16, 12}))

	for _, bad := range []string{"--0x10", "-", "0x"} {
		_, err = parseOffsets([]string{bad})
		g.Expect(err).To(MatchError(process.ErrUsage), bad)
	}
}

func TestWriteUnsignedInt(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	g.Expect(h.run("write", "0x00E00050", "0xDEADBEEF")).To(Succeed())
	g.Expect(h.run("read", "0x00E00050")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("(0xdeadbeef)"))

	g.Expect(h.run("write", "0x00E00050", "0x100000000")).To(MatchError(process.ErrUsage))
}

func TestDumpAnnotatesPointers(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	g.Expect(h.run("write", "0x00E00060", "0x00E00040")).To(Succeed())

	h.out.Reset()
	g.Expect(h.run("read", "-k", "bytes", "-n", "8", "0x00E00060")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("| 0xe00040"))
}

func TestDemoDumpKeepsHighBytes(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	// first byte past "This is a test"
	g.Expect(h.run("write", "-k", "bytes", "0x00DC8003", "c8")).To(Succeed())

	h.out.Reset()
	g.Expect(h.run("demo")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("54 68 69 73"))
	g.Expect(h.out.String()).To(ContainSubstring("74 c8 00"))
}

func TestAttachLine(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	g.Expect(h.run("read", "0x00E00000")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("Attached to Lightshot (pid 1, parent 0)"))
}

func TestLoadConfigDefaults(t *testing.T) {
	g := NewWithT(t)

	cfg, err := LoadConfig("")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg).To(Equal(DefaultConfig()))

	addr, err := parseAddress(cfg.Demo.Address)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(addr).To(Equal(process.ProcessMemoryAddress(bannerAddr)))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	g.Expect(err).To(HaveOccurred())
}

func TestScan(t *testing.T) {
	g := NewWithT(t)
	h := newHarness()

	g.Expect(h.run("write", "0x00DC7010", "0x00E00000")).To(Succeed())
	g.Expect(h.run("write", "0x00E00008", "0x00E00040")).To(Succeed())
	g.Expect(h.run("write", "0x00E00044", "4242")).To(Succeed())

	h.out.Reset()
	g.Expect(h.run("scan", "4242")).To(Succeed())
	g.Expect(h.out.String()).To(ContainSubstring("0x10 -> 0x8 -> 0x4\n"))
}
