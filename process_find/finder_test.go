package process_find

import (
	"os"
	"runtime"
	"testing"

	"rwmem/process"

	. "github.com/onsi/gomega"
)

func TestMatchName(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		want     string
		expected bool
	}{
		{"exact", "Lightshot", "Lightshot", true},
		{"different", "Lightshot", "lightshot2", false},
		{"empty actual", "", "", false},
		{"prefix only", "Lightshot", "Light", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewWithT(t).Expect(MatchName(tt.actual, tt.want)).To(Equal(tt.expected))
		})
	}
}

func TestMatchNameWindowsSuffix(t *testing.T) {
	g := NewWithT(t)
	if runtime.GOOS == "windows" {
		g.Expect(MatchName("Lightshot.exe", "Lightshot")).To(BeTrue())
		g.Expect(MatchName("LIGHTSHOT.EXE", "lightshot.exe")).To(BeTrue())
	} else {
		g.Expect(MatchName("Lightshot.exe", "Lightshot")).To(BeFalse())
	}
}

func TestFindSelfByPID(t *testing.T) {
	g := NewWithT(t)

	info, err := NewProcessFinder().FindProcessByPID(process.ProcessID(os.Getpid()))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(info.PID).To(Equal(process.ProcessID(os.Getpid())))
	g.Expect(info.Name).NotTo(BeEmpty())
}

func TestFindByNameExcludesSelf(t *testing.T) {
	g := NewWithT(t)

	self, err := NewProcessFinder().FindProcessByPID(process.ProcessID(os.Getpid()))
	g.Expect(err).NotTo(HaveOccurred())

	infos, err := NewProcessFinder().FindProcessByName(self.Name)
	g.Expect(err).NotTo(HaveOccurred())
	for _, info := range infos {
		g.Expect(info.PID).NotTo(Equal(self.PID))
	}
}

func TestFindByNameMissing(t *testing.T) {
	g := NewWithT(t)

	infos, err := NewProcessFinder().FindProcessByName("rwmem-no-such-process-3f9a")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(infos).To(BeEmpty())

	_, err = NewProcessFinder().FindProcessByName("")
	g.Expect(err).To(MatchError(process.ErrUsage))
}
