// Package hexdump renders process memory for terminals.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"rwmem/process"
	"rwmem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options controls how a dump is rendered
type Options struct {
	// BytesPerLine is the number of bytes shown per line
	BytesPerLine int

	// Color enables ANSI colors, disable it when the output is not a terminal
	Color bool

	OffsetColor  coloransi.ColorCode
	HexColor     coloransi.ColorCode
	ASCIIColor   coloransi.ColorCode
	ZeroColor    coloransi.ColorCode
	ChangedColor coloransi.ColorCode
	PointerColor coloransi.ColorCode

	// Previous is an earlier snapshot of the same span. Bytes that differ
	// from it are drawn in ChangedColor.
	Previous []byte

	// MemoryMap, when set, lists 4-byte aligned values on each line that
	// point into readable memory.
	MemoryMap []memory_map.MemoryMapItem
}

// DefaultOptions returns colored 16 byte lines
func DefaultOptions() Options {
	return Options{
		BytesPerLine: 16,
		Color:        true,
		OffsetColor:  coloransi.Cyan,
		HexColor:     coloransi.Green,
		ASCIIColor:   coloransi.White,
		ZeroColor:    coloransi.BrightBlack,
		ChangedColor: coloransi.Yellow,
		PointerColor: coloransi.ColorOrange,
	}
}

// Dump renders data read at addr
func Dump(addr process.ProcessMemoryAddress, data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, addr, data, options)
	return buffer.String()
}

// Diff renders after, highlighting the bytes that differ from before
func Diff(addr process.ProcessMemoryAddress, before, after []byte, options Options) string {
	options.Previous = before
	return Dump(addr, after, options)
}

// DumpToWriter writes the rendering of data read at addr to writer
func DumpToWriter(writer io.Writer, addr process.ProcessMemoryAddress, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}

	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, addr, data, offset, end, options)
	}
}

func (o Options) paint(color coloransi.ColorCode, s string) string {
	if !o.Color {
		return s
	}
	return coloransi.Foreground(color, s)
}

func (o Options) changed(i int, b byte) bool {
	return i < len(o.Previous) && o.Previous[i] != b
}

// formatLine writes data[start:end], indices stay relative to data so
// Previous lines up
func formatLine(writer io.Writer, addr process.ProcessMemoryAddress, data []byte, start, end int, options Options) {
	lineAddr := addr + process.ProcessMemoryAddress(start)
	fmt.Fprint(writer, options.paint(options.OffsetColor, fmt.Sprintf("%08x", uint64(lineAddr))), "  ")

	half := options.BytesPerLine / 2
	hex := make([]string, 0, options.BytesPerLine)
	for i := start; i < end; i++ {
		b := data[i]
		cell := fmt.Sprintf("%02x", b)
		switch {
		case options.changed(i, b) && options.Color:
			cell = coloransi.Color(options.ChangedColor, coloransi.Black, cell)
		case b == 0:
			cell = options.paint(options.ZeroColor, cell)
		default:
			cell = options.paint(options.HexColor, cell)
		}
		if half > 0 && i-start == half {
			hex = append(hex, "|")
		}
		hex = append(hex, cell)
	}
	fmt.Fprint(writer, strings.Join(hex, " "))

	// pad short lines so the ASCII column stays aligned
	if missing := options.BytesPerLine - (end - start); missing > 0 {
		pad := missing * 3
		if half > 0 && end-start <= half {
			pad += 2
		}
		fmt.Fprint(writer, strings.Repeat(" ", pad))
	}

	fmt.Fprint(writer, " | ")
	for i := start; i < end; i++ {
		b := data[i]
		c := "."
		if b >= 0x20 && b < 0x7f {
			c = string(rune(b))
		}
		switch {
		case options.changed(i, b) && options.Color:
			c = coloransi.Color(options.ChangedColor, coloransi.Black, c)
		case b == 0:
			c = options.paint(options.ZeroColor, c)
		default:
			c = options.paint(options.ASCIIColor, c)
		}
		fmt.Fprint(writer, c)
	}

	if len(options.MemoryMap) > 0 {
		var pointers []string
		for i := start; i+4 <= end; i += 4 {
			ptr := uint64(binary.LittleEndian.Uint32(data[i:]))
			if ptr != 0 && memory_map.IsValidAddress(ptr, options.MemoryMap) {
				pointers = append(pointers, options.paint(options.PointerColor, fmt.Sprintf("0x%x", ptr)))
			}
		}
		if len(pointers) > 0 {
			fmt.Fprint(writer, " | ", strings.Join(pointers, " "))
		}
	}

	fmt.Fprintln(writer)
}
