package rwm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"rwmem/process"
)

// writeBytes is the single write primitive: one WriteMemory call on proc
func writeBytes(proc process.Process, addr process.ProcessMemoryAddress, data []byte) error {
	if err := proc.WriteMemory(addr, data); err != nil {
		return fmt.Errorf("write %d bytes at %s: %w", len(data), addr.ToString(), err)
	}
	return nil
}

func encodeFloat(value float32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(value))
	return buf
}

// WriteBytes writes data at addr.
func (a *Accessor) WriteBytes(addr process.ProcessMemoryAddress, data []byte) error {
	proc, _, err := a.current()
	if err != nil {
		return err
	}
	return writeBytes(proc, addr, data)
}

// WriteInt writes value as a little-endian int32 at addr.
func (a *Accessor) WriteInt(addr process.ProcessMemoryAddress, value int32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(value))
	return a.WriteBytes(addr, buf)
}

// WriteString writes value as ASCII at addr, without terminator or length
// prefix. Characters outside ASCII are written as '?'.
func (a *Accessor) WriteString(addr process.ProcessMemoryAddress, value string) error {
	return a.WriteBytes(addr, encodeASCII(value))
}

// WriteFloat writes value as a little-endian IEEE-754 float32 at addr.
func (a *Accessor) WriteFloat(addr process.ProcessMemoryAddress, value float32) error {
	return a.WriteBytes(addr, encodeFloat(value))
}

// WriteFloatChain writes value at the end of a pointer chain from the main
// module. It reads an int32 at BaseAddress+addr, follows every offset but
// the last, then writes at the last value read plus the last offset.
//
// This walk stops one dereference short of ReadIntChain with the same
// offsets: it performs len(offsets) reads and one write.
func (a *Accessor) WriteFloatChain(addr process.ProcessMemoryAddress, offsets []int, value float32) error {
	if len(offsets) == 0 {
		return fmt.Errorf("float chain write needs at least one offset: %w", process.ErrUsage)
	}
	proc, module, err := a.current()
	if err != nil {
		return err
	}

	start := module.BaseAddress + addr
	ptr, err := readInt(proc, start)
	if err != nil {
		return fmt.Errorf("chain base %s: %w", start.ToString(), err)
	}

	last := len(offsets) - 1
	for i, offset := range offsets[:last] {
		next := pointerAt(ptr, offset)
		a.log.Debugln("chain step", i, "value", fmt.Sprintf("%#x", uint32(ptr)), "offset", offset, "->", next.ToString())

		ptr, err = readInt(proc, next)
		if err != nil {
			return fmt.Errorf("chain step %d: %w", i, err)
		}
	}

	target := pointerAt(ptr, offsets[last])
	return writeBytes(proc, target, encodeFloat(value))
}

// WriteNop patches NopLength bytes at addr with NopByte.
func (a *Accessor) WriteNop(addr process.ProcessMemoryAddress) error {
	return a.WriteBytes(addr, bytes.Repeat([]byte{NopByte}, NopLength))
}
