package rwm

import (
	"encoding/binary"
	"fmt"
	"math"

	"rwmem/process"
)

// readBytes is the single read primitive: one ReadMemory call on proc
func readBytes(proc process.Process, addr process.ProcessMemoryAddress, length process.ProcessMemorySize) ([]byte, error) {
	if length == 0 {
		return nil, fmt.Errorf("zero length read at %s: %w", addr.ToString(), process.ErrUsage)
	}

	data, err := proc.ReadMemory(addr, length)
	if err != nil {
		return data, fmt.Errorf("read %d bytes at %s: %w", length, addr.ToString(), err)
	}
	return data, nil
}

func checkWidth(kind string, length process.ProcessMemorySize) error {
	if length != DefaultLength {
		return fmt.Errorf("%s decodes %d bytes, got length %d: %w", kind, DefaultLength, length, process.ErrUsage)
	}
	return nil
}

func readInt(proc process.Process, addr process.ProcessMemoryAddress) (int32, error) {
	data, err := readBytes(proc, addr, DefaultLength)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

// ReadBytes reads length raw bytes at addr. On a partial transfer the bytes
// that were read are returned together with an error matching
// process.ErrPartialTransfer.
func (a *Accessor) ReadBytes(addr process.ProcessMemoryAddress, length process.ProcessMemorySize) ([]byte, error) {
	proc, _, err := a.current()
	if err != nil {
		return nil, err
	}
	return readBytes(proc, addr, length)
}

// ReadInt reads a little-endian int32 at addr.
func (a *Accessor) ReadInt(addr process.ProcessMemoryAddress) (int32, error) {
	return a.ReadIntN(addr, DefaultLength)
}

// ReadIntN is ReadInt with an explicit length, which must be 4.
func (a *Accessor) ReadIntN(addr process.ProcessMemoryAddress, length process.ProcessMemorySize) (int32, error) {
	if err := checkWidth("int32", length); err != nil {
		return 0, err
	}
	proc, _, err := a.current()
	if err != nil {
		return 0, err
	}
	return readInt(proc, addr)
}

// ReadFloat reads a little-endian IEEE-754 float32 at addr.
func (a *Accessor) ReadFloat(addr process.ProcessMemoryAddress) (float32, error) {
	return a.ReadFloatN(addr, DefaultLength)
}

// ReadFloatN is ReadFloat with an explicit length, which must be 4.
func (a *Accessor) ReadFloatN(addr process.ProcessMemoryAddress, length process.ProcessMemorySize) (float32, error) {
	if err := checkWidth("float32", length); err != nil {
		return 0, err
	}
	proc, _, err := a.current()
	if err != nil {
		return 0, err
	}
	data, err := readBytes(proc, addr, length)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
}

// ReadString reads length bytes at addr and decodes them as ASCII. The whole
// span is decoded, NUL bytes included; bytes above 0x7F become '?'.
func (a *Accessor) ReadString(addr process.ProcessMemoryAddress, length process.ProcessMemorySize) (string, error) {
	data, err := a.ReadBytes(addr, length)
	return decodeASCII(data), err
}

// ReadIntChain follows a pointer chain from the main module. It reads an
// int32 at BaseAddress+addr, then for each offset reads an int32 at the
// previous value plus the offset, and returns the last value read.
// It performs len(offsets)+1 reads; length must be 4.
func (a *Accessor) ReadIntChain(addr process.ProcessMemoryAddress, offsets []int, length process.ProcessMemorySize) (int32, error) {
	if err := checkWidth("int32", length); err != nil {
		return 0, err
	}
	proc, module, err := a.current()
	if err != nil {
		return 0, err
	}

	start := module.BaseAddress + addr
	value, err := readInt(proc, start)
	if err != nil {
		return 0, fmt.Errorf("chain base %s: %w", start.ToString(), err)
	}

	for i, offset := range offsets {
		next := pointerAt(value, offset)
		a.log.Debugln("chain step", i, "value", fmt.Sprintf("%#x", uint32(value)), "offset", offset, "->", next.ToString())

		value, err = readInt(proc, next)
		if err != nil {
			return 0, fmt.Errorf("chain step %d: %w", i, err)
		}
	}

	return value, nil
}

// pointerAt treats a 4-byte value as an unsigned 32-bit pointer and displaces it
func pointerAt(value int32, offset int) process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(uint32(value)).Offset(offset)
}
