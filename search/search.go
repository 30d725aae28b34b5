// Package search finds pointer chains that lead from a base address to a
// known int32 value, in the shape Accessor.ReadIntChain follows.
package search

import (
	"encoding/binary"
	"errors"
	"fmt"

	"rwmem/process"
)

// Memory is the view of a target the search needs; *rwm.Accessor satisfies it.
type Memory interface {
	ReadBytes(addr process.ProcessMemoryAddress, length process.ProcessMemorySize) ([]byte, error)
	IsValidAddress(addr process.ProcessMemoryAddress) bool
}

// Searcher holds configuration for the search
type Searcher struct {
	MaxStructSize uint
	MaxDepth      int
	MinAlignment  uint
	MaxResults    int
}

// Option is a function that configures a Searcher
type Option func(*Searcher)

// WithMaxStructSize sets how many bytes are scanned behind every pointer.
func WithMaxStructSize(size uint) Option {
	return func(s *Searcher) {
		s.MaxStructSize = size
	}
}

// WithMaxDepth sets the maximum number of offsets in a chain.
func WithMaxDepth(depth int) Option {
	return func(s *Searcher) {
		s.MaxDepth = depth
	}
}

func WithMinAlignment(align uint) Option {
	return func(s *Searcher) {
		s.MinAlignment = align
	}
}

// WithMaxResults stops the search after n chains, 0 means no limit.
func WithMaxResults(n int) Option {
	return func(s *Searcher) {
		s.MaxResults = n
	}
}

// Chain is a found path: ReadIntChain(Address, Offsets, 4) yields the value.
type Chain struct {
	Address process.ProcessMemoryAddress // relative to the base address
	Offsets []int
}

func (c Chain) String() string {
	s := c.Address.ToString()
	for _, o := range c.Offsets {
		if o < 0 {
			s += fmt.Sprintf(" -> -0x%X", -o)
		} else {
			s += fmt.Sprintf(" -> 0x%X", o)
		}
	}
	return s
}

// FindIntChains scans MaxStructSize bytes at base, following every aligned
// 4-byte value that points into readable memory, and returns the chains
// whose final int32 equals value, in depth-first scan order.
func FindIntChains(mem Memory, base process.ProcessMemoryAddress, value int32, options ...Option) ([]Chain, error) {
	s := &Searcher{
		MaxStructSize: 256,
		MaxDepth:      3,
		MinAlignment:  4,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.MinAlignment == 0 || s.MaxStructSize < 4 {
		return nil, fmt.Errorf("alignment %d, struct size %d: %w", s.MinAlignment, s.MaxStructSize, process.ErrUsage)
	}

	var results []Chain
	visited := make(map[process.ProcessMemoryAddress]bool)
	full := func() bool {
		return s.MaxResults > 0 && len(results) >= s.MaxResults
	}

	// path holds the offsets taken so far; at depth 0 the scanned offsets
	// become Chain.Address instead
	var searchRecursive func(addr process.ProcessMemoryAddress, path []int)
	searchRecursive = func(addr process.ProcessMemoryAddress, path []int) {
		if visited[addr] || full() {
			return
		}
		visited[addr] = true

		data, err := mem.ReadBytes(addr, process.ProcessMemorySize(s.MaxStructSize))
		if err != nil && !errors.Is(err, process.ErrPartialTransfer) {
			return
		}

		for offset := uint(0); offset+4 <= uint(len(data)); offset += s.MinAlignment {
			v := int32(binary.LittleEndian.Uint32(data[offset:]))

			var chain Chain
			if len(path) == 0 {
				chain = Chain{Address: process.ProcessMemoryAddress(offset)}
			} else {
				chain = Chain{Address: process.ProcessMemoryAddress(path[0]), Offsets: append(append([]int{}, path[1:]...), int(offset))}
			}

			if v == value {
				results = append(results, chain)
				if full() {
					return
				}
			}

			ptr := process.ProcessMemoryAddress(uint32(v))
			if len(path) < s.MaxDepth && ptr != 0 && mem.IsValidAddress(ptr) {
				searchRecursive(ptr, append(append([]int{}, path...), int(offset)))
			}
		}
	}

	searchRecursive(base, nil)

	return results, nil
}
