package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"rwmem/process"
	"rwmem/rwm"

	"github.com/spf13/cobra"
)

func newWriteCmd(a *app) *cobra.Command {
	var (
		kind    string
		offsets []string
	)

	cmd := &cobra.Command{
		Use:   "write [flags] <address> <value>",
		Short: "Write a value",
		Long: `Write a value at an absolute address.

Bytes are given as hex, e.g. 9090c3. With --offsets the address is relative
to the main module base and a float is written at the end of the chain: the
last offset is added to the last pointer read, not dereferenced.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			chain, err := parseOffsets(offsets)
			if err != nil {
				return err
			}
			if len(chain) > 0 && kind != "float" {
				return fmt.Errorf("pointer chains write float values, not %s: %w", kind, process.ErrUsage)
			}

			write, err := writerFor(kind, args[1], addr, chain)
			if err != nil {
				return err
			}

			acc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer acc.Close()

			if err := write(acc); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s %s\n", kind, args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "int", "int, float, string or bytes")
	cmd.Flags().StringSliceVar(&offsets, "offsets", nil, "pointer chain offsets for a float write")
	// flags go before <address>, so a negative <value> is not read as a flag
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// writerFor parses value before anything is attached so bad input never
// touches the target
func writerFor(kind, value string, addr process.ProcessMemoryAddress, chain []int) (func(*rwm.Accessor) error, error) {
	switch kind {
	case "int":
		v, err := parseInt32(value)
		if err != nil {
			return nil, err
		}
		return func(acc *rwm.Accessor) error { return acc.WriteInt(addr, v) }, nil
	case "float":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, fmt.Errorf("bad float %q: %w", value, process.ErrUsage)
		}
		if len(chain) > 0 {
			return func(acc *rwm.Accessor) error { return acc.WriteFloatChain(addr, chain, float32(v)) }, nil
		}
		return func(acc *rwm.Accessor) error { return acc.WriteFloat(addr, float32(v)) }, nil
	case "string":
		return func(acc *rwm.Accessor) error { return acc.WriteString(addr, value) }, nil
	case "bytes":
		data, err := hex.DecodeString(value)
		if err != nil || len(data) == 0 {
			return nil, fmt.Errorf("bad hex bytes %q: %w", value, process.ErrUsage)
		}
		return func(acc *rwm.Accessor) error { return acc.WriteBytes(addr, data) }, nil
	}
	return nil, fmt.Errorf("unknown kind %q: %w", kind, process.ErrUsage)
}

// parseInt32 accepts the signed range and, for pointers such as 0xDEADBEEF,
// the unsigned 32-bit range reinterpreted as int32
func parseInt32(value string) (int32, error) {
	if v, err := strconv.ParseInt(value, 0, 32); err == nil {
		return int32(v), nil
	}
	u, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad int %q: %w", value, process.ErrUsage)
	}
	return int32(uint32(u)), nil
}
