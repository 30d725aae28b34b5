package main

import (
	"fmt"

	"rwmem/hexdump"
	"rwmem/process"
	"rwmem/rwm"

	"github.com/spf13/cobra"
)

func newReadCmd(a *app) *cobra.Command {
	var (
		kind    string
		length  uint
		offsets []string
	)

	cmd := &cobra.Command{
		Use:   "read <address>",
		Short: "Read a value",
		Long: `Read a value at an absolute address.

With --offsets the address is relative to the main module base and an int
pointer chain is followed: one read at base+address, then one read per offset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			chain, err := parseOffsets(offsets)
			if err != nil {
				return err
			}
			if len(chain) > 0 && kind != "int" {
				return fmt.Errorf("pointer chains read int values, not %s: %w", kind, process.ErrUsage)
			}

			acc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer acc.Close()

			size := process.ProcessMemorySize(length)
			switch kind {
			case "int":
				var v int32
				if len(chain) > 0 {
					v, err = acc.ReadIntChain(addr, chain, size)
				} else {
					v, err = acc.ReadIntN(addr, size)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%d (%#x)\n", v, uint32(v))
			case "float":
				v, err := acc.ReadFloatN(addr, size)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, v)
			case "string":
				v, err := acc.ReadString(addr, size)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%q\n", v)
			case "bytes":
				data, err := acc.ReadBytes(addr, size)
				if len(data) > 0 {
					fmt.Fprint(a.out, hexdump.Dump(addr, data, a.dumpOptions(acc)))
				}
				return err
			default:
				return fmt.Errorf("unknown kind %q: %w", kind, process.ErrUsage)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "int", "int, float, string or bytes")
	cmd.Flags().UintVarP(&length, "length", "n", uint(rwm.DefaultLength), "bytes to read")
	cmd.Flags().StringSliceVar(&offsets, "offsets", nil, "pointer chain offsets, e.g. 0x8,0x4")
	return cmd
}
