package main

import (
	"fmt"

	"rwmem/hexdump"
	"rwmem/rwm"

	"github.com/spf13/cobra"
)

func newNopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "nop <address>",
		Short: fmt.Sprintf("Patch %d bytes with NOP (0x%02x)", rwm.NopLength, rwm.NopByte),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}

			acc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer acc.Close()

			before, err := acc.ReadBytes(addr, rwm.NopLength)
			if err != nil {
				return err
			}
			if err := acc.WriteNop(addr); err != nil {
				return err
			}
			after, err := acc.ReadBytes(addr, rwm.NopLength)
			if err != nil {
				return err
			}

			fmt.Fprint(a.out, hexdump.Diff(addr, before, after, a.dumpOptions(acc)))
			return nil
		},
	}
}
