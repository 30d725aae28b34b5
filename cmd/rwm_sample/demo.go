package main

import (
	"context"
	"fmt"

	"rwmem/hexdump"
	"rwmem/process"

	"github.com/spf13/cobra"
)

func newDemoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Read a string, overwrite it and read it back",
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()
	flags.String("address", "", "address of the string (default from config)")
	flags.String("text", "", "replacement text")
	flags.Uint("before", 0, "bytes to read before the write")
	flags.Uint("after", 0, "bytes to read after the write")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := a.cfg.Demo
		if flags.Changed("address") {
			cfg.Address, _ = flags.GetString("address")
		}
		if flags.Changed("text") {
			cfg.Text, _ = flags.GetString("text")
		}
		if flags.Changed("before") {
			cfg.BeforeLength, _ = flags.GetUint("before")
		}
		if flags.Changed("after") {
			cfg.AfterLength, _ = flags.GetUint("after")
		}
		return a.demo(cmd.Context(), cfg)
	}
	return cmd
}

func (a *app) demo(ctx context.Context, cfg DemoConfig) error {
	addr, err := parseAddress(cfg.Address)
	if err != nil {
		return err
	}

	acc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer acc.Close()

	before, err := acc.ReadString(addr, process.ProcessMemorySize(cfg.BeforeLength))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Before: %q\n", before)

	// raw bytes for the dump, the decoded strings lose bytes above 0x7F
	span := process.ProcessMemorySize(max(cfg.BeforeLength, cfg.AfterLength))
	raw, err := acc.ReadBytes(addr, span)
	if err != nil {
		return err
	}

	if err := acc.WriteString(addr, cfg.Text); err != nil {
		return err
	}

	after, err := acc.ReadString(addr, process.ProcessMemorySize(cfg.AfterLength))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "After:  %q\n", after)

	patched, err := acc.ReadBytes(addr, span)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, hexdump.Diff(addr, raw, patched, a.dumpOptions(acc)))
	return nil
}
