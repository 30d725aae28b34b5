package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rwmem/hexdump"
	"rwmem/process"
	"rwmem/rwm"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	noColor    bool

	cfg   Config
	out   io.Writer
	color bool

	attach func(ctx context.Context, name string) (*rwm.Accessor, error)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(func(ctx context.Context, name string) (*rwm.Accessor, error) {
		return rwm.New(name, rwm.WithContext(ctx))
	})
}

func newRootCmdWith(attach func(ctx context.Context, name string) (*rwm.Accessor, error)) *cobra.Command {
	a := &app{attach: attach}

	root := &cobra.Command{
		Use:   "rwm_sample",
		Short: "Read and patch the memory of a running process",
		Long: `Read and patch the memory of a running process.

The target is the first process whose name matches --process. Addresses
accept decimal or 0x prefixed hex. Without a subcommand the demo runs.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringP("process", "p", "", "target process name (default from config, Lightshot)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	demo := newDemoCmd(a)
	root.RunE = demo.RunE
	root.Flags().AddFlagSet(demo.Flags())

	root.AddCommand(demo, newReadCmd(a), newWriteCmd(a), newNopCmd(a), newScanCmd(a))
	return root
}

// setup loads the config, applies flag overrides and picks the output writer
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("process") {
		cfg.Process, _ = cmd.Flags().GetString("process")
	}
	a.cfg = cfg

	a.out = cmd.OutOrStdout()
	a.color = false
	if f, ok := a.out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		a.out = colorable.NewColorable(f)
		a.color = true
	}
	if cfg.Color != nil && !*cfg.Color {
		a.color = false
	}
	if a.noColor {
		a.color = false
	}
	if !a.color {
		a.out = colorable.NewNonColorable(a.out)
	}
	return nil
}

func (a *app) open(ctx context.Context) (*rwm.Accessor, error) {
	acc, err := a.attach(ctx, a.cfg.Process)
	if err != nil {
		return nil, err
	}
	info := acc.Process()
	fmt.Fprintf(a.out, "Attached to %s (pid %d, parent %d) %s base %s end %s\n",
		a.cfg.Process, info.PID, info.PPID, info.Exe, acc.BaseAddress().ToString(), acc.EndAddress().ToString())
	return acc, nil
}

// dumpOptions returns hexdump options that annotate pointers into acc's memory
func (a *app) dumpOptions(acc *rwm.Accessor) hexdump.Options {
	options := hexdump.DefaultOptions()
	options.Color = a.color
	if mm, err := acc.GetMemoryMap(); err == nil {
		options.MemoryMap = mm
	}
	return options
}

func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, process.ErrUsage)
	}
	return process.ProcessMemoryAddress(v), nil
}

func parseOffsets(values []string) ([]int, error) {
	offsets := make([]int, 0, len(values))
	for _, s := range values {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad offset %q: %w", s, process.ErrUsage)
		}
		offsets = append(offsets, int(v))
	}
	return offsets, nil
}
