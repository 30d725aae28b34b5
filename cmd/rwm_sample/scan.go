package main

import (
	"fmt"
	"strconv"

	"rwmem/process"
	"rwmem/search"

	"github.com/spf13/cobra"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		depth   int
		size    uint
		results int
	)

	cmd := &cobra.Command{
		Use:   "scan <value>",
		Short: "Find pointer chains from the main module to an int value",
		Long: `Find pointer chains from the main module to an int value.

Each line can be passed to read as: read --offsets <offsets> <address>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseInt(args[0], 0, 32)
			if err != nil {
				return fmt.Errorf("bad int %q: %w", args[0], process.ErrUsage)
			}

			acc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer acc.Close()

			if err := acc.UpdateMemoryMap(); err != nil {
				return err
			}

			chains, err := search.FindIntChains(acc, acc.BaseAddress(), int32(v),
				search.WithMaxDepth(depth),
				search.WithMaxStructSize(size),
				search.WithMaxResults(results),
			)
			if err != nil {
				return err
			}

			for _, c := range chains {
				fmt.Fprintln(a.out, c.String())
			}
			fmt.Fprintf(a.out, "%d chains\n", len(chains))
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 3, "maximum number of offsets")
	cmd.Flags().UintVar(&size, "size", 256, "bytes scanned behind each pointer")
	cmd.Flags().IntVar(&results, "max", 100, "stop after this many chains, 0 for no limit")
	return cmd
}
