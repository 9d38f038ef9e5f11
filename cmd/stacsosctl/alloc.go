package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Redd-Hibb/stacsos/buddy"
	"github.com/Redd-Hibb/stacsos/klog"
)

func newAllocCmd(flags *globalFlags) *cobra.Command {
	var zero bool

	cmd := &cobra.Command{
		Use:   "alloc <order>",
		Short: "allocate one block of the given order from a freshly filled allocator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("order must be an integer: %w", err)
			}

			_, a := flags.newAllocator()

			var f buddy.Flags
			if zero {
				f = buddy.FlagZero
			}

			p, ok := a.AllocatePages(order, f)
			if !ok {
				return fmt.Errorf("allocate_pages(order=%d): exhausted", order)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "allocated pfn=%d order=%d\n", p.PFN(), order)
			klog.Print(a.Dump())
			return nil
		},
	}

	cmd.Flags().BoolVar(&zero, "zero", false, "zero the block before returning it")
	return cmd
}
