package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Redd-Hibb/stacsos/klog"
)

func newFreeCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "free <order>",
		Short: "allocate then immediately free a block of the given order, showing the merge cascade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("order must be an integer: %w", err)
			}

			_, a := flags.newAllocator()

			p, ok := a.AllocatePages(order, 0)
			if !ok {
				return fmt.Errorf("allocate_pages(order=%d): exhausted", order)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "before free:")
			klog.Print(a.Dump())

			a.FreePages(p, order)

			fmt.Fprintln(cmd.OutOrStdout(), "after free:")
			klog.Print(a.Dump())
			return nil
		},
	}

	return cmd
}
