package main

import (
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/Redd-Hibb/stacsos/klog"
	"github.com/Redd-Hibb/stacsos/memviz"
)

func newDumpCmd(flags *globalFlags) *cobra.Command {
	var allocOrders []int
	var pngPath string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "print the free-list state of a freshly filled allocator",
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, a := flags.newAllocator()

			for _, order := range allocOrders {
				if _, ok := a.AllocatePages(order, 0); !ok {
					return fmt.Errorf("allocate_pages(order=%d): exhausted", order)
				}
			}

			klog.Print(a.Dump())

			if pngPath == "" {
				return nil
			}

			img := memviz.Render(a.Snapshot(), uint64(tbl.FrameCount())*tbl.PageSize())
			f, err := os.Create(pngPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return png.Encode(f, img)
		},
	}

	cmd.Flags().IntSliceVar(&allocOrders, "alloc", nil, "allocate a block of this order before dumping (repeatable)")
	cmd.Flags().StringVar(&pngPath, "png", "", "also write a PNG rendering of the free lists to this path")
	return cmd
}
