package main

import (
	"github.com/spf13/cobra"

	"github.com/Redd-Hibb/stacsos/buddy"
	"github.com/Redd-Hibb/stacsos/page"
	"github.com/Redd-Hibb/stacsos/pfn"
)

// globalFlags mirrors the parameters buddy.New and page.NewTable need.
// It's shared across every subcommand via persistent flags on rootCmd.
type globalFlags struct {
	pageBits uint
	frames   uint64
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "stacsosctl",
		Short: "drive a standalone buddy allocator and round-robin scheduler",
		Long: "stacsosctl builds an in-process buddy.Allocator and sched.Scheduler " +
			"and exercises them the way the StACSOS kernel would, without needing " +
			"a running kernel underneath.",
	}

	root.PersistentFlags().UintVar(&flags.pageBits, "page-bits", 12, "log2 of the page size in bytes")
	root.PersistentFlags().Uint64Var(&flags.frames, "frames", 1<<buddy.LastOrder, "number of page frames the allocator manages")

	root.AddCommand(
		newAllocCmd(flags),
		newFreeCmd(flags),
		newDumpCmd(flags),
		newSchedDemoCmd(),
		newReplCmd(flags),
	)

	return root
}

// newAllocator builds a fresh table and allocator over it with every frame
// marked free, per flags.
func (f *globalFlags) newAllocator() (*page.Table, *buddy.Allocator) {
	tbl := page.NewTable(f.pageBits, pfn.Num(f.frames))
	a := buddy.New(tbl)
	a.InsertFreePages(0, f.frames)
	return tbl, a
}
