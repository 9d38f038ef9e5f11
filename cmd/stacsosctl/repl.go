package main

import (
	"fmt"
	"io"

	tty "github.com/mattn/go-tty"
	"github.com/spf13/cobra"

	"github.com/Redd-Hibb/stacsos/buddy"
	"github.com/Redd-Hibb/stacsos/page"
)

// replSession holds the single live allocator the repl command drives.
// stack holds the outstanding blocks so 'f' has something to free.
type replSession struct {
	order int
	a     *buddy.Allocator
	stack []page.Page
}

func (s *replSession) allocate(out io.Writer) {
	p, ok := s.a.AllocatePages(s.order, buddy.FlagNone)
	if !ok {
		fmt.Fprintf(out, "allocate_pages(order=%d): exhausted\n", s.order)
		return
	}
	s.stack = append(s.stack, p)
	fmt.Fprintf(out, "allocated pfn=%d\n", p.PFN())
}

func (s *replSession) freeLast(out io.Writer) {
	if len(s.stack) == 0 {
		fmt.Fprintln(out, "nothing outstanding to free")
		return
	}
	p := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.a.FreePages(p, s.order)
	fmt.Fprintf(out, "freed pfn=%d\n", p.PFN())
}

// newReplCmd builds the raw-keystroke interactive console: 'a' allocates,
// 'f' frees the most recently allocated block, 'd' dumps the free lists,
// 'q' quits. Grounded on the teacher's go-tty-backed line reader
// (boot/anticipation/cmd/release/ioproto.go), adapted here to single
// keystrokes instead of framed lines since there's no wire protocol to
// decode.
func newReplCmd(flags *globalFlags) *cobra.Command {
	var order int

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "interactively allocate/free/dump a live allocator one keystroke at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tty.Open()
			if err != nil {
				return fmt.Errorf("repl: opening tty: %w", err)
			}
			defer t.Close()

			_, a := flags.newAllocator()
			session := &replSession{order: order, a: a}

			out := t.Output()
			fmt.Fprintf(out, "stacsosctl repl: order=%d  [a]llocate [f]ree [d]ump [q]uit\n", order)

			for {
				r, err := t.ReadRune()
				if err != nil {
					return fmt.Errorf("repl: reading keystroke: %w", err)
				}

				switch r {
				case 'a':
					session.allocate(out)
				case 'f':
					session.freeLast(out)
				case 'd':
					fmt.Fprint(out, a.Dump())
				case 'q':
					fmt.Fprintln(out, "bye")
					return nil
				default:
					fmt.Fprintf(out, "unknown command %q\n", r)
				}
			}
		},
	}

	cmd.Flags().IntVar(&order, "order", 0, "block order that 'a' allocates and 'f' frees")
	return cmd
}
