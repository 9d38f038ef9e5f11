package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Redd-Hibb/stacsos/sched"
)

func newSchedDemoCmd() *cobra.Command {
	var tasks string
	var steps int
	var removeAfter string

	cmd := &cobra.Command{
		Use:   "sched-demo",
		Short: "run the round-robin scheduler over a fixed task list and print each selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := strings.Split(tasks, ",")
			s := sched.New[string]()
			for _, id := range ids {
				s.AddToRunqueue(id)
			}

			out := cmd.OutOrStdout()
			for i := 0; i < steps; i++ {
				task, ok := s.SelectNextTask()
				if !ok {
					fmt.Fprintf(out, "step %d: idle\n", i)
					continue
				}
				fmt.Fprintf(out, "step %d: running %s\n", i, task)

				if removeAfter != "" && task == removeAfter {
					fmt.Fprintf(out, "step %d: removing %s from the run queue\n", i, task)
					s.RemoveFromRunqueue(task)
					removeAfter = ""
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tasks, "tasks", "A,B,C", "comma-separated task IDs to enqueue, in order")
	cmd.Flags().IntVar(&steps, "steps", 6, "number of scheduling points to run")
	cmd.Flags().StringVar(&removeAfter, "remove-after-first-run", "", "remove this task from the run queue the first time it is selected")
	return cmd
}
