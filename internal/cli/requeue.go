package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRequeueCmd puts a dead or cancelled job back in the queue.
func NewRequeueCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <job-id>",
		Short: "Requeue a dead or cancelled job with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			if err := e.sched.Requeue(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Job requeued:", args[0])
			return nil
		},
	}
}
