package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCancelCmd cancels a job.
func NewCancelCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			if err := e.sched.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Job cancelled:", args[0])
			return nil
		},
	}
}
