package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// NewListCmd lists jobs with optional filters.
func NewListCmd(open func() (*env, error)) *cobra.Command {
	var (
		status string
		kind   string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			jobs, total, err := e.sched.List(cmd.Context(), core.JobFilter{
				Status: core.JobStatus(status),
				Kind:   kind,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Println("No jobs found.")
				return nil
			}

			for _, j := range jobs {
				fmt.Printf("%s | %-9s | p%-2d | retries=%d/%d | %-20s | %s\n",
					j.ID, j.Status, j.Priority, j.RetryCount, j.MaxRetries,
					j.Kind, humanize.Time(j.CreatedAt))
			}
			fmt.Printf("%d of %d jobs\n", len(jobs), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending,queued,running,retrying,completed,dead,cancelled)")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by job kind")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum jobs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset into the result set")
	return cmd
}
