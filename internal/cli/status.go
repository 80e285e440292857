package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// NewStatusCmd shows one job in detail.
func NewStatusCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			job, err := e.sched.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Job %s\n", job.ID)
			fmt.Printf("  kind:        %s\n", job.Kind)
			fmt.Printf("  status:      %s\n", job.Status)
			fmt.Printf("  priority:    %d\n", job.Priority)
			fmt.Printf("  progress:    %.0f%%\n", job.Progress)
			fmt.Printf("  retries:     %d/%d\n", job.RetryCount, job.MaxRetries)
			fmt.Printf("  created:     %s\n", humanize.Time(job.CreatedAt))
			if job.DependsOn != nil {
				fmt.Printf("  depends on:  %s\n", *job.DependsOn)
			}
			if job.Deadline != nil {
				fmt.Printf("  deadline:    %s\n", humanize.Time(*job.Deadline))
			}
			if job.StartedAt != nil {
				fmt.Printf("  queued for:  %s\n", formatSeconds(job.QueueSeconds))
			}
			if job.CompletedAt != nil {
				fmt.Printf("  ran for:     %s\n", formatSeconds(job.ExecutionSeconds))
			}
			if job.LastError != "" {
				fmt.Printf("  last error:  %s\n", job.LastError)
			}
			if job.Status == core.StatusCompleted && len(job.Result) > 0 {
				fmt.Printf("  result:      %s\n", job.Result)
			}
			return nil
		},
	}
}

func formatSeconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).Round(time.Millisecond).String()
}
