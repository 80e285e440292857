package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// NewStatsCmd prints queue health counters.
func NewStatsCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			stats, err := e.sched.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Total jobs: %d\n", stats.Total)
			fmt.Println("By status:")
			statuses := make([]string, 0, len(stats.ByStatus))
			for status := range stats.ByStatus {
				statuses = append(statuses, string(status))
			}
			sort.Strings(statuses)
			for _, status := range statuses {
				fmt.Printf("  %-10s %d\n", status, stats.ByStatus[core.JobStatus(status)])
			}

			if len(stats.QueuedByPriority) > 0 {
				fmt.Println("Queued by priority:")
				prios := make([]int, 0, len(stats.QueuedByPriority))
				for p := range stats.QueuedByPriority {
					prios = append(prios, p)
				}
				sort.Sort(sort.Reverse(sort.IntSlice(prios)))
				for _, p := range prios {
					fmt.Printf("  p%-2d %d\n", p, stats.QueuedByPriority[p])
				}
			}

			fmt.Printf("Past deadline:     %d\n", stats.PastDeadline)
			fmt.Printf("Avg queue time:    %s\n", formatSeconds(stats.AvgQueueSeconds))
			fmt.Printf("Avg execution:     %s\n", formatSeconds(stats.AvgExecutionSeconds))
			return nil
		},
	}
}
