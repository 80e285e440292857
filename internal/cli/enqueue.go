package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/elev8tion/agm-platform-sub001/pkg/sched"
)

// NewEnqueueCmd submits a job from the command line.
func NewEnqueueCmd(open func() (*env, error)) *cobra.Command {
	var (
		priority   int
		delay      time.Duration
		deadline   time.Duration
		dependsOn  string
		maxRetries int
	)

	cmd := &cobra.Command{
		Use:   "enqueue <kind> ['{\"topic\":\"spring sale\"}']",
		Short: "Add a job to the queue",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			var params map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
					return fmt.Errorf("invalid params json: %w", err)
				}
			}

			opts := []sched.Option{sched.Priority(priority)}
			if delay > 0 {
				opts = append(opts, sched.Delay(delay))
			}
			if deadline > 0 {
				opts = append(opts, sched.Deadline(time.Now().Add(deadline)))
			}
			if dependsOn != "" {
				opts = append(opts, sched.DependsOn(dependsOn))
			}
			if maxRetries > 0 {
				opts = append(opts, sched.MaxRetries(maxRetries))
			}

			id, err := e.sched.Enqueue(cmd.Context(), args[0], params, opts...)
			if err != nil {
				return err
			}
			fmt.Println("Job enqueued:", id)
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 5, "Priority 1 (lowest) to 10 (highest)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay before the job becomes eligible")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "Deadline relative to now, boosts urgency once passed")
	cmd.Flags().StringVar(&dependsOn, "depends-on", "", "Job id that must complete first")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Retry budget (0 uses the configured default)")
	return cmd
}
