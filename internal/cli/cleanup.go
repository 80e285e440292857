package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// NewCleanupCmd purges terminal jobs older than the retention window.
func NewCleanupCmd(open func() (*env, error)) *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete completed, dead, and cancelled jobs past retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			if retention == 0 {
				retention = e.cfg.Cleanup.Retention.Std()
			}
			n, err := e.sched.Store().DeleteOlderThan(cmd.Context(), retention, core.TerminalStatuses())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d jobs older than %s\n", n, retention)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "Age threshold (defaults to the configured retention)")
	return cmd
}
