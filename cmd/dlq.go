package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/company-directory/internal/importer"
	"github.com/sells-group/company-directory/internal/resilience"
)

var (
	dlqLimit     int
	dlqErrorType string
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead-lettered imports",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters that are due for replay",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context(), "read")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.DequeueDLQ(cmd.Context(), dlqFilter())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %-30s %-9s retries=%d/%d  %s\n", //nolint:errcheck
				e.ID, e.Domain, e.ErrorType, e.RetryCount, e.MaxRetries, e.Error)
		}
		return nil
	},
}

var dlqCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count dead-lettered imports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context(), "read")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.CountDLQ(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n) //nolint:errcheck
		return nil
	},
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-import due dead letters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context(), "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := importer.New(st, cfg.Import).ReplayDeadLetters(cmd.Context(), dlqFilter())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), sum)
	},
}

func dlqFilter() resilience.DLQFilter {
	return resilience.DLQFilter{ErrorType: dlqErrorType, Limit: dlqLimit}
}

func init() {
	for _, c := range []*cobra.Command{dlqListCmd, dlqReplayCmd} {
		c.Flags().IntVar(&dlqLimit, "limit", 100, "maximum entries to process")
		c.Flags().StringVar(&dlqErrorType, "error-type", "", "only entries of this type (transient or permanent)")
	}
	dlqCmd.AddCommand(dlqListCmd, dlqCountCmd, dlqReplayCmd)
	rootCmd.AddCommand(dlqCmd)
}
