package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/company-directory/internal/monitoring"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check store health and dead letter backlog, sending alerts if configured",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context(), "read")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(cmd.Context())
		if err != nil {
			return err
		}
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap, nil)
		alerter.SendAlerts(cmd.Context(), alerts)

		return writeJSON(cmd.OutOrStdout(), struct {
			Snapshot *monitoring.Snapshot `json:"snapshot"`
			Alerts   []monitoring.Alert   `json:"alerts"`
		}{snap, alerts})
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
