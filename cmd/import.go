package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-directory/internal/importer"
	"github.com/sells-group/company-directory/internal/metrics"
)

var importDeadLetter bool

var importCmd = &cobra.Command{
	Use:   "import <file|dir>...",
	Short: "Import enriched company documents into the directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		docs, err := readDocuments(args)
		if err != nil {
			return eris.Wrap(err, "import: read documents")
		}

		st, err := initStore(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := importer.New(st, cfg.Import,
			importer.WithMetrics(metrics.New(prometheus.NewRegistry())),
			importer.WithDeadLetter(importDeadLetter),
		)

		outcomes, err := svc.ImportAll(ctx, docs)
		if err != nil {
			return err
		}

		var created, updated, failed int
		out := cmd.OutOrStdout()
		for i, o := range outcomes {
			if o.Err != nil {
				failed++
				fmt.Fprintf(out, "FAIL  #%d: %v\n", i+1, o.Err) //nolint:errcheck
				continue
			}
			switch o.Result.Action {
			case importer.ActionCreated:
				created++
			case importer.ActionUpdated:
				updated++
			}
			fmt.Fprintf(out, "%-7s %s (v%d, %d attempt(s))\n", o.Result.Action, o.Result.Domain, o.Result.Version, o.Result.Attempts) //nolint:errcheck
		}

		zap.L().Info("import complete",
			zap.Int("documents", len(docs)),
			zap.Int("created", created),
			zap.Int("updated", updated),
			zap.Int("failed", failed),
		)
		if failed > 0 {
			return eris.Errorf("import: %d of %d documents failed", failed, len(docs))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importDeadLetter, "dead-letter", false, "park failed documents in the dead letter queue for replay")
	rootCmd.AddCommand(importCmd)
}
