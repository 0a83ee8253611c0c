package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/reconcile"
)

var (
	mergeExistingPath string
	mergeIncomingPath string
	mergeDomain       string
	mergeFinalize     bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Preview the merge of an incoming document into an existing one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var existing *model.Record
		if mergeExistingPath != "" {
			rec, err := readDocument(mergeExistingPath)
			if err != nil {
				return eris.Wrap(err, "merge: existing")
			}
			existing = rec
		}

		incoming, err := readDocument(mergeIncomingPath)
		if err != nil {
			return eris.Wrap(err, "merge: incoming")
		}

		merged := reconcile.Merge(existing, incoming, mergeDomain)
		if mergeFinalize {
			merged = reconcile.ApplyCompleteness(reconcile.ApplyReviewsStarState(merged))
		}
		return writeJSON(cmd.OutOrStdout(), merged)
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeExistingPath, "existing", "", "path to the stored document (JSON or YAML)")
	mergeCmd.Flags().StringVar(&mergeIncomingPath, "incoming", "", "path to the incoming document (required)")
	mergeCmd.Flags().StringVar(&mergeDomain, "domain", "", "fallback normalized domain")
	mergeCmd.Flags().BoolVar(&mergeFinalize, "finalize", false, "also resolve the reviews star and profile completeness")
	_ = mergeCmd.MarkFlagRequired("incoming")
	rootCmd.AddCommand(mergeCmd)
}
