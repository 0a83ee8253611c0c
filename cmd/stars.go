package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/company-directory/internal/importer"
	"github.com/sells-group/company-directory/internal/stars"
)

var (
	starsFile   string
	starsDomain string
)

type starsOutput struct {
	stars.Bundle
	Tooltip []string `json:"tooltip"`
}

var starsCmd = &cobra.Command{
	Use:   "stars",
	Short: "Compute a star bundle from signals or from a stored company",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if (starsFile == "") == (starsDomain == "") {
			return eris.New("exactly one of --file or --domain is required")
		}

		if starsDomain != "" {
			st, err := initStore(cmd.Context(), "read")
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			rep, err := importer.New(st, cfg.Import).Stars(cmd.Context(), starsDomain)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		}

		data, err := os.ReadFile(starsFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", starsFile)
		}
		var sig stars.Signals
		if err := json.Unmarshal(data, &sig); err != nil {
			return eris.Wrapf(err, "parse %s", starsFile)
		}

		b := stars.Calc(sig)
		return writeJSON(cmd.OutOrStdout(), starsOutput{Bundle: b, Tooltip: stars.BuildTooltipLines(b, sig.Notes)})
	},
}

func init() {
	starsCmd.Flags().StringVar(&starsFile, "file", "", "path to a star signals JSON file")
	starsCmd.Flags().StringVar(&starsDomain, "domain", "", "normalized domain of a stored company")
	rootCmd.AddCommand(starsCmd)
}
