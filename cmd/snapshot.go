package main

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/store"
)

const snapshotPageSize = 500

var (
	exportOut    string
	exportPrefix string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored companies as JSON lines",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, "read")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		w := cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		bw := bufio.NewWriter(w)
		enc := json.NewEncoder(bw)
		enc.SetEscapeHTML(false)

		total := 0
		for offset := 0; ; offset += snapshotPageSize {
			page, err := st.ListCompanies(ctx, store.CompanyFilter{
				DomainPrefix: exportPrefix,
				Limit:        snapshotPageSize,
				Offset:       offset,
			})
			if err != nil {
				return err
			}
			for _, c := range page {
				if err := enc.Encode(c.Record); err != nil {
					return eris.Wrap(err, "export: encode")
				}
			}
			total += len(page)
			if len(page) < snapshotPageSize {
				break
			}
		}
		if err := bw.Flush(); err != nil {
			return eris.Wrap(err, "export: flush")
		}

		zap.L().Info("export complete", zap.Int("companies", total))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Upsert companies from a JSON lines export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := readSnapshot(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx, "migrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.RestoreCompanies(ctx, recs)
		if err != nil {
			return err
		}
		zap.L().Info("restore complete", zap.Int64("companies", n))
		return nil
	},
}

func readSnapshot(path string) ([]*model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var recs []*model.Record
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var rec model.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, eris.Wrapf(err, "parse %s record %d", path, len(recs)+1)
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportPrefix, "prefix", "", "only domains with this prefix")
	rootCmd.AddCommand(exportCmd, restoreCmd)
}
