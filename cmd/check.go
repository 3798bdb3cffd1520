package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/venuelogic/linecheck/internal/engine"
	"github.com/venuelogic/linecheck/internal/ingest"
)

var (
	checkContractBook string
	checkOutput       string
)

var checkCmd = &cobra.Command{
	Use:   "check <batch-file>",
	Short: "Check a batch of invoice lines against reference prices",
	Long:  "Loads a YAML/JSON batch of normalized invoice lines (plus optional inline price sources and an XLSX contract book), runs every line through the engine, and writes one verdict per line as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchFile, err := ingest.LoadBatchFile(args[0])
		if err != nil {
			return err
		}

		sources := batchFile.Sources
		if checkContractBook != "" {
			bookRows, err := ingest.LoadContractBook(checkContractBook)
			if err != nil {
				return err
			}
			sources = append(sources, bookRows...)
		}

		ladders, err := ingest.BuildLadders(sources, cfg)
		if err != nil {
			return err
		}

		eng := engine.New(cfg)
		results, report := eng.ProcessBatch(cmd.Context(), engine.Batch{
			Lines:   batchFile.Lines,
			Ladders: ladders,
		})

		out := os.Stdout
		if checkOutput != "" {
			f, err := os.Create(checkOutput)
			if err != nil {
				return eris.Wrap(err, "check: create output file")
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		for _, r := range results {
			if r.Err != nil {
				r.ErrText = r.Err.Error()
			}
			if err := enc.Encode(r); err != nil {
				return eris.Wrap(err, "check: encode result")
			}
		}

		zap.L().Info("check complete",
			zap.String("run_id", report.RunID),
			zap.Int("lines", report.Lines),
			zap.Int("failed", report.Failed),
			zap.Int64("duration_ms", report.DurationMS),
		)
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkContractBook, "contract-book", "", "XLSX contract book seeding the price ladders")
	checkCmd.Flags().StringVar(&checkOutput, "output", "", "write verdicts to a file instead of stdout")
	rootCmd.AddCommand(checkCmd)
}
