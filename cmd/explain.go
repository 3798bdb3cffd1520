package main

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/venuelogic/linecheck/internal/explain"
	"github.com/venuelogic/linecheck/internal/model"
	"github.com/venuelogic/linecheck/pkg/enrich"
)

var explainEnrich bool

var explainCmd = &cobra.Command{
	Use:   "explain <verdict-file>",
	Short: "Render explanations for previously produced verdicts",
	Long:  "Reads LineVerdict JSON records (one per line) and renders the deterministic explanation for each. With --enrich, a narrative stage rewrites the prose while the verdict itself stays untouched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "explain: read verdict file")
		}

		var enricher enrich.Client
		if explainEnrich {
			c, err := enrich.NewAnthropicClient(cfg.Enrich)
			if err != nil {
				return err
			}
			enricher = c
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		for dec.More() {
			var v model.LineVerdict
			if err := dec.Decode(&v); err != nil {
				return eris.Wrap(err, "explain: decode verdict")
			}

			exp := explain.Render(v)
			if enricher != nil {
				if enriched, err := enricher.Enrich(cmd.Context(), v); err == nil {
					exp = *enriched
				} else {
					// The deterministic rendering already stands; enrichment
					// failures are advisory.
					zap.L().Warn("explain: enrichment failed",
						zap.String("sku_id", v.SKUID),
						zap.Error(err),
					)
				}
			}

			if err := enc.Encode(exp); err != nil {
				return eris.Wrap(err, "explain: encode explanation")
			}
		}
		return nil
	},
}

func init() {
	explainCmd.Flags().BoolVar(&explainEnrich, "enrich", false, "rewrite prose via the narrative enrichment stage")
	rootCmd.AddCommand(explainCmd)
}
