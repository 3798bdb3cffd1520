// Package ingest loads batch inputs for the engine: line item files produced
// by the upstream normalization stage, and contract-book workbooks that seed
// the per-SKU price ladders. This is driver-side plumbing; the engine itself
// never touches a file.
package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/venuelogic/linecheck/internal/config"
	"github.com/venuelogic/linecheck/internal/ladder"
	"github.com/venuelogic/linecheck/internal/model"
)

// BatchFile is the on-disk shape of a batch: the lines plus optional inline
// price observations for SKUs not covered by a contract book.
type BatchFile struct {
	Lines   []model.LineItemInput `json:"lines" yaml:"lines"`
	Sources []SourceRow           `json:"price_sources,omitempty" yaml:"price_sources,omitempty"`
}

// SourceRow is one reference price observation keyed by SKU.
type SourceRow struct {
	SKUID       string  `json:"sku_id" yaml:"sku_id"`
	SourceName  string  `json:"source_name" yaml:"source_name"`
	Price       float64 `json:"price" yaml:"price"`
	UOM         string  `json:"uom" yaml:"uom"`
	ObservedAt  string  `json:"observed_at" yaml:"observed_at"`
	ContentHash string  `json:"content_hash" yaml:"content_hash"`
}

// LoadBatchFile reads a batch from a YAML or JSON file, chosen by extension.
func LoadBatchFile(path string) (*BatchFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read batch file")
	}

	var batch BatchFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &batch); err != nil {
			return nil, eris.Wrap(err, "ingest: parse yaml batch")
		}
	case ".json":
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, eris.Wrap(err, "ingest: parse json batch")
		}
	default:
		return nil, eris.Errorf("ingest: unsupported batch format %q", filepath.Ext(path))
	}

	return &batch, nil
}

// BuildLadders seeds one ladder per SKU from the given observations. Rows
// with an unparseable timestamp are rejected rather than silently dated.
func BuildLadders(rows []SourceRow, cfg *config.Config) (map[string]*ladder.Ladder, error) {
	ladders := make(map[string]*ladder.Ladder)
	for _, row := range rows {
		if strings.TrimSpace(row.SKUID) == "" {
			return nil, eris.New("ingest: price source row missing sku_id")
		}
		observedAt, err := parseObservedAt(row.ObservedAt)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: price source for %s", row.SKUID)
		}
		lad, ok := ladders[row.SKUID]
		if !ok {
			lad = ladder.New(row.SKUID, cfg.Ladder, cfg.Tolerance.ReferenceConflictThreshold)
			ladders[row.SKUID] = lad
		}
		lad.Add(row.SourceName, row.Price, row.UOM, observedAt, row.ContentHash)
	}
	return ladders, nil
}

func parseObservedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unparseable observed_at %q", s)
}
