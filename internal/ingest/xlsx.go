package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Contract-book column layout. Header row is required; columns are matched by
// name so reordered workbooks still load.
var contractBookColumns = []string{"sku_id", "source_name", "price", "uom", "observed_at", "content_hash"}

// LoadContractBook reads price source observations from an XLSX contract
// book. The first sheet is used; the first row must be a header naming at
// least sku_id, source_name and price.
func LoadContractBook(path string) ([]SourceRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open contract book")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: contract book has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.New("ingest: contract book has no data rows")
	}

	idx, err := headerIndex(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var rows []SourceRow
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		get := func(col string) string {
			j, ok := idx[col]
			if !ok || j >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[j])
		}
		if get("sku_id") == "" {
			continue // blank/padding row
		}
		price, err := strconv.ParseFloat(get("price"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: contract book row %d price", i+2)
		}
		rows = append(rows, SourceRow{
			SKUID:       get("sku_id"),
			SourceName:  get("source_name"),
			Price:       price,
			UOM:         get("uom"),
			ObservedAt:  get("observed_at"),
			ContentHash: get("content_hash"),
		})
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"sku_id", "source_name", "price"} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Errorf("ingest: contract book missing %q column", required)
		}
	}
	return idx, nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
