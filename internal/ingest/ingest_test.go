package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/venuelogic/linecheck/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBatchFile_YAML(t *testing.T) {
	path := writeFile(t, "batch.yaml", `
lines:
  - sku_id: TIA001
    description: "TIA MARIA 70CL TIA001"
    quantity: 1
    unit_price_raw: 60.55
    line_total_raw: 32.22
    date: "2026-03-14"
    supplier_id: SUP-01
    category: spirits
price_sources:
  - sku_id: TIA001
    source_name: contract_book
    price: 60.55
    uom: ml
    observed_at: "2026-03-01"
`)

	batch, err := LoadBatchFile(path)
	require.NoError(t, err)
	require.Len(t, batch.Lines, 1)
	assert.Equal(t, "TIA001", batch.Lines[0].SKUID)
	assert.InDelta(t, 60.55, batch.Lines[0].UnitPriceRaw, 1e-9)
	assert.InDelta(t, 32.22, batch.Lines[0].LineTotalRaw, 1e-9)
	require.Len(t, batch.Sources, 1)
	assert.Equal(t, "contract_book", batch.Sources[0].SourceName)
}

func TestLoadBatchFile_JSON(t *testing.T) {
	path := writeFile(t, "batch.json", `{
  "lines": [
    {"sku_id": "BEER001", "description": "Lager 12x330ml", "quantity": 12,
     "unit_price_raw": 1.10, "line_total_raw": 13.20, "supplier_id": "SUP-01"}
  ]
}`)

	batch, err := LoadBatchFile(path)
	require.NoError(t, err)
	require.Len(t, batch.Lines, 1)
	assert.Equal(t, "BEER001", batch.Lines[0].SKUID)
}

func TestLoadBatchFile_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "batch.csv", "sku_id\n")
	_, err := LoadBatchFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported batch format")
}

func TestBuildLadders(t *testing.T) {
	cfg := config.Default()
	rows := []SourceRow{
		{SKUID: "BEER001", SourceName: "supplier_master", Price: 36.50, UOM: "ml", ObservedAt: "2026-03-10"},
		{SKUID: "BEER001", SourceName: "contract_book", Price: 33.00, UOM: "ml", ObservedAt: "2026-03-01"},
		{SKUID: "WINE002", SourceName: "contract_book", Price: 8.40, UOM: "ml", ObservedAt: "2026-03-01T09:30:00Z"},
	}

	ladders, err := BuildLadders(rows, cfg)
	require.NoError(t, err)
	require.Len(t, ladders, 2)

	src, err := ladders["BEER001"].ResolveExpectedPrice()
	require.NoError(t, err)
	assert.Equal(t, "contract_book", src.SourceName)
	assert.InDelta(t, 33.00, src.Price, 1e-9)
}

func TestBuildLadders_RejectsBadRows(t *testing.T) {
	cfg := config.Default()

	_, err := BuildLadders([]SourceRow{{SourceName: "contract_book", Price: 1}}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing sku_id")

	_, err = BuildLadders([]SourceRow{{SKUID: "X1", SourceName: "contract_book", Price: 1, ObservedAt: "14/03/2026"}}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable observed_at")
}

func createContractBook(t *testing.T, header []string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Prices")
	require.NoError(t, err)

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}

	path := filepath.Join(t.TempDir(), "contract_book.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadContractBook(t *testing.T) {
	path := createContractBook(t,
		[]string{"sku_id", "source_name", "price", "uom", "observed_at"},
		[][]string{
			{"TIA001", "contract_book", "60.55", "ml", "2026-03-01"},
			{"", "", "", "", ""},
			{"BEER001", "contract_book", "33.00", "ml", "2026-03-01"},
		},
	)

	rows, err := LoadContractBook(path)
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank padding rows are skipped")
	assert.Equal(t, "TIA001", rows[0].SKUID)
	assert.InDelta(t, 60.55, rows[0].Price, 1e-9)
	assert.Equal(t, "2026-03-01", rows[0].ObservedAt)
}

func TestLoadContractBook_ReorderedColumns(t *testing.T) {
	path := createContractBook(t,
		[]string{"price", "sku_id", "source_name"},
		[][]string{{"12.50", "GIN003", "supplier_master"}},
	)

	rows, err := LoadContractBook(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "GIN003", rows[0].SKUID)
	assert.InDelta(t, 12.50, rows[0].Price, 1e-9)
}

func TestLoadContractBook_MissingRequiredColumn(t *testing.T) {
	path := createContractBook(t,
		[]string{"sku_id", "price"},
		[][]string{{"GIN003", "12.50"}},
	)

	_, err := LoadContractBook(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_name")
}

func TestLoadContractBook_BadPrice(t *testing.T) {
	path := createContractBook(t,
		[]string{"sku_id", "source_name", "price"},
		[][]string{{"GIN003", "contract_book", "twelve"}},
	)

	_, err := LoadContractBook(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")
}
