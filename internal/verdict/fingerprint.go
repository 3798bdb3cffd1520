package verdict

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/venuelogic/linecheck/internal/model"
)

// RulesetID and EngineVersion pin the decision rules a fingerprint was
// computed under. Bumping either deliberately changes every fingerprint.
const (
	RulesetID     = "default"
	EngineVersion = "1.0.0"
)

// Fingerprint digests the semantically meaningful fields of a line: sku,
// canonical quantity, prices, date and supplier. Processing order, run IDs
// and any other per-run metadata are explicitly excluded, so identical
// logical lines always fingerprint identically and re-runs can be upserted
// by fingerprint without creating duplicates.
func Fingerprint(v model.LineVerdict) string {
	fields := []string{
		v.SKUID,
		formatNumber(v.Quantity),
		v.UOMKey,
		formatNumber(v.UnitPriceRaw),
		formatNumber(v.NettPrice),
		formatNumber(v.NettValue),
		v.Date,
		v.SupplierID,
		RulesetID,
		EngineVersion,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

// formatNumber renders a float deterministically for fingerprinting.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
