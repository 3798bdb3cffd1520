package model

import "time"

// UOM keys used by the canonicalizer. Volumes normalize to millilitres, masses
// to grams, count-only items to "each". Lines whose description yields no
// recognizable unit carry UOMUnresolved and must never be compared against a
// reference in a different unit family.
const (
	UOMMillilitre = "ml"
	UOMGram       = "g"
	UOMEach       = "ea"
	UOMFOC        = "foc"
	UOMUnresolved = "unresolved"
)

// LineItemInput is one invoice line as produced by the upstream
// OCR/normalization stage. It is never mutated by the engine.
type LineItemInput struct {
	SKUID        string  `json:"sku_id" yaml:"sku_id"`
	Description  string  `json:"description" yaml:"description"`
	Quantity     float64 `json:"quantity" yaml:"quantity"`
	UnitPriceRaw float64 `json:"unit_price_raw" yaml:"unit_price_raw"`
	LineTotalRaw float64 `json:"line_total_raw" yaml:"line_total_raw"`
	Date         string  `json:"date" yaml:"date"`
	SupplierID   string  `json:"supplier_id" yaml:"supplier_id"`
	Category     string  `json:"category,omitempty" yaml:"category,omitempty"`
}

// CanonicalQuantity is a line's quantity expressed in a normalized base unit
// after resolving pack/case notation.
type CanonicalQuantity struct {
	UOMKey            string  `json:"uom_key"`
	UnitSize          float64 `json:"unit_size"`
	TotalBaseQuantity float64 `json:"total_base_quantity"`
	Packs             float64 `json:"packs,omitempty"`
	UnitsPerPack      float64 `json:"units_per_pack,omitempty"`
}

// Resolved reports whether the canonicalizer found a usable unit.
func (c CanonicalQuantity) Resolved() bool {
	return c.UOMKey != "" && c.UOMKey != UOMUnresolved && c.UOMKey != UOMFOC
}

// ComparableWith reports whether two quantities share a base unit family.
// Unresolved quantities are never comparable.
func (c CanonicalQuantity) ComparableWith(other CanonicalQuantity) bool {
	return c.Resolved() && other.Resolved() && c.UOMKey == other.UOMKey
}

// PriceSource is a single independently observed reference price for a SKU.
// Sources are append-only observations; the ladder ranks them, it never
// discards or mutates them.
type PriceSource struct {
	SourceName  string    `json:"source_name"`
	Price       float64   `json:"price"`
	UOM         string    `json:"uom"`
	ObservedAt  time.Time `json:"observed_at"`
	ContentHash string    `json:"content_hash"`
}

// HypothesisType enumerates the discount models the solver can fit.
type HypothesisType string

const (
	HypothesisPercent HypothesisType = "percent"
	HypothesisFixed   HypothesisType = "fixed"
	HypothesisTiered  HypothesisType = "tiered"
	HypothesisNone    HypothesisType = "none"
)

// DiscountHypothesis is the best-fitting explanation for why an actual price
// differs from the resolved reference price. ImpliedValue is negative when the
// paid price sits below the reference (e.g. -0.478 for a 47.8% discount).
type DiscountHypothesis struct {
	Type         HypothesisType `json:"hypothesis_type"`
	ImpliedValue float64        `json:"implied_value"`
	Residual     float64        `json:"residual"`
	Confidence   float64        `json:"confidence"`
}
