package model

import "sort"

// Verdict is the terminal classification of one invoice line.
type Verdict string

const (
	VerdictOK                  Verdict = "ok"
	VerdictOffContractDiscount Verdict = "off_contract_discount"
	VerdictPriceIncoherent     Verdict = "price_incoherent"
	VerdictReferenceConflict   Verdict = "reference_conflict"
	VerdictUOMMismatch         Verdict = "uom_mismatch"
	VerdictUnusualHistory      Verdict = "unusual_history"
	VerdictOCRErrorSuspected   Verdict = "ocr_error_suspected"
)

// MathFlag is a closed enum of per-line validator findings. A line can carry
// several flags at once; the verdict engine decides which are
// decision-relevant.
type MathFlag string

const (
	FlagPriceIncoherent    MathFlag = "PRICE_INCOHERENT"
	FlagVATIncoherent      MathFlag = "VAT_INCOHERENT"
	FlagPackMismatch       MathFlag = "PACK_MISMATCH"
	FlagFOCLine            MathFlag = "FOC_LINE"
	FlagUnresolvedUOM      MathFlag = "UNRESOLVED_UOM"
	FlagNoReferencePrice   MathFlag = "NO_REFERENCE_PRICE"
	FlagNegativeAdjustment MathFlag = "NEGATIVE_ADJUSTMENT"
)

// FlagSet is an order-independent collection of MathFlags.
type FlagSet map[MathFlag]struct{}

// NewFlagSet builds a set from the given flags.
func NewFlagSet(flags ...MathFlag) FlagSet {
	s := make(FlagSet, len(flags))
	for _, f := range flags {
		s.Add(f)
	}
	return s
}

// Add inserts a flag into the set.
func (s FlagSet) Add(f MathFlag) { s[f] = struct{}{} }

// Has reports whether the set contains f.
func (s FlagSet) Has(f MathFlag) bool {
	_, ok := s[f]
	return ok
}

// Sorted returns the flags in lexical order so that serialized verdicts are
// byte-identical across runs.
func (s FlagSet) Sorted() []MathFlag {
	out := make([]MathFlag, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LineVerdict is the terminal record for one processed line. It is created
// once per processing pass and never mutated; a re-run produces a new record
// carrying the same fingerprint for identical logical input.
type LineVerdict struct {
	SKUID             string              `json:"sku_id"`
	UOMKey            string              `json:"uom_key"`
	UnitSize          float64             `json:"unit_size"`
	TotalBaseQuantity float64             `json:"total_base_quantity"`
	Quantity          float64             `json:"quantity"`
	UnitPriceRaw      float64             `json:"unit_price_raw"`
	NettPrice         float64             `json:"nett_price"`
	NettValue         float64             `json:"nett_value"`
	Date              string              `json:"date"`
	SupplierID        string              `json:"supplier_id"`
	MathFlags         []MathFlag          `json:"math_flags,omitempty"`
	ReferenceConflict bool                `json:"reference_conflict"`
	UOMMismatch       bool                `json:"uom_mismatch"`
	OffContract       bool                `json:"off_contract"`
	UnusualHistory    bool                `json:"unusual_history"`
	OCRError          bool                `json:"ocr_error"`
	Hypothesis        *DiscountHypothesis `json:"discount_hypothesis,omitempty"`
	Verdict           Verdict             `json:"verdict"`
	LineFingerprint   string              `json:"line_fingerprint"`
}

// HasFlag reports whether the verdict carries the given flag.
func (v LineVerdict) HasFlag(f MathFlag) bool {
	for _, have := range v.MathFlags {
		if have == f {
			return true
		}
	}
	return false
}

// ModelIDDeterministic is the ModelID carried by every explanation produced by
// the template renderer. Enrichment stages report their real model ID instead.
const ModelIDDeterministic = "deterministic"

// SuggestedAction is one reviewer follow-up attached to an explanation.
type SuggestedAction struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// Explanation is a rendered, human-readable account of a verdict. It has no
// lifecycle of its own; it is derived from a LineVerdict.
type Explanation struct {
	ModelID          string            `json:"model_id"`
	Headline         string            `json:"headline"`
	Text             string            `json:"explanation"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
	EngineVerdict    Verdict           `json:"engine_verdict"`
	EngineFactsHash  string            `json:"engine_facts_hash"`
	LineFingerprint  string            `json:"line_fingerprint"`
}
