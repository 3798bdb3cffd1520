// Package verdict combines every upstream result for a line into exactly one
// terminal classification. Construction is pure: the same inputs always yield
// the same verdict and the same fingerprint, regardless of processing order.
package verdict

import (
	"math"

	"github.com/venuelogic/linecheck/internal/mathcheck"
	"github.com/venuelogic/linecheck/internal/model"
	"github.com/venuelogic/linecheck/internal/solver"
)

// Inputs carries everything the engine learned about one line.
type Inputs struct {
	Line      model.LineItemInput
	Canonical model.CanonicalQuantity
	Check     mathcheck.LineCheck

	// Expected is nil when no reference price resolved.
	Expected          *model.PriceSource
	ReferenceConflict bool

	Outcome        solver.Outcome
	UnusualHistory bool
}

// Create builds the terminal LineVerdict for a line. Exactly one verdict
// label is selected by fixed precedence: OCR suspicion and arithmetic errors
// first (they undermine every number downstream), then UOM mismatches, then
// reference conflicts, then discount hypotheses, then unusual-but-plausible
// history, then ok.
func Create(in Inputs) model.LineVerdict {
	flags := model.NewFlagSet()
	for _, f := range in.Check.Flags.Sorted() {
		flags.Add(f)
	}
	if !in.Canonical.Resolved() && in.Canonical.UOMKey != model.UOMFOC {
		flags.Add(model.FlagUnresolvedUOM)
	}
	if in.Expected == nil {
		flags.Add(model.FlagNoReferencePrice)
	}
	if in.Line.LineTotalRaw < 0 {
		flags.Add(model.FlagNegativeAdjustment)
	}

	nettPrice := 0.0
	if in.Line.Quantity > 0 {
		nettPrice = mathcheck.RoundPence(in.Line.LineTotalRaw / in.Line.Quantity)
	}

	v := model.LineVerdict{
		SKUID:             in.Line.SKUID,
		UOMKey:            in.Canonical.UOMKey,
		UnitSize:          in.Canonical.UnitSize,
		TotalBaseQuantity: in.Canonical.TotalBaseQuantity,
		Quantity:          in.Line.Quantity,
		UnitPriceRaw:      in.Line.UnitPriceRaw,
		NettPrice:         nettPrice,
		NettValue:         in.Line.LineTotalRaw,
		Date:              in.Line.Date,
		SupplierID:        in.Line.SupplierID,
		MathFlags:         flags.Sorted(),
		ReferenceConflict: in.ReferenceConflict,
		UnusualHistory:    in.UnusualHistory,
		Hypothesis:        in.Outcome.Hypothesis,
	}

	v.OCRError = suspectOCRError(in)
	v.UOMMismatch = uomMismatch(in)
	v.OffContract = in.Outcome.Label == solver.LabelOffContract

	v.Verdict = selectVerdict(v, flags)
	v.LineFingerprint = Fingerprint(v)
	return v
}

// selectVerdict applies the fixed precedence over the accumulated evidence.
// The switch over MathFlags is exhaustive: adding a flag without deciding its
// precedence here is a compile-visible omission in decisionRelevant.
func selectVerdict(v model.LineVerdict, flags model.FlagSet) model.Verdict {
	switch {
	case v.OCRError:
		return model.VerdictOCRErrorSuspected
	case flags.Has(model.FlagPriceIncoherent) || flags.Has(model.FlagVATIncoherent):
		return model.VerdictPriceIncoherent
	case v.UOMMismatch:
		return model.VerdictUOMMismatch
	case v.ReferenceConflict:
		return model.VerdictReferenceConflict
	case v.OffContract:
		return model.VerdictOffContractDiscount
	case v.UnusualHistory:
		return model.VerdictUnusualHistory
	default:
		return model.VerdictOK
	}
}

// decisionRelevant documents, exhaustively, how each MathFlag influences the
// verdict. Flags returning false still travel on the LineVerdict for the
// review UI but never select a label on their own.
func decisionRelevant(f model.MathFlag) bool {
	switch f {
	case model.FlagPriceIncoherent, model.FlagVATIncoherent:
		return true
	case model.FlagPackMismatch, model.FlagFOCLine, model.FlagUnresolvedUOM,
		model.FlagNoReferencePrice, model.FlagNegativeAdjustment:
		return false
	}
	return false
}

// uomMismatch fires when the resolved reference is quoted in a different unit
// family, or when the paid price is explained by case-vs-unit confusion
// (actual price times the pack ratio lands on the reference).
func uomMismatch(in Inputs) bool {
	if in.Expected == nil {
		return false
	}
	if in.Canonical.Resolved() && in.Expected.UOM != "" && in.Expected.UOM != in.Canonical.UOMKey {
		return true
	}
	return packRatioConfusion(in.Expected.Price, actualUnitPrice(in.Line), in.Canonical)
}

// packRatioConfusion checks whether the price gap disappears once the actual
// price is scaled by the pack size, the signature of a case price read as a
// unit price.
func packRatioConfusion(expected, actual float64, cq model.CanonicalQuantity) bool {
	if expected <= 0 || actual <= 0 || cq.UnitsPerPack <= 1 {
		return false
	}
	for _, ratio := range []float64{cq.UnitsPerPack, 1 / cq.UnitsPerPack} {
		scaled := actual * ratio
		if math.Abs(scaled-expected)/expected < 0.10 {
			return true
		}
	}
	return false
}

// suspectOCRError looks for the signature of a misread digit: the line is
// internally incoherent, and shifting the decimal point of the unit price by
// one place makes the arithmetic reconcile.
func suspectOCRError(in Inputs) bool {
	if !in.Check.Flags.Has(model.FlagPriceIncoherent) {
		return false
	}
	qty, total := in.Line.Quantity, in.Line.LineTotalRaw
	if qty <= 0 || total <= 0 {
		return false
	}
	for _, shifted := range []float64{in.Line.UnitPriceRaw * 10, in.Line.UnitPriceRaw / 10} {
		if shifted <= 0 {
			continue
		}
		if math.Abs(shifted*qty-total)/total < 0.01 {
			return true
		}
	}
	return false
}

func actualUnitPrice(line model.LineItemInput) float64 {
	if line.Quantity <= 0 {
		return 0
	}
	return line.LineTotalRaw / line.Quantity
}
