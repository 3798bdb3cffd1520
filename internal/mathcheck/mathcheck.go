// Package mathcheck validates the internal arithmetic of invoice lines and
// invoice-level VAT/subtotal triples. All comparisons work on banker's-rounded
// pence with a tolerance that scales with the number of rounding operations
// involved, so hundreds of independently rounded lines never produce false
// incoherence flags.
package mathcheck

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/venuelogic/linecheck/internal/config"
	"github.com/venuelogic/linecheck/internal/model"
	"github.com/venuelogic/linecheck/internal/units"
)

// Typed validation failures per the engine's error taxonomy. These are
// recoverable at line level; callers attach them to the line's verdict and
// keep processing the batch.
var (
	ErrVATIncoherent     = eris.New("VAT_INCOHERENT: subtotal, VAT and total do not reconcile")
	ErrPriceIncoherent   = eris.New("PRICE_INCOHERENT: unit price x quantity does not reconcile with line total")
	ErrStructuralInvalid = eris.New("structurally invalid line: missing required identifiers")
)

// largeDiscountPct and largeDiscountAbs guard the coherence check against
// flagging obviously intentional discounts as arithmetic errors; the discount
// solver owns those lines.
const (
	largeDiscountPct = 0.30
	largeDiscountAbs = 10.0
)

// LineCheck is the outcome of validating one line's arithmetic.
type LineCheck struct {
	Valid         bool
	Flags         model.FlagSet
	ExpectedTotal float64
	Difference    float64
}

// Validator checks line and invoice arithmetic against configured tolerances.
type Validator struct {
	tol config.ToleranceConfig
}

// New creates a Validator.
func New(tol config.ToleranceConfig) *Validator {
	return &Validator{tol: tol}
}

// RoundPence applies banker's rounding to two decimal places.
func RoundPence(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// ValidateLine checks that unit price x quantity reconciles with the line
// total, and that the printed quantity is consistent with any parsed pack
// descriptor. Flags accumulate; a line can be simultaneously incoherent and
// pack-mismatched.
func (va *Validator) ValidateLine(unitPrice, quantity, lineTotal float64, description string, cq model.CanonicalQuantity) LineCheck {
	check := LineCheck{Flags: model.NewFlagSet()}

	expected := RoundPence(unitPrice * quantity)
	actual := RoundPence(lineTotal)
	check.ExpectedTotal = expected
	check.Difference = RoundPence(math.Abs(expected - actual))

	// FOC lines are coherent by definition: nothing was charged.
	if lineTotal == 0 && (unitPrice == 0 || units.IsFOC(description)) {
		check.Flags.Add(model.FlagFOCLine)
		check.Valid = true
		return check
	}

	absDiff := math.Abs(expected - actual)
	pctDiff := math.Inf(1)
	if actual != 0 {
		pctDiff = absDiff / math.Abs(actual)
	}

	// Two roundings contribute to a single line: the printed unit price and
	// the printed total.
	lineTol := va.tol.PennyTolerance * 2

	intentionalDiscount := pctDiff > largeDiscountPct && actual < expected && absDiff > largeDiscountAbs
	if !intentionalDiscount && absDiff > lineTol && pctDiff > va.tol.PriceTolerancePct {
		check.Flags.Add(model.FlagPriceIncoherent)
	}

	if packMismatch(quantity, cq, va.tol.QuantityTolerance) {
		check.Flags.Add(model.FlagPackMismatch)
	}

	check.Valid = !check.Flags.Has(model.FlagPriceIncoherent) && !check.Flags.Has(model.FlagPackMismatch)
	return check
}

// packMismatch reports whether the printed quantity is not a whole number of
// packs for a multi-unit pack descriptor.
func packMismatch(quantity float64, cq model.CanonicalQuantity, qtyTol float64) bool {
	if cq.UnitsPerPack <= 1 {
		return false
	}
	rem := math.Mod(quantity, cq.UnitsPerPack)
	return rem > qtyTol && cq.UnitsPerPack-rem > qtyTol
}

// CheckVAT validates the invoice-level subtotal/VAT/total triple. vatRate is a
// fraction (0.20 for 20%). numLines is the count of contributing lines; each
// carries an independent rounding so the tolerance scales with it. A failure
// is returned as a descriptive error wrapping ErrVATIncoherent.
func (va *Validator) CheckVAT(subtotal, vatAmount, vatRate, invoiceTotal float64, numLines int) error {
	if numLines < 1 {
		numLines = 1
	}
	tol := va.tol.PennyTolerance * float64(numLines+1)

	if vatRate > 0 {
		expectedVAT := RoundPence(subtotal * vatRate)
		if math.Abs(expectedVAT-RoundPence(vatAmount)) > tol {
			return eris.Wrapf(ErrVATIncoherent, "expected VAT %.2f at rate %.2f, got %.2f", expectedVAT, vatRate, vatAmount)
		}
	}

	expectedTotal := RoundPence(subtotal + vatAmount)
	if math.Abs(expectedTotal-RoundPence(invoiceTotal)) > tol {
		return eris.Wrapf(ErrVATIncoherent, "subtotal %.2f + VAT %.2f = %.2f, invoice total %.2f", subtotal, vatAmount, expectedTotal, invoiceTotal)
	}

	return nil
}

// CheckNegativeAdjustments scans line totals for negative adjustments, which
// need reviewer attention before any automated verdict is trustworthy.
func CheckNegativeAdjustments(lineTotals []float64) (model.MathFlag, bool) {
	for _, t := range lineTotals {
		if t < 0 {
			return model.FlagNegativeAdjustment, true
		}
	}
	return "", false
}
