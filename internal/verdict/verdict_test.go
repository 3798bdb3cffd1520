package verdict

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuelogic/linecheck/internal/mathcheck"
	"github.com/venuelogic/linecheck/internal/model"
	"github.com/venuelogic/linecheck/internal/solver"
	"github.com/venuelogic/linecheck/internal/units"
)

var hexFingerprint = regexp.MustCompile(`^[0-9a-f]{64}$`)

func baseInputs() Inputs {
	line := model.LineItemInput{
		SKUID:        "BEER001",
		Description:  "Lager 12x330ml",
		Quantity:     12,
		UnitPriceRaw: 1.10,
		LineTotalRaw: 13.20,
		Date:         "2026-03-14",
		SupplierID:   "SUP-01",
	}
	return Inputs{
		Line:      line,
		Canonical: units.Canonicalize(line.Quantity, line.Description),
		Check:     mathcheck.LineCheck{Valid: true, Flags: model.NewFlagSet()},
		Expected:  &model.PriceSource{SourceName: "contract_book", Price: 1.10, UOM: model.UOMMillilitre},
		Outcome: solver.Outcome{
			Label:      solver.LabelOK,
			Hypothesis: &model.DiscountHypothesis{Type: model.HypothesisNone},
		},
	}
}

func TestCreate_OK(t *testing.T) {
	v := Create(baseInputs())

	assert.Equal(t, model.VerdictOK, v.Verdict)
	assert.Empty(t, v.MathFlags)
	assert.InDelta(t, 1.10, v.NettPrice, 1e-9)
	assert.Regexp(t, hexFingerprint, v.LineFingerprint)
}

func TestCreate_PrecedenceOverridesDiscount(t *testing.T) {
	// An incoherent line with a plausible discount hypothesis must surface the
	// arithmetic problem, not the discount.
	in := baseInputs()
	flags := model.NewFlagSet()
	flags.Add(model.FlagPriceIncoherent)
	in.Check = mathcheck.LineCheck{Flags: flags}
	in.Outcome = solver.Outcome{
		Label:      solver.LabelOffContract,
		Hypothesis: &model.DiscountHypothesis{Type: model.HypothesisPercent, ImpliedValue: -0.2},
	}

	v := Create(in)
	assert.Equal(t, model.VerdictPriceIncoherent, v.Verdict)
	assert.True(t, v.OffContract, "the evidence still travels on the verdict")
}

func TestCreate_OCRSuspicionOutranksIncoherence(t *testing.T) {
	// Unit price 6.055 against total 60.55 at quantity 1: a shifted decimal
	// explains the incoherence exactly.
	in := baseInputs()
	in.Line.Quantity = 1
	in.Line.UnitPriceRaw = 6.055
	in.Line.LineTotalRaw = 60.55
	flags := model.NewFlagSet()
	flags.Add(model.FlagPriceIncoherent)
	in.Check = mathcheck.LineCheck{Flags: flags}

	v := Create(in)
	assert.True(t, v.OCRError)
	assert.Equal(t, model.VerdictOCRErrorSuspected, v.Verdict)
}

func TestCreate_UOMMismatchByFamily(t *testing.T) {
	in := baseInputs()
	in.Expected.UOM = model.UOMGram

	v := Create(in)
	assert.True(t, v.UOMMismatch)
	assert.Equal(t, model.VerdictUOMMismatch, v.Verdict)
}

func TestCreate_PackRatioConfusion(t *testing.T) {
	// Reference quotes the case price; the line pays per unit. 2.00 x 12 lands
	// on the 24.00 reference, the signature of case-vs-unit confusion.
	in := baseInputs()
	in.Line.UnitPriceRaw = 2.00
	in.Line.LineTotalRaw = 24.00
	in.Expected = &model.PriceSource{SourceName: "contract_book", Price: 24.00, UOM: model.UOMMillilitre}

	v := Create(in)
	assert.True(t, v.UOMMismatch)
	assert.Equal(t, model.VerdictUOMMismatch, v.Verdict)
}

func TestCreate_ReferenceConflictBeatsDiscount(t *testing.T) {
	in := baseInputs()
	in.ReferenceConflict = true
	in.Outcome.Label = solver.LabelOffContract

	v := Create(in)
	assert.Equal(t, model.VerdictReferenceConflict, v.Verdict)
}

func TestCreate_OffContract(t *testing.T) {
	in := baseInputs()
	in.Outcome = solver.Outcome{
		Label: solver.LabelOffContract,
		Hypothesis: &model.DiscountHypothesis{
			Type: model.HypothesisPercent, ImpliedValue: -0.4679, Residual: 0.13,
		},
	}

	v := Create(in)
	assert.Equal(t, model.VerdictOffContractDiscount, v.Verdict)
	require.NotNil(t, v.Hypothesis)
	assert.Equal(t, model.HypothesisPercent, v.Hypothesis.Type)
}

func TestCreate_UnusualHistory(t *testing.T) {
	in := baseInputs()
	in.UnusualHistory = true

	v := Create(in)
	assert.Equal(t, model.VerdictUnusualHistory, v.Verdict)
}

func TestCreate_AdvisoryFlagsDoNotChangeVerdict(t *testing.T) {
	in := baseInputs()
	in.Expected = nil
	in.Line.Description = "Sundry miscellany"
	in.Canonical = units.Canonicalize(in.Line.Quantity, in.Line.Description)

	v := Create(in)
	assert.Equal(t, model.VerdictOK, v.Verdict)
	assert.Contains(t, v.MathFlags, model.FlagNoReferencePrice)
	assert.Contains(t, v.MathFlags, model.FlagUnresolvedUOM)

	for _, f := range v.MathFlags {
		assert.False(t, decisionRelevant(f))
	}
}

func TestCreate_NegativeAdjustmentFlag(t *testing.T) {
	in := baseInputs()
	in.Line.LineTotalRaw = -5.00

	v := Create(in)
	assert.Contains(t, v.MathFlags, model.FlagNegativeAdjustment)
}

func TestFingerprint_Shape(t *testing.T) {
	v := Create(baseInputs())
	assert.Regexp(t, hexFingerprint, v.LineFingerprint)
}

func TestFingerprint_Idempotent(t *testing.T) {
	first := Create(baseInputs())
	for i := 0; i < 5; i++ {
		again := Create(baseInputs())
		assert.Equal(t, first.LineFingerprint, again.LineFingerprint)
	}
}

func TestFingerprint_SensitiveToSemanticFields(t *testing.T) {
	base := Create(baseInputs())

	in := baseInputs()
	in.Line.SKUID = "BEER002"
	assert.NotEqual(t, base.LineFingerprint, Create(in).LineFingerprint)

	in = baseInputs()
	in.Line.UnitPriceRaw = 1.11
	assert.NotEqual(t, base.LineFingerprint, Create(in).LineFingerprint)

	in = baseInputs()
	in.Line.Date = "2026-03-15"
	assert.NotEqual(t, base.LineFingerprint, Create(in).LineFingerprint)

	in = baseInputs()
	in.Line.SupplierID = "SUP-02"
	assert.NotEqual(t, base.LineFingerprint, Create(in).LineFingerprint)
}

func TestFingerprint_IgnoresAdvisoryEvidence(t *testing.T) {
	// Conflict and history signals are per-run context, not line identity.
	base := Create(baseInputs())

	in := baseInputs()
	in.ReferenceConflict = true
	in.UnusualHistory = true
	assert.Equal(t, base.LineFingerprint, Create(in).LineFingerprint)
}
