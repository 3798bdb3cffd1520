// Package explain renders a LineVerdict into a fixed, template-based
// human-readable explanation. The renderer is a pure function: no network,
// no randomness, no wall clock, so the same verdict always yields the same
// text, byte for byte.
package explain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/venuelogic/linecheck/internal/model"
	"github.com/venuelogic/linecheck/internal/verdict"
)

// printer renders currency and percentages in en-GB conventions. A single
// shared printer is safe: message.Printer is stateless for Sprintf.
var printer = message.NewPrinter(language.BritishEnglish)

// Render produces the deterministic explanation for a verdict. ModelID is
// always the "deterministic" constant on this path; enrichment stages that
// replace the text report their real model instead.
func Render(v model.LineVerdict) model.Explanation {
	headline, text, actions := templates(v)
	return model.Explanation{
		ModelID:          model.ModelIDDeterministic,
		Headline:         headline,
		Text:             text,
		SuggestedActions: actions,
		EngineVerdict:    v.Verdict,
		EngineFactsHash:  FactsHash(v),
		LineFingerprint:  v.LineFingerprint,
	}
}

// FactsHash digests the verdict facts an explanation was derived from, so
// reviewers can detect a narrative that drifted from the engine's decision.
func FactsHash(v model.LineVerdict) string {
	var hyp, implied, residual string
	if v.Hypothesis != nil {
		hyp = string(v.Hypothesis.Type)
		implied = fmt.Sprintf("%.6f", v.Hypothesis.ImpliedValue)
		residual = fmt.Sprintf("%.2f", v.Hypothesis.Residual)
	}
	facts := strings.Join([]string{
		string(v.Verdict), hyp, implied, residual,
		v.SKUID, v.SupplierID, verdict.EngineVersion,
	}, "|")
	sum := sha256.Sum256([]byte(facts))
	return hex.EncodeToString(sum[:])
}

func templates(v model.LineVerdict) (string, string, []model.SuggestedAction) {
	switch v.Verdict {
	case model.VerdictPriceIncoherent:
		diff := ""
		if v.Quantity > 0 {
			diff = printer.Sprintf(" Difference: £%.2f.", math.Abs(v.UnitPriceRaw*v.Quantity-v.NettValue))
		}
		return "Mathematical inconsistency detected",
			printer.Sprintf("Line total for %s does not match unit price × quantity.%s", v.SKUID, diff),
			[]model.SuggestedAction{
				{Label: "Review OCR accuracy", Reason: "Check if numbers were misread"},
				{Label: "Verify line totals", Reason: "Confirm manual calculations"},
			}

	case model.VerdictReferenceConflict:
		return "Conflicting price references",
			printer.Sprintf("Independent price sources disagree for %s. Manual review required.", v.SKUID),
			[]model.SuggestedAction{
				{Label: "Check contract terms", Reason: "Verify current pricing agreement"},
				{Label: "Contact supplier", Reason: "Clarify pricing discrepancy"},
			}

	case model.VerdictUOMMismatch:
		return "Unit of measure confusion suspected",
			printer.Sprintf("Price difference for %s may be due to pack size confusion.", v.SKUID),
			[]model.SuggestedAction{
				{Label: "Verify pack sizes", Reason: "Check if case vs unit pricing"},
				{Label: "Update UOM mapping", Reason: "Correct unit definitions"},
			}

	case model.VerdictOffContractDiscount:
		pct := 0.0
		if v.Hypothesis != nil {
			pct = math.Abs(v.Hypothesis.ImpliedValue) * 100
		}
		return printer.Sprintf("Off-contract discount detected (%.1f%%)", pct),
			printer.Sprintf("Price for %s is %.1f%% below the resolved reference.", v.SKUID, pct),
			[]model.SuggestedAction{
				{Label: "Verify discount approval", Reason: "Check if discount is authorised"},
				{Label: "Update contract", Reason: "Record new pricing terms"},
			}

	case model.VerdictUnusualHistory:
		return "Unusual pricing vs history",
			printer.Sprintf("Price for %s differs significantly from historical patterns.", v.SKUID),
			[]model.SuggestedAction{
				{Label: "Review price change", Reason: "Check if change is expected"},
				{Label: "Update price history", Reason: "Record new baseline"},
			}

	case model.VerdictOCRErrorSuspected:
		return "OCR error suspected",
			printer.Sprintf("Numbers for %s look misread; a decimal shift reconciles the arithmetic.", v.SKUID),
			[]model.SuggestedAction{
				{Label: "Review original document", Reason: "Check image quality and clarity"},
				{Label: "Re-process with OCR", Reason: "Try alternative OCR settings"},
			}

	case model.VerdictOK:
		if v.HasFlag(model.FlagNoReferencePrice) {
			return "No reference price available",
				printer.Sprintf("No price source covers %s; contract compliance could not be evaluated.", v.SKUID),
				[]model.SuggestedAction{
					{Label: "Add contract price", Reason: "Enable off-contract detection for this SKU"},
				}
		}
		return "Price within contract terms",
			printer.Sprintf("Price for %s matches expected contract pricing.", v.SKUID),
			[]model.SuggestedAction{
				{Label: "No action required", Reason: "Price is acceptable"},
			}
	}

	// Unknown labels cannot occur through Create; render something inert
	// rather than guessing.
	return "Requires manual review",
		printer.Sprintf("Line %s needs human judgement.", v.SKUID),
		[]model.SuggestedAction{
			{Label: "Review pricing logic", Reason: "Apply business rules manually"},
		}
}
