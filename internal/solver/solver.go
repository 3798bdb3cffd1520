// Package solver searches a small fixed hypothesis space for the discount
// structure that best explains the gap between a reference price and the
// price actually paid. Hypotheses are explicit pure scoring functions
// evaluated in a fixed order; ties break on that order, never on map
// iteration, so identical inputs always select the identical hypothesis.
package solver

import (
	"math"

	"go.uber.org/zap"

	"github.com/venuelogic/linecheck/internal/config"
	"github.com/venuelogic/linecheck/internal/model"
)

// Label classifies the solver outcome before the verdict engine combines it
// with the rest of the line's evidence.
type Label string

const (
	LabelOK          Label = "ok_on_contract"
	LabelOffContract Label = "off_contract_discount"
	LabelUnmodelled  Label = "pricing_anomaly_unmodelled"
	LabelNoReference Label = "no_reference"
)

// Outcome is the solver's result for one line.
type Outcome struct {
	Label      Label
	Hypothesis *model.DiscountHypothesis
}

// candidate is one scored hypothesis; cost is residual plus a complexity
// penalty so simpler explanations win near-ties.
type candidate struct {
	hyp  model.DiscountHypothesis
	cost float64
}

// Solver evaluates discount hypotheses against configured tolerances.
type Solver struct {
	cfg config.SolverConfig
}

// New creates a Solver.
func New(cfg config.SolverConfig) *Solver {
	return &Solver{cfg: cfg}
}

// Complexity penalties, in currency units, applied to each hypothesis family.
const (
	penaltyPercent = 0.0
	penaltyFixed   = 0.1
	penaltyTiered  = 0.2
)

// Evaluate tests the hypothesis space for one line. expected and actual are
// unit prices in the same UOM; quantity is the printed line quantity. The
// category only biases which family is scored first for tie-breaking; it
// never changes a numeric computation. isNewSKU widens the residual
// tolerance for SKUs with no purchase history.
func (s *Solver) Evaluate(expected, actual, quantity float64, category string, isNewSKU bool) Outcome {
	if expected <= 0 || actual < 0 || quantity <= 0 {
		return Outcome{Label: LabelUnmodelled}
	}

	delta := (actual - expected) / expected
	tolerance := s.cfg.CategoryToleranceFor(category)
	if isNewSKU {
		tolerance += s.cfg.NewSKUTolBonus
	}

	// The none hypothesis is always scored last: any modelled discount that
	// fits at least as well wins the tie.
	var candidates []candidate
	for _, fam := range s.familyOrder(category) {
		if c, ok := fam(expected, actual, quantity); ok {
			candidates = append(candidates, c)
		}
	}
	candidates = append(candidates, s.scoreNone(expected, actual, quantity))

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.cost < best.cost {
			best = c
		}
	}

	zap.L().Debug("solver: hypothesis selected",
		zap.String("type", string(best.hyp.Type)),
		zap.Float64("implied_value", best.hyp.ImpliedValue),
		zap.Float64("residual", best.hyp.Residual),
	)

	return s.classify(best.hyp, delta, tolerance)
}

// familyOrder returns the hypothesis scorers in category-biased order.
// Spirits frequently carry volume-tiered deals, so that family is tried
// first; everything else starts with the flat percentage.
func (s *Solver) familyOrder(category string) []func(expected, actual, quantity float64) (candidate, bool) {
	if category == "spirits" {
		return []func(float64, float64, float64) (candidate, bool){
			s.scoreTiered, s.scorePercent, s.scoreFixed,
		}
	}
	return []func(float64, float64, float64) (candidate, bool){
		s.scorePercent, s.scoreFixed, s.scoreTiered,
	}
}

// classify turns the winning hypothesis into a label. A fitting hypothesis
// with the price below reference is an off-contract discount; a fitting none
// hypothesis is on-contract; anything else is unmodelled.
func (s *Solver) classify(best model.DiscountHypothesis, delta, tolerance float64) Outcome {
	hyp := best

	switch {
	case best.Type == model.HypothesisNone && best.Residual <= tolerance:
		return Outcome{Label: LabelOK, Hypothesis: &hyp}
	case delta < 0 && best.Type != model.HypothesisNone && best.Residual <= tolerance:
		return Outcome{Label: LabelOffContract, Hypothesis: &hyp}
	case delta < -s.cfg.LargeDiscountPct && best.Type == model.HypothesisPercent:
		// Deep off-grid discounts are still discounts, not noise.
		return Outcome{Label: LabelOffContract, Hypothesis: &hyp}
	default:
		return Outcome{Label: LabelUnmodelled, Hypothesis: &hyp}
	}
}

// scorePercent fits the discount to the nearest "round" percentage a supplier
// would actually offer: multiples of 5% up to 70%, refined to 1% steps inside
// the 45-50% band common on cask and spirits deals.
func (s *Solver) scorePercent(expected, actual, quantity float64) (candidate, bool) {
	discount := (expected - actual) / expected
	if discount <= 0 {
		return candidate{}, false
	}
	snapped := nearestRoundDiscount(discount)
	modelled := expected * (1 - snapped)
	residual := math.Abs(actual-modelled) * quantity

	hyp := model.DiscountHypothesis{
		Type:         model.HypothesisPercent,
		ImpliedValue: -discount,
		Residual:     roundPence(residual),
		Confidence:   confidence(residual, expected*quantity),
	}
	return candidate{hyp: hyp, cost: residual + penaltyPercent}, true
}

// scoreFixed fits a fixed-amount-off allowance snapped to the configured step
// (default 25p).
func (s *Solver) scoreFixed(expected, actual, quantity float64) (candidate, bool) {
	amountOff := expected - actual
	if amountOff <= 0 {
		return candidate{}, false
	}
	step := s.cfg.FixedStep
	if step <= 0 {
		step = 0.25
	}
	snapped := math.Round(amountOff/step) * step
	if snapped <= 0 {
		return candidate{}, false
	}
	residual := math.Abs(amountOff-snapped) * quantity

	hyp := model.DiscountHypothesis{
		Type:         model.HypothesisFixed,
		ImpliedValue: -roundPence(amountOff),
		Residual:     roundPence(residual),
		Confidence:   confidence(residual, expected*quantity),
	}
	return candidate{hyp: hyp, cost: residual + penaltyFixed}, true
}

// scoreTiered fits the highest quantity tier the line qualifies for.
func (s *Solver) scoreTiered(expected, actual, quantity float64) (candidate, bool) {
	var tier *config.QuantityTier
	for i := range s.cfg.Tiers {
		if quantity >= s.cfg.Tiers[i].MinQuantity {
			tier = &s.cfg.Tiers[i]
		}
	}
	if tier == nil {
		return candidate{}, false
	}
	modelled := expected * (1 - tier.DiscountPct)
	residual := math.Abs(actual-modelled) * quantity

	hyp := model.DiscountHypothesis{
		Type:         model.HypothesisTiered,
		ImpliedValue: -tier.DiscountPct,
		Residual:     roundPence(residual),
		Confidence:   confidence(residual, expected*quantity),
	}
	return candidate{hyp: hyp, cost: residual + penaltyTiered}, true
}

// scoreNone models "no discount at all"; its residual is the whole gap.
func (s *Solver) scoreNone(expected, actual, quantity float64) candidate {
	residual := math.Abs(expected-actual) * quantity
	hyp := model.DiscountHypothesis{
		Type:         model.HypothesisNone,
		ImpliedValue: 0,
		Residual:     roundPence(residual),
		Confidence:   confidence(residual, expected*quantity),
	}
	return candidate{hyp: hyp, cost: residual}
}

// roundDiscountGrid lists the discount magnitudes treated as "round". Order
// is ascending; nearestRoundDiscount scans it deterministically.
var roundDiscountGrid = buildDiscountGrid()

func buildDiscountGrid() []float64 {
	var grid []float64
	for pct := 5; pct <= 70; pct += 5 {
		grid = append(grid, float64(pct)/100)
	}
	// 1% refinement across the 45-50% band.
	for pct := 46; pct < 50; pct++ {
		if pct%5 != 0 {
			grid = append(grid, float64(pct)/100)
		}
	}
	return grid
}

func nearestRoundDiscount(discount float64) float64 {
	best := roundDiscountGrid[0]
	bestDist := math.Abs(discount - best)
	for _, g := range roundDiscountGrid[1:] {
		if d := math.Abs(discount - g); d < bestDist {
			best, bestDist = g, d
		}
	}
	return best
}

// confidence maps a residual relative to the line's expected value onto
// [0,1].
func confidence(residual, expectedValue float64) float64 {
	if expectedValue <= 0 {
		return 0
	}
	c := 1 - residual/expectedValue
	if c < 0 {
		return 0
	}
	return math.Round(c*1000) / 1000
}

func roundPence(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
