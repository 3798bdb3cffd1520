// Package engine runs invoice lines through canonicalization, validation,
// reference resolution, discount solving and verdict construction. Lines are
// stateless and embarrassingly parallel; the only shared state is the
// read-only price ladder per SKU.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/venuelogic/linecheck/internal/config"
	"github.com/venuelogic/linecheck/internal/explain"
	"github.com/venuelogic/linecheck/internal/ladder"
	"github.com/venuelogic/linecheck/internal/mathcheck"
	"github.com/venuelogic/linecheck/internal/model"
	"github.com/venuelogic/linecheck/internal/solver"
	"github.com/venuelogic/linecheck/internal/units"
	"github.com/venuelogic/linecheck/internal/verdict"
)

// Engine evaluates invoice lines against reference prices.
type Engine struct {
	cfg       *config.Config
	validator *mathcheck.Validator
	solver    *solver.Solver
}

// New creates an Engine from configuration.
func New(cfg *config.Config) *Engine {
	return &Engine{
		cfg:       cfg,
		validator: mathcheck.New(cfg.Tolerance),
		solver:    solver.New(cfg.Solver),
	}
}

// Batch is one processing request: the lines plus, per SKU, the reference
// price ladder seeded by the caller. Ladders must not be mutated during a
// run.
type Batch struct {
	Lines   []model.LineItemInput
	Ladders map[string]*ladder.Ladder
}

// LineResult is the terminal outcome for one line. Either Verdict is set, or
// Err explains why the line was structurally unprocessable. One line's error
// never aborts the batch.
type LineResult struct {
	Verdict     *model.LineVerdict `json:"verdict,omitempty"`
	Explanation *model.Explanation `json:"explanation,omitempty"`
	Err         error              `json:"-"`
	ErrText     string             `json:"error,omitempty"`
}

// Report summarizes a batch run.
type Report struct {
	RunID      string                `json:"run_id"`
	Lines      int                   `json:"lines"`
	Failed     int                   `json:"failed"`
	ByVerdict  map[model.Verdict]int `json:"by_verdict"`
	DurationMS int64                 `json:"duration_ms"`
}

// ProcessBatch evaluates every line, fanning out across workers when
// configured. Results are returned in input order; no line's verdict depends
// on another line's verdict, so no synchronization beyond collection is
// needed.
func (e *Engine) ProcessBatch(ctx context.Context, batch Batch) ([]LineResult, Report) {
	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("engine: batch started",
		zap.Int("lines", len(batch.Lines)),
		zap.Int("concurrency", e.cfg.Engine.MaxConcurrentLines),
	)

	results := make([]LineResult, len(batch.Lines))

	concurrency := e.cfg.Engine.MaxConcurrentLines
	if concurrency < 1 {
		concurrency = 1
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, line := range batch.Lines {
		i, line := i, line
		g.Go(func() error {
			results[i] = e.ProcessLine(line, batch.Ladders[line.SKUID])
			return nil
		})
	}
	// Workers only record per-line outcomes; they never return errors.
	_ = g.Wait()

	report := Report{
		RunID:     runID,
		Lines:     len(batch.Lines),
		ByVerdict: make(map[model.Verdict]int),
	}
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
			continue
		}
		report.ByVerdict[r.Verdict.Verdict]++
	}
	report.DurationMS = time.Since(start).Milliseconds()

	log.Info("engine: batch complete",
		zap.Int("lines", report.Lines),
		zap.Int("failed", report.Failed),
		zap.Int64("duration_ms", report.DurationMS),
	)
	return results, report
}

// ProcessLine runs the full per-line pipeline. The ladder may be nil when no
// reference prices exist for the SKU; the verdict then degrades to a neutral
// label carrying NO_REFERENCE_PRICE rather than guessing.
func (e *Engine) ProcessLine(line model.LineItemInput, lad *ladder.Ladder) LineResult {
	if err := validateStructure(line); err != nil {
		return LineResult{Err: err, ErrText: err.Error()}
	}

	cq := units.Canonicalize(line.Quantity, line.Description)
	check := e.validator.ValidateLine(line.UnitPriceRaw, line.Quantity, line.LineTotalRaw, line.Description, cq)

	category := line.Category
	if category == "" {
		category = units.Describe(line.Description).Category
	}

	in := verdict.Inputs{
		Line:      line,
		Canonical: cq,
		Check:     check,
	}

	if lad != nil {
		if expected, err := lad.ResolveExpectedPrice(); err == nil {
			in.Expected = &expected
			conflict, _ := lad.CheckReferenceConflict()
			in.ReferenceConflict = conflict

			in.Outcome = e.evaluateDiscount(line, cq, expected, category)
			in.UnusualHistory = unusualHistory(in.Outcome, expected)
		}
	}

	v := verdict.Create(in)
	exp := explain.Render(v)
	return LineResult{Verdict: &v, Explanation: &exp}
}

// evaluateDiscount runs the solver against the resolved reference unless the
// line's UOM is incomparable with the reference observation.
func (e *Engine) evaluateDiscount(line model.LineItemInput, cq model.CanonicalQuantity, expected model.PriceSource, category string) solver.Outcome {
	if !cq.Resolved() {
		return solver.Outcome{Label: solver.LabelNoReference}
	}
	if expected.UOM != "" && expected.UOM != cq.UOMKey {
		return solver.Outcome{Label: solver.LabelNoReference}
	}
	if line.Quantity <= 0 {
		return solver.Outcome{Label: solver.LabelNoReference}
	}
	actual := line.LineTotalRaw / line.Quantity
	return e.solver.Evaluate(expected.Price, actual, line.Quantity, category, false)
}

// unusualHistory marks lines whose only evidence is an unmodelled gap against
// venue purchase history: plausible, but worth a reviewer's glance.
func unusualHistory(outcome solver.Outcome, expected model.PriceSource) bool {
	return outcome.Label == solver.LabelUnmodelled &&
		strings.HasPrefix(expected.SourceName, "venue_memory")
}

// validateStructure rejects lines missing required identifiers. This is the
// only fatal per-line condition; it is reported, never thrown batch-wide.
func validateStructure(line model.LineItemInput) error {
	if strings.TrimSpace(line.SKUID) == "" {
		return eris.Wrap(mathcheck.ErrStructuralInvalid, "missing sku_id")
	}
	if strings.TrimSpace(line.SupplierID) == "" {
		return eris.Wrap(mathcheck.ErrStructuralInvalid, "missing supplier_id")
	}
	if line.Quantity < 0 {
		return eris.Wrap(mathcheck.ErrStructuralInvalid, "negative quantity")
	}
	return nil
}
