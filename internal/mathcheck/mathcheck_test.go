package mathcheck

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuelogic/linecheck/internal/config"
	"github.com/venuelogic/linecheck/internal/model"
	"github.com/venuelogic/linecheck/internal/units"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	return New(config.Default().Tolerance)
}

func TestRoundPence_BankersRounding(t *testing.T) {
	// Half-pence cases round to the even pence.
	assert.InDelta(t, 0.12, RoundPence(0.125), 1e-12)
	assert.InDelta(t, 0.14, RoundPence(0.135), 1e-12)
	assert.InDelta(t, 2.50, RoundPence(2.4999999), 1e-12)
	assert.InDelta(t, -0.12, RoundPence(-0.125), 1e-12)
}

func TestValidateLine_CoherentLine(t *testing.T) {
	va := newValidator(t)
	cq := units.Canonicalize(12, "Lager 12x330ml")

	check := va.ValidateLine(1.10, 12, 13.20, "Lager 12x330ml", cq)
	assert.True(t, check.Valid)
	assert.Empty(t, check.Flags.Sorted())
	assert.InDelta(t, 13.20, check.ExpectedTotal, 1e-9)
	assert.Zero(t, check.Difference)
}

func TestValidateLine_Incoherent(t *testing.T) {
	va := newValidator(t)
	cq := units.Canonicalize(10, "House Wine 75cl")

	// 10 x 8.50 = 85.00, printed 87.40: off by 2.40 and 2.7%.
	check := va.ValidateLine(8.50, 10, 87.40, "House Wine 75cl", cq)
	assert.False(t, check.Valid)
	assert.True(t, check.Flags.Has(model.FlagPriceIncoherent))
	assert.InDelta(t, 2.40, check.Difference, 1e-9)
}

func TestValidateLine_SubPennyDriftWithinTolerance(t *testing.T) {
	va := newValidator(t)
	cq := units.Canonicalize(3, "Cordial 1l")

	// 3 x 1.333 = 3.999, printed 4.00. Rounding drift, not an error.
	check := va.ValidateLine(1.333, 3, 4.00, "Cordial 1l", cq)
	assert.True(t, check.Valid)
}

func TestValidateLine_RoundingStorm(t *testing.T) {
	// 49 lines whose unit prices all carry awkward third decimals. Every
	// printed total is the correctly rounded product; none may flag.
	va := newValidator(t)

	for i := 1; i <= 49; i++ {
		unitPrice := 0.335 + float64(i)*0.015
		qty := float64(1 + i%7)
		printed := RoundPence(unitPrice * qty)

		desc := fmt.Sprintf("Mixed stock line %d 330ml", i)
		cq := units.Canonicalize(qty, desc)
		check := va.ValidateLine(unitPrice, qty, printed, desc, cq)
		require.True(t, check.Valid, "line %d: unit %.3f qty %.0f", i, unitPrice, qty)
		require.False(t, check.Flags.Has(model.FlagPriceIncoherent), "line %d", i)
	}
}

func TestValidateLine_FOC(t *testing.T) {
	va := newValidator(t)
	cq := units.Canonicalize(2, "Lime cordial FOC")

	check := va.ValidateLine(4.25, 2, 0, "Lime cordial FOC", cq)
	assert.True(t, check.Valid)
	assert.True(t, check.Flags.Has(model.FlagFOCLine))
	assert.False(t, check.Flags.Has(model.FlagPriceIncoherent))

	// Zero price, zero total is also free of charge even without the wording.
	check = va.ValidateLine(0, 2, 0, "Sample stock", units.Canonicalize(2, "Sample stock"))
	assert.True(t, check.Flags.Has(model.FlagFOCLine))
}

func TestValidateLine_LargeIntentionalDiscountPassesThrough(t *testing.T) {
	va := newValidator(t)
	cq := units.Canonicalize(1, "Tia Maria 70cl")

	// 60.55 expected, 32.22 printed: a 46.8% gap of 28.33. That belongs to the
	// discount solver, not the arithmetic check.
	check := va.ValidateLine(60.55, 1, 32.22, "Tia Maria 70cl", cq)
	assert.True(t, check.Valid)
	assert.False(t, check.Flags.Has(model.FlagPriceIncoherent))
	assert.InDelta(t, 28.33, check.Difference, 1e-9)
}

func TestValidateLine_SmallShortfallStillFlags(t *testing.T) {
	va := newValidator(t)
	cq := units.Canonicalize(1, "Gin 70cl")

	// A 5% undercharge is too small to be an obvious discount and too large to
	// be rounding.
	check := va.ValidateLine(20.00, 1, 19.00, "Gin 70cl", cq)
	assert.True(t, check.Flags.Has(model.FlagPriceIncoherent))
}

func TestValidateLine_PackMismatch(t *testing.T) {
	va := newValidator(t)
	cq := units.Canonicalize(20, "Lager 24x275ml")

	// 20 units against a 24-pack descriptor is not a whole number of packs.
	check := va.ValidateLine(0.95, 20, 19.00, "Lager 24x275ml", cq)
	assert.False(t, check.Valid)
	assert.True(t, check.Flags.Has(model.FlagPackMismatch))

	// Whole multiples are fine.
	cq48 := units.Canonicalize(48, "Lager 24x275ml")
	check = va.ValidateLine(0.95, 48, 45.60, "Lager 24x275ml", cq48)
	assert.False(t, check.Flags.Has(model.FlagPackMismatch))
}

func TestCheckVAT(t *testing.T) {
	va := newValidator(t)

	require.NoError(t, va.CheckVAT(100.00, 20.00, 0.20, 120.00, 10))

	// Tolerance scales with line count: 11 lines allow 12p of drift.
	require.NoError(t, va.CheckVAT(100.00, 20.10, 0.20, 120.10, 11))

	err := va.CheckVAT(100.00, 25.00, 0.20, 125.00, 3)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrVATIncoherent))

	err = va.CheckVAT(100.00, 20.00, 0.20, 135.00, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice total")
}

func TestCheckNegativeAdjustments(t *testing.T) {
	flag, found := CheckNegativeAdjustments([]float64{10.00, -4.50, 3.00})
	assert.True(t, found)
	assert.Equal(t, model.FlagNegativeAdjustment, flag)

	_, found = CheckNegativeAdjustments([]float64{10.00, 3.00})
	assert.False(t, found)
}
