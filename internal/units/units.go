// Package units parses free-text beverage descriptions into canonical
// physical quantities. Volumes normalize to millilitres, masses to grams,
// count-only items to "each"; pack notation such as "24x275ml" resolves to a
// per-unit size so that downstream price-per-base-unit comparisons expose
// case-vs-unit pricing traps instead of masking them.
package units

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/venuelogic/linecheck/internal/model"
)

// Base-unit factors for recognized unit suffixes.
var volumeFactors = map[string]float64{
	"ml": 1,
	"cl": 10,
	"l":  1000,
}

var weightFactors = map[string]float64{
	"g":  1,
	"kg": 1000,
}

// Cask container sizes in litres. Pins and casks are the traditional UK ale
// sizes; kegs default to the 50L euro keg.
var containerLitres = map[string]float64{
	"keg":  50.0,
	"cask": 40.9,
	"pin":  20.5,
}

var focTerms = []string{"foc", "free", "complimentary", "gratis"}

var (
	reNestedPack = regexp.MustCompile(`(\d+)\s*[x×]\s*\(\s*(\d+)\s*[x×]\s*(\d+(?:\.\d+)?)\s*(ml|cl|l|g|kg)\s*\)`)
	rePack       = regexp.MustCompile(`(\d+)\s*[x×]\s*(\d+(?:\.\d+)?)\s*(ml|cl|l|g|kg)\b`)
	reCaseCode   = regexp.MustCompile(`\bc(\d+)\b`)
	rePackWord   = regexp.MustCompile(`(\d+)\s*(?:pack|case|crate|tray)\b`)
	reDozen      = regexp.MustCompile(`(\d+)\s*dozen\b`)
	reContainer  = regexp.MustCompile(`\b(keg|cask|pin)\b`)
	reSimple     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(ml|cl|l|g|kg)\b`)
	reCountWord  = regexp.MustCompile(`\b(can|cans|bot|bottle|bottles|nrb|each|ea|unit|units)\b`)
)

// IsFOC reports whether a description marks a free-of-charge line.
func IsFOC(description string) bool {
	lower := strings.ToLower(description)
	for _, term := range focTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Canonicalize derives the canonical quantity for a line from its printed
// quantity and free-text description. When no unit can be recognized the
// result carries the unresolved sentinel with a unit size of 1; callers must
// treat such lines as non-comparable, never as a silent match.
func Canonicalize(quantity float64, description string) model.CanonicalQuantity {
	lower := strings.ToLower(strings.TrimSpace(description))

	if IsFOC(lower) {
		return model.CanonicalQuantity{
			UOMKey:            model.UOMFOC,
			UnitSize:          1,
			TotalBaseQuantity: 0,
		}
	}

	cq := parse(lower)
	cq.TotalBaseQuantity = quantity * cq.UnitSize
	if cq.UnitsPerPack > 0 {
		cq.Packs = quantity / cq.UnitsPerPack
	}
	return cq
}

// parse extracts unit size and pack composition from a lowered description.
func parse(lower string) model.CanonicalQuantity {
	if m := reNestedPack.FindStringSubmatch(lower); m != nil {
		outer := mustFloat(m[1])
		inner := mustFloat(m[2])
		size := mustFloat(m[3])
		key, factor := unitFamily(m[4])
		return model.CanonicalQuantity{
			UOMKey:       key,
			UnitSize:     size * factor,
			UnitsPerPack: outer * inner,
		}
	}

	if m := rePack.FindStringSubmatch(lower); m != nil {
		n := mustFloat(m[1])
		size := mustFloat(m[2])
		key, factor := unitFamily(m[3])
		return model.CanonicalQuantity{
			UOMKey:       key,
			UnitSize:     size * factor,
			UnitsPerPack: n,
		}
	}

	if m := reCaseCode.FindStringSubmatch(lower); m != nil {
		return model.CanonicalQuantity{
			UOMKey:       model.UOMEach,
			UnitSize:     1,
			UnitsPerPack: mustFloat(m[1]),
		}
	}

	if m := rePackWord.FindStringSubmatch(lower); m != nil {
		return model.CanonicalQuantity{
			UOMKey:       model.UOMEach,
			UnitSize:     1,
			UnitsPerPack: mustFloat(m[1]),
		}
	}

	if m := reDozen.FindStringSubmatch(lower); m != nil {
		return model.CanonicalQuantity{
			UOMKey:       model.UOMEach,
			UnitSize:     1,
			UnitsPerPack: mustFloat(m[1]) * 12,
		}
	}

	if m := reContainer.FindStringSubmatch(lower); m != nil {
		litres := containerLitres[m[1]]
		return model.CanonicalQuantity{
			UOMKey:       model.UOMMillilitre,
			UnitSize:     litres * 1000,
			UnitsPerPack: 1,
		}
	}

	if m := reSimple.FindStringSubmatch(lower); m != nil {
		size := mustFloat(m[1])
		key, factor := unitFamily(m[2])
		return model.CanonicalQuantity{
			UOMKey:       key,
			UnitSize:     size * factor,
			UnitsPerPack: 1,
		}
	}

	if reCountWord.MatchString(lower) {
		return model.CanonicalQuantity{
			UOMKey:       model.UOMEach,
			UnitSize:     1,
			UnitsPerPack: 1,
		}
	}

	return model.CanonicalQuantity{
		UOMKey:   model.UOMUnresolved,
		UnitSize: 1,
	}
}

// unitFamily maps a unit suffix to its canonical key and base-unit factor.
func unitFamily(suffix string) (string, float64) {
	if f, ok := volumeFactors[suffix]; ok {
		return model.UOMMillilitre, f
	}
	if f, ok := weightFactors[suffix]; ok {
		return model.UOMGram, f
	}
	return model.UOMUnresolved, 1
}

func mustFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Meta is auxiliary information mined from a description. Category only
// biases which discount hypothesis family the solver tries first; it never
// changes a numeric result.
type Meta struct {
	SKU      string
	Brand    string
	Category string
}

var (
	reSKUSuffix = regexp.MustCompile(`([A-Z0-9]{4,})$`)
	reBrand     = regexp.MustCompile(`^([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*)`)
)

// plainSizes are unit tokens that look like SKU codes but aren't.
var plainSizes = map[string]bool{
	"500ML": true, "330ML": true, "275ML": true, "70CL": true, "75CL": true,
}

var categoryHints = map[string][]string{
	"spirits":   {"spirit", "vodka", "gin", "whisky", "whiskey", "rum", "brandy", "liqueur", "tequila"},
	"wine":      {"wine", "merlot", "shiraz", "rioja", "prosecco", "champagne"},
	"beer":      {"beer", "lager", "ale", "stout", "ipa", "pilsner"},
	"softs_nrb": {"soft", "juice", "cola", "lemonade", "tonic", "water"},
}

// categoryOrder fixes iteration order over categoryHints so classification is
// deterministic when hints overlap.
var categoryOrder = []string{"spirits", "wine", "beer", "softs_nrb"}

// Describe extracts SKU, brand and category hints from a description.
func Describe(description string) Meta {
	desc := strings.TrimSpace(description)
	meta := Meta{}

	if m := reSKUSuffix.FindStringSubmatch(strings.ToUpper(desc)); m != nil && !plainSizes[m[1]] {
		meta.SKU = m[1]
	}
	if m := reBrand.FindStringSubmatch(desc); m != nil {
		meta.Brand = strings.TrimSpace(strings.Replace(m[1], meta.SKU, "", 1))
	}

	lower := strings.ToLower(desc)
	for _, cat := range categoryOrder {
		for _, hint := range categoryHints[cat] {
			if strings.Contains(lower, hint) {
				meta.Category = cat
				return meta
			}
		}
	}
	return meta
}
