// Package ladder holds the ranked reference prices observed for one SKU. The
// ladder is a pure accumulator: sources are only ever appended, and the fixed
// authority ranking (contract book over supplier master over recent venue
// history, configurable) decides which observation resolves as the expected
// price.
package ladder

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/venuelogic/linecheck/internal/config"
	"github.com/venuelogic/linecheck/internal/model"
)

// ErrNoReferencePrice signals that no price source is available for a SKU;
// off-contract evaluation must degrade to a neutral verdict, never guess.
var ErrNoReferencePrice = eris.New("NO_REFERENCE_PRICE: no price source available")

// ConflictTypeReference is the conflict_type reported when the two
// highest-ranked sources disagree beyond the configured relative threshold.
const ConflictTypeReference = "reference_conflict"

// Ladder is the ranked set of reference prices observed for one SKU.
type Ladder struct {
	skuID     string
	authority []string
	threshold float64
	sources   []model.PriceSource
}

// New creates an empty ladder for a SKU using the configured authority
// ranking and conflict threshold.
func New(skuID string, cfg config.LadderConfig, conflictThreshold float64) *Ladder {
	return &Ladder{
		skuID:     skuID,
		authority: cfg.Authority,
		threshold: conflictThreshold,
	}
}

// SKUID returns the SKU this ladder accumulates observations for.
func (l *Ladder) SKUID() string { return l.skuID }

// Add appends a price observation. Observations are never mutated or removed.
func (l *Ladder) Add(sourceName string, price float64, uom string, observedAt time.Time, contentHash string) {
	l.sources = append(l.sources, model.PriceSource{
		SourceName:  sourceName,
		Price:       price,
		UOM:         uom,
		ObservedAt:  observedAt,
		ContentHash: contentHash,
	})
}

// Sources returns a copy of all observations in authority order.
func (l *Ladder) Sources() []model.PriceSource {
	return l.ranked()
}

// rank maps a source name to its position in the authority list. Entries
// ending in "*" prefix-match. Unknown sources rank below every configured one.
func (l *Ladder) rank(sourceName string) int {
	for i, entry := range l.authority {
		if pfx, ok := strings.CutSuffix(entry, "*"); ok {
			if strings.HasPrefix(sourceName, pfx) {
				return i
			}
		} else if sourceName == entry {
			return i
		}
	}
	return len(l.authority)
}

// ranked returns a sorted copy of the sources: authority first, then most
// recent observation, then name. The ordering is total, so resolution is
// independent of insertion order.
func (l *Ladder) ranked() []model.PriceSource {
	out := make([]model.PriceSource, len(l.sources))
	copy(out, l.sources)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := l.rank(out[i].SourceName), l.rank(out[j].SourceName)
		if ri != rj {
			return ri < rj
		}
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.After(out[j].ObservedAt)
		}
		return out[i].SourceName < out[j].SourceName
	})
	return out
}

// ResolveExpectedPrice returns the highest-ranked available observation.
func (l *Ladder) ResolveExpectedPrice() (model.PriceSource, error) {
	ranked := l.ranked()
	if len(ranked) == 0 {
		return model.PriceSource{}, eris.Wrapf(ErrNoReferencePrice, "sku %s", l.skuID)
	}
	return ranked[0], nil
}

// CheckReferenceConflict compares the two highest-ranked observations. A
// conflict is advisory metadata for the verdict; the expected price still
// resolves.
func (l *Ladder) CheckReferenceConflict() (bool, string) {
	ranked := l.ranked()
	if len(ranked) < 2 {
		return false, ""
	}
	top, second := ranked[0], ranked[1]
	if top.Price == 0 {
		return false, ""
	}
	relDiff := abs(top.Price-second.Price) / top.Price
	if relDiff > l.threshold {
		return true, ConflictTypeReference
	}
	return false, ""
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
