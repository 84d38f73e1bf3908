// Package features reduces a patient's annotated variants to a single
// fixed-schema feature vector for the risk classifiers.
package features

import (
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/inodb/vibe-pgx/internal/annotate"
)

// Vector is one patient's feature row. Field order is the column order.
type Vector struct {
	IsDrugMetabolizer int     `csv:"is_drug_metabolizer" json:"is_drug_metabolizer"`
	CADDScore         float64 `csv:"cadd_score" json:"cadd_score"`
	AlleleFrequency   float64 `csv:"allele_frequency" json:"allele_frequency"`
	ConservationScore float64 `csv:"conservation_score" json:"conservation_score"`
	EffectMissense    int     `csv:"effect_missense" json:"effect_missense"`
	EffectNonsense    int     `csv:"effect_nonsense" json:"effect_nonsense"`
	IsPathogenic      int     `csv:"is_pathogenic" json:"is_pathogenic"`
}

var columns = []string{
	"is_drug_metabolizer",
	"cadd_score",
	"allele_frequency",
	"conservation_score",
	"effect_missense",
	"effect_nonsense",
	"is_pathogenic",
}

// Columns returns the feature names in schema order.
func Columns() []string {
	return append([]string(nil), columns...)
}

// Values returns the features as floats in schema order.
func (v Vector) Values() []float64 {
	return []float64{
		float64(v.IsDrugMetabolizer),
		v.CADDScore,
		v.AlleleFrequency,
		v.ConservationScore,
		float64(v.EffectMissense),
		float64(v.EffectNonsense),
		float64(v.IsPathogenic),
	}
}

// ConservationMode selects how conservation_score is computed.
type ConservationMode string

const (
	// ConservationPlaceholder reports a fixed 0.5 for any non-empty variant set.
	ConservationPlaceholder ConservationMode = "placeholder"
	// ConservationMean averages the per-variant phastCons-equivalent scores
	// that are present, 0 if none are.
	ConservationMean ConservationMode = "mean"
)

// PlaceholderConservation is the conservation score reported in placeholder mode.
const PlaceholderConservation = 0.5

// ParseConservationMode converts a configuration value. Empty selects the placeholder.
func ParseConservationMode(s string) (ConservationMode, error) {
	switch ConservationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ConservationPlaceholder:
		return ConservationPlaceholder, nil
	case ConservationMean:
		return ConservationMean, nil
	}
	return "", fmt.Errorf("unknown conservation mode %q (use placeholder or mean)", s)
}

// Aggregator reduces variant sets to feature vectors. It holds no mutable
// state and is safe for concurrent use.
type Aggregator struct {
	conservation ConservationMode
}

// NewAggregator creates an aggregator with the given conservation mode.
func NewAggregator(mode ConservationMode) *Aggregator {
	if mode == "" {
		mode = ConservationPlaceholder
	}
	return &Aggregator{conservation: mode}
}

// Mode returns the conservation mode.
func (a *Aggregator) Mode() ConservationMode {
	return a.conservation
}

// Aggregate reduces records to one vector. Every reduction is order
// independent. An empty set yields the all-zero vector.
func (a *Aggregator) Aggregate(records []*annotate.Record) Vector {
	var v Vector
	if len(records) == 0 {
		return v
	}

	var cadd, af, phastCons stats.Float64Data
	for _, r := range records {
		if r.IsDrugMetabolizerGene {
			v.IsDrugMetabolizer = 1
		}
		if r.IsPathogenic() {
			v.IsPathogenic = 1
		}
		switch r.Consequence {
		case annotate.ConsequenceMissenseVariant:
			v.EffectMissense++
		case annotate.ConsequenceStopGained:
			v.EffectNonsense++
		}
		if r.CADDScore != nil {
			cadd = append(cadd, *r.CADDScore)
		}
		if r.AlleleFrequency != nil {
			af = append(af, *r.AlleleFrequency)
		}
		if r.PhastConsScore != nil {
			phastCons = append(phastCons, *r.PhastConsScore)
		}
	}

	// Floating-point sums depend on order; sort so the means do not.
	sort.Float64s(af)
	sort.Float64s(phastCons)

	v.CADDScore = orZero(cadd.Max)
	v.AlleleFrequency = orZero(af.Mean)

	switch a.conservation {
	case ConservationMean:
		v.ConservationScore = orZero(phastCons.Mean)
	default:
		v.ConservationScore = PlaceholderConservation
	}
	return v
}

// Aggregate reduces records with the placeholder conservation score.
func Aggregate(records []*annotate.Record) Vector {
	return NewAggregator(ConservationPlaceholder).Aggregate(records)
}

// orZero returns the reduction result, or 0 for empty input.
func orZero(reduce func() (float64, error)) float64 {
	f, err := reduce()
	if err != nil {
		return 0
	}
	return f
}
