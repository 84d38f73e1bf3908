package model

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gocarina/gocsv"

	"github.com/inodb/vibe-pgx/internal/features"
)

// trainingRow is one labelled row of a training matrix.
type trainingRow struct {
	IsDrugMetabolizer int     `csv:"is_drug_metabolizer"`
	CADDScore         float64 `csv:"cadd_score"`
	AlleleFrequency   float64 `csv:"allele_frequency"`
	ConservationScore float64 `csv:"conservation_score"`
	EffectMissense    int     `csv:"effect_missense"`
	EffectNonsense    int     `csv:"effect_nonsense"`
	IsPathogenic      int     `csv:"is_pathogenic"`
	Label             int     `csv:"label"`
}

// LoadTrainingCSV reads a labelled training matrix: the seven feature
// columns plus a 0/1 label column.
func LoadTrainingCSV(r io.Reader) ([]features.Vector, []int, error) {
	var rows []*trainingRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, nil, fmt.Errorf("read training csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("read training csv: no rows")
	}

	samples := make([]features.Vector, len(rows))
	labels := make([]int, len(rows))
	for i, row := range rows {
		if row.Label != 0 && row.Label != 1 {
			return nil, nil, fmt.Errorf("training row %d: label %d, want 0 or 1", i+1, row.Label)
		}
		samples[i] = features.Vector{
			IsDrugMetabolizer: row.IsDrugMetabolizer,
			CADDScore:         row.CADDScore,
			AlleleFrequency:   row.AlleleFrequency,
			ConservationScore: row.ConservationScore,
			EffectMissense:    row.EffectMissense,
			EffectNonsense:    row.EffectNonsense,
			IsPathogenic:      row.IsPathogenic,
		}
		labels[i] = row.Label
	}
	return samples, labels, nil
}

// SyntheticTrainingData generates a reproducible demonstration training set.
// Risk rises with high CADD, pathogenic variants, very rare alleles and
// missense hits in drug-metabolizer genes.
func SyntheticTrainingData(n int, seed int64) ([]features.Vector, []int) {
	rng := rand.New(rand.NewSource(seed))
	bernoulli := func(p float64) int {
		if rng.Float64() < p {
			return 1
		}
		return 0
	}

	samples := make([]features.Vector, n)
	labels := make([]int, n)
	for i := range samples {
		v := features.Vector{
			IsDrugMetabolizer: bernoulli(0.3),
			CADDScore:         rng.Float64() * 35,
			AlleleFrequency:   rng.ExpFloat64() * 0.05,
			ConservationScore: rng.Float64(),
			EffectMissense:    bernoulli(0.4),
			EffectNonsense:    bernoulli(0.1),
			IsPathogenic:      bernoulli(0.2),
		}
		samples[i] = v

		score := 0.0
		if v.CADDScore > 20 {
			score += 0.3
		}
		score += 0.4 * float64(v.IsPathogenic)
		if v.AlleleFrequency < 0.01 {
			score += 0.2
		}
		if v.IsDrugMetabolizer == 1 && v.EffectMissense > 0 {
			score += 0.1
		}
		if score > 0.5 {
			labels[i] = 1
		}
	}
	return samples, labels
}
