// Package knowledge holds the read-only reference tables used during
// annotation: drug-metabolizer genes, the clinical significance fallback
// table and the deleteriousness score table.
package knowledge

import "slices"

// MetabolizerGene describes a gene whose product metabolizes drugs.
type MetabolizerGene struct {
	Symbol    string
	CYPFamily string
	Drugs     []string
}

// ClinicalEntry is a fallback clinical significance for one variant key.
type ClinicalEntry struct {
	Significance string
	ID           string
}

// Knowledge is loaded once and never mutated afterwards, so it can be shared
// by concurrent annotation calls without locking.
type Knowledge struct {
	genes    map[string]MetabolizerGene
	clinical map[string]ClinicalEntry
	scores   map[string]float64
}

// New builds a Knowledge from the given tables. The inputs are copied.
func New(genes []MetabolizerGene, clinical map[string]ClinicalEntry, scores map[string]float64) *Knowledge {
	k := &Knowledge{
		genes:    make(map[string]MetabolizerGene, len(genes)),
		clinical: make(map[string]ClinicalEntry, len(clinical)),
		scores:   make(map[string]float64, len(scores)),
	}
	for _, g := range genes {
		g.Drugs = slices.Clone(g.Drugs)
		k.genes[g.Symbol] = g
	}
	for key, e := range clinical {
		k.clinical[key] = e
	}
	for key, s := range scores {
		k.scores[key] = s
	}
	return k
}

// MetabolizerGene looks up a gene by exact, case-sensitive symbol.
// "cyp2c19" does not match "CYP2C19".
func (k *Knowledge) MetabolizerGene(symbol string) (MetabolizerGene, bool) {
	if symbol == "" {
		return MetabolizerGene{}, false
	}
	g, ok := k.genes[symbol]
	if !ok {
		return MetabolizerGene{}, false
	}
	g.Drugs = slices.Clone(g.Drugs)
	return g, true
}

// DrugsForGene returns the known drugs metabolized by the gene's product.
func (k *Knowledge) DrugsForGene(symbol string) []string {
	g, ok := k.MetabolizerGene(symbol)
	if !ok {
		return nil
	}
	return g.Drugs
}

// ClinicalFallback returns the fallback classification for a variant key.
func (k *Knowledge) ClinicalFallback(key string) (ClinicalEntry, bool) {
	e, ok := k.clinical[key]
	return e, ok
}

// Score returns the deleteriousness score for a variant key.
func (k *Knowledge) Score(key string) (float64, bool) {
	s, ok := k.scores[key]
	return s, ok
}

// GeneCount returns the number of drug-metabolizer genes.
func (k *Knowledge) GeneCount() int { return len(k.genes) }

// ClinicalCount returns the number of fallback clinical entries.
func (k *Knowledge) ClinicalCount() int { return len(k.clinical) }

// ScoreCount returns the number of deleteriousness scores.
func (k *Knowledge) ScoreCount() int { return len(k.scores) }
