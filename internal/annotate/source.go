package annotate

import (
	"context"
	"time"

	"github.com/inodb/vibe-pgx/internal/knowledge"
)

// Provider looks up one kind of annotation for a locus. A provider that
// cannot reach its backing store reports not found; it never returns an error.
type Provider[T any] interface {
	Name() string
	Lookup(ctx context.Context, l Locus) (T, bool)
}

// Chain is an ordered list of providers tried in priority order.
type Chain[T any] []Provider[T]

// Lookup returns the first hit and the name of the provider that supplied it.
// When timeout is positive each provider call is bounded by it.
func (c Chain[T]) Lookup(ctx context.Context, timeout time.Duration, l Locus) (T, string, bool) {
	for _, p := range c {
		if v, ok := lookupWithin(ctx, timeout, p, l); ok {
			return v, p.Name(), true
		}
	}
	var zero T
	return zero, "", false
}

func lookupWithin[T any](ctx context.Context, timeout time.Duration, p Provider[T], l Locus) (T, bool) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Lookup(ctx, l)
}

// ClinicalAssertion is a clinical-significance classification from one source.
type ClinicalAssertion struct {
	Significance string
	ID           string
}

// FallbackClinical serves the reference fallback table as a clinical provider.
type FallbackClinical struct {
	kb *knowledge.Knowledge
}

// NewFallbackClinical wraps the clinical fallback table of kb.
func NewFallbackClinical(kb *knowledge.Knowledge) *FallbackClinical {
	return &FallbackClinical{kb: kb}
}

func (f *FallbackClinical) Name() string { return "clinvar_fallback" }

func (f *FallbackClinical) Lookup(_ context.Context, l Locus) (ClinicalAssertion, bool) {
	e, ok := f.kb.ClinicalFallback(l.Key())
	if !ok {
		return ClinicalAssertion{}, false
	}
	return ClinicalAssertion{Significance: e.Significance, ID: e.ID}, true
}

// ScoreTable serves the in-memory deleteriousness table as a score provider.
type ScoreTable struct {
	kb *knowledge.Knowledge
}

// NewScoreTable wraps the deleteriousness table of kb.
func NewScoreTable(kb *knowledge.Knowledge) *ScoreTable {
	return &ScoreTable{kb: kb}
}

func (s *ScoreTable) Name() string { return "cadd_table" }

func (s *ScoreTable) Lookup(_ context.Context, l Locus) (float64, bool) {
	return s.kb.Score(l.Key())
}
