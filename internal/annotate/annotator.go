package annotate

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/knowledge"
	"github.com/inodb/vibe-pgx/internal/vcf"
)

// DefaultLookupTimeout bounds every external lookup made during annotation.
const DefaultLookupTimeout = 5 * time.Second

// imputedRareFrequency marks a variant that is known to the clinical fallback
// table but has no measured population frequency.
const imputedRareFrequency = 0.001

// Annotator annotates raw variants against reference knowledge and a chain of
// lookup providers. After configuration it holds no mutable state and is safe
// for concurrent use.
type Annotator struct {
	kb        *knowledge.Knowledge
	clinical  Chain[ClinicalAssertion]
	scores    Chain[float64]
	frequency Chain[float64]
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAnnotator creates an annotator backed by kb. Clinical lookups use the
// fallback table and scores use the in-memory table until more providers are
// added. No frequency source is configured.
func NewAnnotator(kb *knowledge.Knowledge) *Annotator {
	return &Annotator{
		kb:       kb,
		clinical: Chain[ClinicalAssertion]{NewFallbackClinical(kb)},
		scores:   Chain[float64]{NewScoreTable(kb)},
		timeout:  DefaultLookupTimeout,
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and debug messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// SetLookupTimeout sets the per-call timeout for provider lookups.
func (a *Annotator) SetLookupTimeout(d time.Duration) {
	if d > 0 {
		a.timeout = d
	}
}

// UseLiveClinical puts a live clinical provider ahead of the fallback table.
func (a *Annotator) UseLiveClinical(p Provider[ClinicalAssertion]) {
	a.clinical = append(Chain[ClinicalAssertion]{p}, a.clinical...)
}

// AddScoreProvider appends a deleteriousness score provider after the existing ones.
func (a *Annotator) AddScoreProvider(p Provider[float64]) {
	a.scores = append(a.scores, p)
}

// AddFrequencySource appends an allele frequency source.
func (a *Annotator) AddFrequencySource(p Provider[float64]) {
	a.frequency = append(a.frequency, p)
}

// Annotate builds the complete record for one raw variant. Missing optional
// data leaves fields nil; only malformed required fields return an error.
func (a *Annotator) Annotate(ctx context.Context, v *vcf.Variant) (*Record, error) {
	if err := validate(v); err != nil {
		return nil, err
	}

	locus := Locus{Chrom: v.Chrom, Pos: v.Pos, Ref: v.Ref, Alt: v.Alt}
	key := locus.Key()
	consequence := InferConsequence(v)

	r := &Record{
		Chrom:       v.Chrom,
		Pos:         v.Pos,
		Ref:         v.Ref,
		Alt:         v.Alt,
		VariantKey:  key,
		Gene:        stringPtr(v.Gene),
		Transcript:  stringPtr(v.Transcript),
		Consequence: consequence,
	}
	if v.ID != "" && v.ID != "." {
		r.ExternalID = stringPtr(v.ID)
	}

	if ca, src, ok := a.clinical.Lookup(ctx, a.timeout, locus); ok {
		r.ClinicalSignificance = stringPtr(ca.Significance)
		r.ClinVarID = stringPtr(ca.ID)
		a.logger.Debug("clinical significance", zap.String("variant_key", key), zap.String("source", src))
	}

	if af, _, ok := a.frequency.Lookup(ctx, a.timeout, locus); ok {
		r.AlleleFrequency = floatPtr(af)
	} else if _, known := a.kb.ClinicalFallback(key); known {
		r.AlleleFrequency = floatPtr(imputedRareFrequency)
	}

	if score, _, ok := a.scores.Lookup(ctx, a.timeout, locus); ok {
		r.CADDScore = floatPtr(score)
	}
	r.PhyloPScore = PhyloPFromCADD(r.CADDScore)
	r.PhastConsScore = PhastConsFromCADD(r.CADDScore)

	if g, ok := a.kb.MetabolizerGene(v.Gene); ok {
		r.IsDrugMetabolizerGene = true
		r.CYPFamily = stringPtr(g.CYPFamily)
	}

	r.PredictedImpact = PredictImpact(consequence, r.CADDScore, r.ClinicalSignificance)
	return r, nil
}

// AnnotateAll annotates every variant from a parser and returns the records
// in input order. workers <= 0 uses runtime.NumCPU(); 1 annotates sequentially.
// Any parse or validation error fails the whole call and no records are returned.
func (a *Annotator) AnnotateAll(ctx context.Context, parser vcf.VariantParser, workers int) ([]*Record, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan annotationJob, 2*workers)
	var parseErr error

	go func() {
		defer close(jobs)
		seq := 0
		for {
			v, err := parser.Next()
			if err != nil {
				parseErr = fmt.Errorf("read variant: %w", err)
				return
			}
			if v == nil {
				return
			}
			select {
			case jobs <- annotationJob{seq: seq, line: parser.LineNumber(), variant: v}:
				seq++
			case <-ctx.Done():
				return
			}
		}
	}()

	results := a.annotateConcurrently(ctx, jobs, workers)

	var records []*Record
	if err := emitInOrder(ctx, results, func(r annotationResult) error {
		if r.err != nil {
			return fmt.Errorf("line %d: %w", r.line, r.err)
		}
		records = append(records, r.record)
		return nil
	}); err != nil {
		return nil, err
	}

	if parseErr != nil {
		return nil, parseErr
	}

	if len(records) == 0 {
		a.logger.Info("0 variants processed")
	}
	return records, nil
}
