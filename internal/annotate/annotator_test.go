package annotate

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-pgx/internal/knowledge"
	"github.com/inodb/vibe-pgx/internal/vcf"
)

// stubProvider returns a fixed value for the keys it knows.
type stubProvider[T any] struct {
	name   string
	values map[string]T
	calls  int
}

func (s *stubProvider[T]) Name() string { return s.name }

func (s *stubProvider[T]) Lookup(_ context.Context, l Locus) (T, bool) {
	s.calls++
	v, ok := s.values[l.Key()]
	return v, ok
}

// slowProvider blocks until its context is done and reports not found.
type slowProvider struct{}

func (slowProvider) Name() string { return "slow" }

func (slowProvider) Lookup(ctx context.Context, _ Locus) (float64, bool) {
	<-ctx.Done()
	return 0, false
}

func annotateOne(t *testing.T, ann *Annotator, v *vcf.Variant) *Record {
	t.Helper()
	rec, err := ann.Annotate(context.Background(), v)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestAnnotate_KnownPathogenicMetabolizer(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())

	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "chr10", Pos: 94761930, Ref: "G", Alt: "A", Gene: "CYP2C19"})

	assert.Equal(t, "chr10:94761930:G>A", rec.VariantKey)
	require.NotNil(t, rec.ClinicalSignificance)
	assert.Equal(t, SignificancePathogenic, *rec.ClinicalSignificance)
	require.NotNil(t, rec.ClinVarID)
	assert.Equal(t, "VCV000000001", *rec.ClinVarID)
	assert.True(t, rec.IsDrugMetabolizerGene)
	require.NotNil(t, rec.CYPFamily)
	assert.Equal(t, "CYP2C19", *rec.CYPFamily)
	assert.Equal(t, ImpactHigh, rec.PredictedImpact)
	assert.Equal(t, ConsequenceMissenseVariant, rec.Consequence)

	// Known to the fallback table without a frequency source: imputed rare.
	require.NotNil(t, rec.AlleleFrequency)
	assert.InDelta(t, 0.001, *rec.AlleleFrequency, 1e-12)

	require.NotNil(t, rec.CADDScore)
	assert.InDelta(t, 28.5, *rec.CADDScore, 1e-9)
	require.NotNil(t, rec.PhyloPScore)
	assert.InDelta(t, 2.85, *rec.PhyloPScore, 1e-9)
	require.NotNil(t, rec.PhastConsScore)
	assert.InDelta(t, 0.57, *rec.PhastConsScore, 1e-9)
}

func TestAnnotate_DeletionIsFrameshift(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())

	for _, gene := range []string{"", "CYP2D6", "BRCA1"} {
		rec := annotateOne(t, ann, &vcf.Variant{Chrom: "chr1", Pos: 100, Ref: "GA", Alt: "G", Gene: gene})
		assert.Equal(t, ConsequenceFrameshiftVariant, rec.Consequence, "gene=%q", gene)
		assert.Equal(t, ImpactModerate, rec.PredictedImpact, "gene=%q", gene)
	}
}

func TestAnnotate_UnknownVariant(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())

	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "3", Pos: 12345, ID: ".", Ref: "C", Alt: "T"})

	assert.Equal(t, ConsequenceIntergenicVariant, rec.Consequence)
	assert.Equal(t, ImpactLow, rec.PredictedImpact)
	assert.Nil(t, rec.Gene)
	assert.Nil(t, rec.ExternalID)
	assert.Nil(t, rec.ClinicalSignificance)
	assert.Nil(t, rec.AlleleFrequency)
	assert.Nil(t, rec.CADDScore)
	assert.Nil(t, rec.PhyloPScore)
	assert.Nil(t, rec.PhastConsScore)
	assert.False(t, rec.IsDrugMetabolizerGene)
	assert.Nil(t, rec.CYPFamily)
}

func TestAnnotate_ExternalID(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())

	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "1", Pos: 1, ID: "rs4244285", Ref: "G", Alt: "A"})
	require.NotNil(t, rec.ExternalID)
	assert.Equal(t, "rs4244285", *rec.ExternalID)
}

func TestAnnotate_GeneMatchIsCaseSensitive(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())

	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "22", Pos: 1, Ref: "C", Alt: "T", Gene: "cyp2d6"})
	assert.False(t, rec.IsDrugMetabolizerGene)
	assert.Nil(t, rec.CYPFamily)
}

func TestAnnotate_HighScoreIsHighImpact(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())

	// Likely pathogenic with CADD 32.1.
	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "chr6", Pos: 161006172, Ref: "G", Alt: "A"})
	assert.Equal(t, ImpactHigh, rec.PredictedImpact)

	// Benign with CADD 5.2 and no gene: nothing raises it above LOW.
	rec = annotateOne(t, ann, &vcf.Variant{Chrom: "chr19", Pos: 41307769, Ref: "C", Alt: "T"})
	assert.Equal(t, ImpactLow, rec.PredictedImpact)
}

func TestAnnotate_Deterministic(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	v := &vcf.Variant{Chrom: "chr10", Pos: 94761930, Ref: "G", Alt: "A", Gene: "CYP2C19"}

	first := annotateOne(t, ann, v)
	for range 5 {
		assert.Equal(t, first, annotateOne(t, ann, v))
	}
}

func TestAnnotate_ImpactAndConservationBounds(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())

	variants := []*vcf.Variant{
		{Chrom: "chr10", Pos: 94761930, Ref: "G", Alt: "A"},
		{Chrom: "chr6", Pos: 161006172, Ref: "G", Alt: "A"},
		{Chrom: "chr19", Pos: 41307769, Ref: "C", Alt: "T"},
		{Chrom: "1", Pos: 0, Ref: "A", Alt: "ACGT"},
		{Chrom: "1", Pos: 5, Ref: "AC", Alt: "GT"},
		{Chrom: "X", Pos: 5, Ref: "n", Alt: "a", Gene: "TPMT"},
	}
	for _, v := range variants {
		rec := annotateOne(t, ann, v)
		assert.Contains(t, []string{ImpactHigh, ImpactModerate, ImpactLow}, rec.PredictedImpact)
		if rec.PhastConsScore != nil {
			assert.GreaterOrEqual(t, *rec.PhastConsScore, 0.0)
			assert.LessOrEqual(t, *rec.PhastConsScore, 1.0)
		}
		if rec.PhyloPScore != nil {
			assert.GreaterOrEqual(t, *rec.PhyloPScore, 0.0)
		}
	}
}

func TestAnnotate_ValidationErrors(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())

	tests := []struct {
		name  string
		v     *vcf.Variant
		field string
	}{
		{"empty chrom", &vcf.Variant{Pos: 1, Ref: "A", Alt: "G"}, "chrom"},
		{"negative pos", &vcf.Variant{Chrom: "1", Pos: -1, Ref: "A", Alt: "G"}, "pos"},
		{"empty ref", &vcf.Variant{Chrom: "1", Pos: 1, Alt: "G"}, "ref"},
		{"empty alt", &vcf.Variant{Chrom: "1", Pos: 1, Ref: "A"}, "alt"},
		{"bad base", &vcf.Variant{Chrom: "1", Pos: 1, Ref: "A", Alt: "<DEL>"}, "alt"},
		{"lowercase ref", &vcf.Variant{Chrom: "chr10", Pos: 94761930, Ref: "g", Alt: "A"}, "ref"},
		{"lowercase alt", &vcf.Variant{Chrom: "chr10", Pos: 94761930, Ref: "G", Alt: "a"}, "alt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ann.Annotate(context.Background(), tt.v)
			require.Error(t, err)
			assert.Nil(t, rec)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, vcf.ErrInvalid)
		})
	}
}

func TestAnnotate_LiveClinicalTakesPrecedence(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	live := &stubProvider[ClinicalAssertion]{
		name: "live",
		values: map[string]ClinicalAssertion{
			"chr10:94761930:G>A": {Significance: SignificanceLikelyPathogenic, ID: "12345"},
		},
	}
	ann.UseLiveClinical(live)

	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "chr10", Pos: 94761930, Ref: "G", Alt: "A"})
	require.NotNil(t, rec.ClinicalSignificance)
	assert.Equal(t, SignificanceLikelyPathogenic, *rec.ClinicalSignificance)
	assert.Equal(t, "12345", *rec.ClinVarID)

	// A live miss falls through to the fallback table.
	rec = annotateOne(t, ann, &vcf.Variant{Chrom: "chr19", Pos: 41307769, Ref: "C", Alt: "T"})
	require.NotNil(t, rec.ClinicalSignificance)
	assert.Equal(t, SignificanceBenign, *rec.ClinicalSignificance)
	assert.Equal(t, 2, live.calls)
}

func TestAnnotate_FrequencySource(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	ann.AddFrequencySource(&stubProvider[float64]{
		name:   "freq",
		values: map[string]float64{"chr10:94761930:G>A": 0.15, "5:10:A>G": 0.4},
	})

	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "chr10", Pos: 94761930, Ref: "G", Alt: "A"})
	assert.InDelta(t, 0.15, *rec.AlleleFrequency, 1e-12)

	rec = annotateOne(t, ann, &vcf.Variant{Chrom: "5", Pos: 10, Ref: "A", Alt: "G"})
	assert.InDelta(t, 0.4, *rec.AlleleFrequency, 1e-12)

	// Known to the clinical table but absent from the source: imputed.
	rec = annotateOne(t, ann, &vcf.Variant{Chrom: "chr6", Pos: 161006172, Ref: "G", Alt: "A"})
	assert.InDelta(t, 0.001, *rec.AlleleFrequency, 1e-12)
}

func TestAnnotate_ScoreProviderOrder(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	extra := &stubProvider[float64]{
		name:   "extra",
		values: map[string]float64{"chr10:94761930:G>A": 1.0, "7:7:C>G": 60.0},
	}
	ann.AddScoreProvider(extra)

	// The in-memory table answers first.
	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "chr10", Pos: 94761930, Ref: "G", Alt: "A"})
	assert.InDelta(t, 28.5, *rec.CADDScore, 1e-9)
	assert.Equal(t, 0, extra.calls)

	rec = annotateOne(t, ann, &vcf.Variant{Chrom: "7", Pos: 7, Ref: "C", Alt: "G"})
	assert.InDelta(t, 60.0, *rec.CADDScore, 1e-9)
	assert.InDelta(t, 1.0, *rec.PhastConsScore, 1e-9)
	assert.Equal(t, ImpactHigh, rec.PredictedImpact)
}

func TestAnnotate_SlowSourceTimesOut(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	ann.SetLookupTimeout(20 * time.Millisecond)
	ann.AddFrequencySource(slowProvider{})

	start := time.Now()
	rec := annotateOne(t, ann, &vcf.Variant{Chrom: "1", Pos: 1, Ref: "A", Alt: "G"})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Nil(t, rec.AlleleFrequency)
}

func TestAnnotateAll_PreservesInputOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n")
	for i := range 100 {
		b.WriteString("1\t")
		b.WriteString(strconv.Itoa(1000 + i))
		b.WriteString("\t.\tA\tG\t.\tPASS\t.\n")
	}

	for _, workers := range []int{1, 4, 0} {
		p, err := vcf.NewParser(strings.NewReader(b.String()))
		require.NoError(t, err)

		records, err := NewAnnotator(knowledge.Default()).AnnotateAll(context.Background(), p, workers)
		require.NoError(t, err)
		require.Len(t, records, 100)
		for i, r := range records {
			assert.Equal(t, int64(1000+i), r.Pos, "workers=%d", workers)
		}
	}
}

func TestAnnotateAll_InvalidRowFailsWholeParse(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tG\t.\tPASS\t.\n" +
		"1\t200\t.\tA\tQ\t.\tPASS\t.\n"

	p, err := vcf.NewParser(strings.NewReader(input))
	require.NoError(t, err)

	records, err := NewAnnotator(knowledge.Default()).AnnotateAll(context.Background(), p, 2)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, vcf.ErrInvalid)
	assert.Contains(t, err.Error(), "line 3")
}

func TestAnnotateAll_Empty(t *testing.T) {
	p, err := vcf.NewParser(strings.NewReader("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"))
	require.NoError(t, err)

	records, err := NewAnnotator(knowledge.Default()).AnnotateAll(context.Background(), p, 2)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAnnotateAll_CancelledContext(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tG\t.\tPASS\t.\n" +
		"1\t200\t.\tC\tT\t.\tPASS\t.\n"
	p, err := vcf.NewParser(strings.NewReader(input))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := NewAnnotator(knowledge.Default()).AnnotateAll(ctx, p, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, records)
}
