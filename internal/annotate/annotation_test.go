package annotate

import "testing"

func TestFormatVariantKey(t *testing.T) {
	tests := []struct {
		chrom string
		pos   int64
		ref   string
		alt   string
		want  string
	}{
		{"chr10", 94761930, "G", "A", "chr10:94761930:G>A"},
		{"1", 100, "GA", "G", "1:100:GA>G"},
		{"X", 0, "N", "T", "X:0:N>T"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatVariantKey(tt.chrom, tt.pos, tt.ref, tt.alt); got != tt.want {
				t.Errorf("FormatVariantKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocus_Key(t *testing.T) {
	l := Locus{Chrom: "chr22", Pos: 42128945, Ref: "C", Alt: "T"}
	if got := l.Key(); got != "chr22:42128945:C>T" {
		t.Errorf("Key() = %q", got)
	}
	// Keys are stable across calls.
	if l.Key() != l.Key() {
		t.Error("Key() not stable")
	}
}

func TestIsPathogenicSignificance(t *testing.T) {
	tests := []struct {
		sig  string
		want bool
	}{
		{SignificancePathogenic, true},
		{SignificanceLikelyPathogenic, true},
		{SignificanceUncertain, false},
		{SignificanceLikelyBenign, false},
		{SignificanceBenign, false},
		{"Pathogenic", false},
	}
	for _, tt := range tests {
		if got := IsPathogenicSignificance(tt.sig); got != tt.want {
			t.Errorf("IsPathogenicSignificance(%q) = %v, want %v", tt.sig, got, tt.want)
		}
	}
}

func TestRecord_IsPathogenic(t *testing.T) {
	var r Record
	if r.IsPathogenic() {
		t.Error("record without significance reported pathogenic")
	}
	r.ClinicalSignificance = stringPtr(SignificanceLikelyPathogenic)
	if !r.IsPathogenic() {
		t.Error("likely_pathogenic record not reported pathogenic")
	}
}

func TestImpactRank(t *testing.T) {
	if !(ImpactRank(ImpactHigh) > ImpactRank(ImpactModerate) &&
		ImpactRank(ImpactModerate) > ImpactRank(ImpactLow) &&
		ImpactRank(ImpactLow) > ImpactRank("")) {
		t.Error("impact ranks not strictly ordered")
	}
}

// TestAllocRegression_FormatVariantKey verifies a single allocation per key.
func TestAllocRegression_FormatVariantKey(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		FormatVariantKey("chr10", 94761930, "G", "A")
	})
	if allocs > 1 {
		t.Errorf("FormatVariantKey allocs: %.0f, want <= 1", allocs)
	}
}
