package annotate

import "github.com/inodb/vibe-pgx/internal/vcf"

// caddHighImpactThreshold is the deleteriousness score above which a variant
// is treated as HIGH impact regardless of its consequence.
const caddHighImpactThreshold = 25.0

// InferConsequence assigns a consequence category from allele lengths alone.
//
// This is a stand-in for a real consequence caller: any length change is a
// frameshift, a same-length single base change is missense when a gene is
// known and intergenic otherwise, and longer same-length changes are in-frame.
func InferConsequence(v *vcf.Variant) string {
	if v.IsIndel() {
		return ConsequenceFrameshiftVariant
	}
	if len(v.Ref) == 1 {
		if v.Gene != "" {
			return ConsequenceMissenseVariant
		}
		return ConsequenceIntergenicVariant
	}
	return ConsequenceInframeIndel
}

// PredictImpact returns the impact category. First match wins:
// pathogenic classification, CADD > 25, frameshift/missense, otherwise LOW.
func PredictImpact(consequence string, cadd *float64, significance *string) string {
	if significance != nil && IsPathogenicSignificance(*significance) {
		return ImpactHigh
	}
	if cadd != nil && *cadd > caddHighImpactThreshold {
		return ImpactHigh
	}
	switch consequence {
	case ConsequenceFrameshiftVariant, ConsequenceMissenseVariant:
		return ImpactModerate
	}
	return ImpactLow
}

// Conservation figures are synthetic: both are derived from the CADD score
// and carry no independent conservation evidence.

// PhyloPFromCADD returns cadd/10 floored at 0, or nil when cadd is absent.
func PhyloPFromCADD(cadd *float64) *float64 {
	if cadd == nil {
		return nil
	}
	return floatPtr(max(*cadd/10.0, 0))
}

// PhastConsFromCADD returns min(cadd/50, 1), clamped to [0,1], or nil when cadd is absent.
func PhastConsFromCADD(cadd *float64) *float64 {
	if cadd == nil {
		return nil
	}
	return floatPtr(min(max(*cadd/50.0, 0), 1.0))
}
