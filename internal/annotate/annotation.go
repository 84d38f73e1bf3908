// Package annotate turns raw variant rows into annotated pharmacogenomic records.
package annotate

import (
	"strconv"
	"strings"
)

// Impact levels for annotated variants.
const (
	ImpactHigh     = "HIGH"
	ImpactModerate = "MODERATE"
	ImpactLow      = "LOW"
)

// Consequence categories (Sequence Ontology terms). The set is open; the
// annotator only ever infers the first four.
const (
	ConsequenceFrameshiftVariant = "frameshift_variant"
	ConsequenceMissenseVariant   = "missense_variant"
	ConsequenceInframeIndel      = "inframe_indel"
	ConsequenceIntergenicVariant = "intergenic_variant"
	ConsequenceStopGained        = "stop_gained"
	ConsequenceSynonymousVariant = "synonymous_variant"
)

// Clinical significance labels.
const (
	SignificancePathogenic       = "pathogenic"
	SignificanceLikelyPathogenic = "likely_pathogenic"
	SignificanceUncertain        = "uncertain"
	SignificanceLikelyBenign     = "likely_benign"
	SignificanceBenign           = "benign"
)

// Record is one annotated variant. Optional fields are nil when absent.
// A Record is built once by the Annotator and never mutated afterwards.
type Record struct {
	Chrom                 string   `json:"chrom"`
	Pos                   int64    `json:"pos"`
	Ref                   string   `json:"ref"`
	Alt                   string   `json:"alt"`
	VariantKey            string   `json:"variant_key"`
	ExternalID            *string  `json:"external_id"`
	Gene                  *string  `json:"gene"`
	Transcript            *string  `json:"transcript"`
	Consequence           string   `json:"consequence"`
	ClinicalSignificance  *string  `json:"clinvar_significance"`
	ClinVarID             *string  `json:"clinvar_id"`
	AlleleFrequency       *float64 `json:"gnomad_af"`
	CADDScore             *float64 `json:"cadd_score"`
	PhyloPScore           *float64 `json:"phylop_score"`
	PhastConsScore        *float64 `json:"phastcons_score"`
	ProteinDomain         *string  `json:"protein_domain"`
	IsDrugMetabolizerGene bool     `json:"is_drug_metabolizer_gene"`
	CYPFamily             *string  `json:"cyp_family"`
	PredictedImpact       string   `json:"predicted_impact"`
}

// IsPathogenic reports whether the record carries a pathogenic or likely
// pathogenic classification.
func (r *Record) IsPathogenic() bool {
	return r.ClinicalSignificance != nil && IsPathogenicSignificance(*r.ClinicalSignificance)
}

// Locus identifies a variant by chromosome, position and alleles.
type Locus struct {
	Chrom string
	Pos   int64
	Ref   string
	Alt   string
}

// Key returns the stable variant key chrom:pos:ref>alt.
func (l Locus) Key() string {
	return FormatVariantKey(l.Chrom, l.Pos, l.Ref, l.Alt)
}

// FormatVariantKey creates the variant key from its components.
func FormatVariantKey(chrom string, pos int64, ref, alt string) string {
	var sb strings.Builder
	sb.Grow(len(chrom) + len(ref) + len(alt) + 24)
	sb.WriteString(chrom)
	sb.WriteByte(':')
	var num [20]byte
	sb.Write(strconv.AppendInt(num[:0], pos, 10))
	sb.WriteByte(':')
	sb.WriteString(ref)
	sb.WriteByte('>')
	sb.WriteString(alt)
	return sb.String()
}

// IsPathogenicSignificance reports whether sig is pathogenic or likely_pathogenic.
func IsPathogenicSignificance(sig string) bool {
	return sig == SignificancePathogenic || sig == SignificanceLikelyPathogenic
}

// ImpactRank returns numeric rank for impact comparison (higher = more severe).
func ImpactRank(impact string) int {
	switch impact {
	case ImpactHigh:
		return 3
	case ImpactModerate:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
