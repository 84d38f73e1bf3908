package vcf

// Variant is one raw variant row: the locus plus optional gene and
// transcript hints, before any annotation.
type Variant struct {
	Chrom      string         // Chromosome name (e.g., "10", "chr10")
	Pos        int64          // 1-based genomic position
	ID         string         // Variant identifier (e.g., rs ID), "." if absent
	Ref        string         // Reference allele
	Alt        string         // First alternate allele
	Gene       string         // Gene symbol hint, empty if absent
	Transcript string         // Transcript identifier hint, empty if absent
	Info       map[string]any // INFO field key-value pairs, nil for tabular input
}

// IsIndel returns true if the variant changes the allele length.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}
