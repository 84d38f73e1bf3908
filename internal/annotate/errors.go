package annotate

import (
	"fmt"

	"github.com/inodb/vibe-pgx/internal/vcf"
)

// ValidationError reports a malformed required input to Annotate.
// errors.Is(err, vcf.ErrInvalid) holds for every ValidationError.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return vcf.ErrInvalid
}

// validate checks the required fields of a raw variant.
func validate(v *vcf.Variant) error {
	if v.Chrom == "" {
		return &ValidationError{Field: "chrom", Value: v.Chrom, Message: "must not be empty"}
	}
	if v.Pos < 0 {
		return &ValidationError{Field: "pos", Value: fmt.Sprint(v.Pos), Message: "must not be negative"}
	}
	if err := validateAllele("ref", v.Ref); err != nil {
		return err
	}
	return validateAllele("alt", v.Alt)
}

func validateAllele(field, allele string) error {
	if allele == "" {
		return &ValidationError{Field: field, Value: allele, Message: "must not be empty"}
	}
	for i := 0; i < len(allele); i++ {
		switch allele[i] {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return &ValidationError{Field: field, Value: allele, Message: "allele must contain only uppercase A, C, G, T or N"}
		}
	}
	return nil
}
