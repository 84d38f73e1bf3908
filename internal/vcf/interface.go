// Package vcf provides VCF file parsing functionality.
package vcf

import "errors"

// VariantParser is the interface for parsers that read variants.
// Both the VCF and the tabular parser implement this interface.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// ErrInvalid is matched by every row-level validation error.
var ErrInvalid = errors.New("invalid variant")
