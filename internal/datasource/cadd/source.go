package cadd

import (
	"context"

	"github.com/inodb/vibe-pgx/internal/annotate"
)

// Source serves a Store as a deleteriousness score provider.
type Source struct {
	store *Store
}

// NewSource wraps s as an annotate.Provider.
func NewSource(s *Store) *Source {
	return &Source{store: s}
}

func (s *Source) Name() string { return "cadd_duckdb" }

func (s *Source) Lookup(ctx context.Context, l annotate.Locus) (float64, bool) {
	return s.store.Lookup(ctx, l.Chrom, l.Pos, l.Ref, l.Alt)
}
