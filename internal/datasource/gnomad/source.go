package gnomad

import (
	"context"

	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/annotate"
)

// Source serves a Client as an allele-frequency provider. Lookup failures
// are logged and reported as not found.
type Source struct {
	client *Client
}

// NewSource wraps c as an annotate.Provider.
func NewSource(c *Client) *Source {
	return &Source{client: c}
}

func (s *Source) Name() string { return "gnomad" }

func (s *Source) Lookup(ctx context.Context, l annotate.Locus) (float64, bool) {
	af, found, err := s.client.Frequency(ctx, l.Chrom, l.Pos, l.Ref, l.Alt)
	if err != nil {
		s.client.logger.Debug("allele frequency lookup failed",
			zap.String("source", s.Name()),
			zap.String("variant_key", l.Key()),
			zap.Error(err))
		return 0, false
	}
	return af, found
}
