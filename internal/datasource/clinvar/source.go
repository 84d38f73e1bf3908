package clinvar

import (
	"context"

	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/annotate"
)

// Source serves a Client as a live clinical-significance provider. Lookup
// failures are logged and reported as not found.
type Source struct {
	client *Client
}

// NewSource wraps c as an annotate.Provider.
func NewSource(c *Client) *Source {
	return &Source{client: c}
}

func (s *Source) Name() string { return "clinvar" }

func (s *Source) Lookup(ctx context.Context, l annotate.Locus) (annotate.ClinicalAssertion, bool) {
	a, found, err := s.client.Classify(ctx, l.Chrom, l.Pos, l.Ref, l.Alt)
	if err != nil {
		s.client.logger.Debug("clinical significance lookup failed",
			zap.String("source", s.Name()),
			zap.String("variant_key", l.Key()),
			zap.Error(err))
		return annotate.ClinicalAssertion{}, false
	}
	if !found {
		return annotate.ClinicalAssertion{}, false
	}
	return annotate.ClinicalAssertion{Significance: a.Significance, ID: a.ID}, true
}
