// Package gnomad looks up population allele frequencies from the gnomAD
// GraphQL API.
package gnomad

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultURL       = "https://gnomad.broadinstitute.org/api"
	DefaultDataset   = "gnomad_r2_1"
	DefaultTimeout   = 5 * time.Second
	DefaultRateLimit = 10
	DefaultCacheSize = 4096
)

const variantQuery = `query GnomadVariant($variantId: String!, $dataset: DatasetId!) {
  variant(variantId: $variantId, dataset: $dataset) {
    variantId
    genome { af }
    exome { af }
  }
}`

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("gnomad unavailable")

// Config configures a Client. Zero values take the package defaults.
type Config struct {
	URL       string
	Dataset   string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	CacheSize int
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Dataset == "" {
		c.Dataset = DefaultDataset
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	return c
}

// frequency is a cached lookup outcome. Found is false for variants gnomAD
// reports as absent.
type frequency struct {
	AF    float64
	Found bool
}

// Client queries gnomAD for allele frequencies. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *lru.Cache[string, frequency]
	logger     *zap.Logger
}

// New creates a gnomAD client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	cache, err := lru.New[string, frequency](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gnomad cache: %w", err)
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		cache:      cache,
		logger:     zap.NewNop(),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gnomAD",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("source", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
	return c, nil
}

// SetLogger sets the logger for lookup failures.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// VariantID returns the gnomAD identifier chrom-pos-ref-alt, without a chr prefix.
func VariantID(chrom string, pos int64, ref, alt string) string {
	return fmt.Sprintf("%s-%d-%s-%s", strings.TrimPrefix(chrom, "chr"), pos, ref, alt)
}

// Frequency returns the allele frequency of a variant. The genome frequency
// is preferred over the exome frequency. found is false when gnomAD does not
// know the variant or reports no frequency.
func (c *Client) Frequency(ctx context.Context, chrom string, pos int64, ref, alt string) (af float64, found bool, err error) {
	id := VariantID(chrom, pos, ref, alt)
	if f, ok := c.cache.Get(id); ok {
		return f.AF, f.Found, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, false, err
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.query(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return 0, false, err
	}

	f := res.(frequency)
	c.cache.Add(id, f)
	return f.AF, f.Found, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type populationData struct {
	AF *float64 `json:"af"`
}

type variantResponse struct {
	Data struct {
		Variant *struct {
			VariantID string          `json:"variantId"`
			Genome    *populationData `json:"genome"`
			Exome     *populationData `json:"exome"`
		} `json:"variant"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) query(ctx context.Context, id string) (frequency, error) {
	body, err := json.Marshal(graphQLRequest{
		Query:     variantQuery,
		Variables: map[string]any{"variantId": id, "dataset": c.cfg.Dataset},
	})
	if err != nil {
		return frequency{}, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return frequency{}, fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return frequency{}, fmt.Errorf("execute graphql request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return frequency{}, fmt.Errorf("gnomad returned status %d", resp.StatusCode)
	}

	var vr variantResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return frequency{}, fmt.Errorf("decode graphql response: %w", err)
	}

	if vr.Data.Variant == nil {
		if len(vr.Errors) > 0 && !isNotFound(vr.Errors[0].Message) {
			return frequency{}, fmt.Errorf("gnomad api error: %s", vr.Errors[0].Message)
		}
		return frequency{}, nil
	}

	v := vr.Data.Variant
	switch {
	case v.Genome != nil && v.Genome.AF != nil:
		return frequency{AF: *v.Genome.AF, Found: true}, nil
	case v.Exome != nil && v.Exome.AF != nil:
		return frequency{AF: *v.Exome.AF, Found: true}, nil
	}
	return frequency{}, nil
}

func isNotFound(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "not found")
}
