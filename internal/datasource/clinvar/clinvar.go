// Package clinvar looks up clinical significance of variants in ClinVar via
// the NCBI E-utilities esearch and esummary endpoints.
package clinvar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/inodb/vibe-pgx/internal/annotate"
)

const (
	DefaultURL           = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	DefaultPositionField = "chrpos37"
	DefaultTimeout       = 5 * time.Second
	DefaultRateLimit     = 3 // NCBI limit without an API key
	DefaultCacheSize     = 4096

	maxSearchResults = 20
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("clinvar unavailable")

// Config configures a Client. Zero values take the package defaults.
type Config struct {
	URL    string
	Email  string
	APIKey string
	// PositionField is the esearch position field: chrpos37 for GRCh37,
	// chrpos for GRCh38.
	PositionField string
	Timeout       time.Duration
	RateLimit     float64 // requests per second
	CacheSize     int
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.PositionField == "" {
		c.PositionField = DefaultPositionField
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

// Assertion is a ClinVar classification mapped to the annotation vocabulary.
type Assertion struct {
	Significance string
	ID           string // VCV accession, or the ClinVar uid when absent
}

type cached struct {
	Assertion Assertion
	Found     bool
}

// Client queries ClinVar. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *lru.Cache[string, cached]
	logger     *zap.Logger
}

// New creates a ClinVar client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	cache, err := lru.New[string, cached](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create clinvar cache: %w", err)
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		cache:      cache,
		logger:     zap.NewNop(),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ClinVar",
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

// Classify returns the ClinVar classification of a variant. found is false
// when no ClinVar record matches the alleles or the classification does not
// map to a known label.
func (c *Client) Classify(ctx context.Context, chrom string, pos int64, ref, alt string) (a Assertion, found bool, err error) {
	key := annotate.FormatVariantKey(chrom, pos, ref, alt)
	if v, ok := c.cache.Get(key); ok {
		return v.Assertion, v.Found, nil
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.lookup(ctx, chrom, pos, ref, alt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Assertion{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return Assertion{}, false, err
	}

	v := res.(cached)
	c.cache.Add(key, v)
	return v.Assertion, v.Found, nil
}

func (c *Client) lookup(ctx context.Context, chrom string, pos int64, ref, alt string) (cached, error) {
	ids, err := c.search(ctx, chrom, searchPosition(pos, ref, alt))
	if err != nil {
		return cached{}, err
	}
	if len(ids) == 0 {
		return cached{}, nil
	}

	docs, err := c.summary(ctx, ids)
	if err != nil {
		return cached{}, err
	}

	for _, doc := range docs {
		if !doc.matches(ref, alt) {
			continue
		}
		sig, ok := MapSignificance(doc.classification())
		if !ok {
			continue
		}
		id := doc.Accession
		if id == "" {
			id = doc.UID
		}
		return cached{Assertion: Assertion{Significance: sig, ID: id}, Found: true}, nil
	}
	return cached{}, nil
}

// searchPosition is the position ClinVar indexes a variant under. VCF
// deletions carry an anchor base that ClinVar does not count, so their
// record starts at the first deleted base.
func searchPosition(pos int64, ref, alt string) int64 {
	if len(ref) > len(alt) && len(alt) > 0 && strings.EqualFold(ref[:1], alt[:1]) {
		return pos + 1
	}
	return pos
}

type searchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// search returns ClinVar uids at a chromosome position.
func (c *Client) search(ctx context.Context, chrom string, pos int64) ([]string, error) {
	params := url.Values{
		"db":      {"clinvar"},
		"term":    {fmt.Sprintf("%s[chr] AND %d[%s]", strings.TrimPrefix(chrom, "chr"), pos, c.cfg.PositionField)},
		"retmode": {"json"},
		"retmax":  {fmt.Sprint(maxSearchResults)},
	}

	var sr searchResponse
	if err := c.get(ctx, "esearch.fcgi", params, &sr); err != nil {
		return nil, fmt.Errorf("clinvar search: %w", err)
	}
	return sr.Result.IDList, nil
}

type description struct {
	Description string `json:"description"`
}

type variation struct {
	CanonicalSPDI string `json:"canonical_spdi"`
}

type document struct {
	UID                    string       `json:"uid"`
	Accession              string       `json:"accession"`
	GermlineClassification *description `json:"germline_classification"`
	ClinicalSignificance   *description `json:"clinical_significance"`
	VariationSet           []variation  `json:"variation_set"`
}

// classification returns the germline classification, or the legacy
// clinical significance field for older records.
func (d document) classification() string {
	if d.GermlineClassification != nil && d.GermlineClassification.Description != "" {
		return d.GermlineClassification.Description
	}
	if d.ClinicalSignificance != nil {
		return d.ClinicalSignificance.Description
	}
	return ""
}

// matches reports whether any canonical SPDI of the record describes the
// same change as the VCF alleles. Records without SPDI never match.
//
// Canonical SPDI drops the anchor base of indels and expands them across
// repeats, so a VCF deletion GA>G is stored as deleted "A", inserted "".
// Both sides are trimmed to their minimal differing alleles before they
// are compared.
func (d document) matches(ref, alt string) bool {
	wantDel, wantIns := trimAlleles(ref, alt)
	for _, v := range d.VariationSet {
		parts := strings.Split(v.CanonicalSPDI, ":")
		if len(parts) != 4 {
			continue
		}
		del, ins := trimAlleles(parts[2], parts[3])
		if del == wantDel && ins == wantIns {
			return true
		}
	}
	return false
}

// trimAlleles upper-cases both alleles and removes their shared suffix,
// then their shared prefix.
func trimAlleles(ref, alt string) (string, string) {
	ref, alt = strings.ToUpper(ref), strings.ToUpper(alt)
	for len(ref) > 0 && len(alt) > 0 && ref[len(ref)-1] == alt[len(alt)-1] {
		ref, alt = ref[:len(ref)-1], alt[:len(alt)-1]
	}
	for len(ref) > 0 && len(alt) > 0 && ref[0] == alt[0] {
		ref, alt = ref[1:], alt[1:]
	}
	return ref, alt
}

// summary fetches document summaries in the order of ids.
func (c *Client) summary(ctx context.Context, ids []string) ([]document, error) {
	params := url.Values{
		"db":      {"clinvar"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}

	var raw struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := c.get(ctx, "esummary.fcgi", params, &raw); err != nil {
		return nil, fmt.Errorf("clinvar summary: %w", err)
	}

	docs := make([]document, 0, len(ids))
	for _, id := range ids {
		msg, ok := raw.Result[id]
		if !ok {
			continue
		}
		var doc document
		if err := json.Unmarshal(msg, &doc); err != nil {
			return nil, fmt.Errorf("clinvar summary %s: %w", id, err)
		}
		if doc.UID == "" {
			doc.UID = id
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// MapSignificance maps a ClinVar classification description to the
// annotation vocabulary. Unrecognised descriptions report false.
func MapSignificance(desc string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(desc))
	switch d {
	case "pathogenic":
		return annotate.SignificancePathogenic, true
	case "likely pathogenic", "pathogenic/likely pathogenic":
		return annotate.SignificanceLikelyPathogenic, true
	case "uncertain significance":
		return annotate.SignificanceUncertain, true
	case "likely benign", "benign/likely benign":
		return annotate.SignificanceLikelyBenign, true
	case "benign":
		return annotate.SignificanceBenign, true
	}
	if strings.HasPrefix(d, "conflicting") {
		return annotate.SignificanceUncertain, true
	}
	return "", false
}
