package main

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/annotate"
	"github.com/inodb/vibe-pgx/internal/datasource/cadd"
	"github.com/inodb/vibe-pgx/internal/datasource/clinvar"
	"github.com/inodb/vibe-pgx/internal/datasource/gnomad"
	"github.com/inodb/vibe-pgx/internal/knowledge"
)

// pipeline is an annotator wired from configuration together with the
// resources it holds open.
type pipeline struct {
	annotator *annotate.Annotator
	kb        *knowledge.Knowledge
	logger    *zap.Logger
	closers   []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = p.logger.Sync()
}

// newPipeline loads reference knowledge and attaches the enabled external
// sources. Live ClinVar goes ahead of the fallback table; the DuckDB score
// store goes after the in-memory scores.
func newPipeline() (*pipeline, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	p := &pipeline{logger: logger}

	kb, err := loadKnowledge(logger)
	if err != nil {
		return nil, err
	}
	p.kb = kb

	ann := annotate.NewAnnotator(kb)
	ann.SetLogger(logger)
	ann.SetLookupTimeout(viper.GetDuration("annotate.lookup_timeout"))
	p.annotator = ann

	if viper.GetBool("clinvar.enabled") {
		c, err := clinvar.New(clinvar.Config{
			URL:           viper.GetString("clinvar.url"),
			Email:         viper.GetString("clinvar.email"),
			APIKey:        viper.GetString("clinvar.api_key"),
			PositionField: viper.GetString("clinvar.position_field"),
			Timeout:       viper.GetDuration("clinvar.timeout"),
			RateLimit:     viper.GetFloat64("clinvar.rate_limit"),
		})
		if err != nil {
			return nil, fmt.Errorf("clinvar: %w", err)
		}
		c.SetLogger(logger)
		ann.UseLiveClinical(clinvar.NewSource(c))
		logger.Info("live ClinVar lookups enabled", zap.String("url", viper.GetString("clinvar.url")))
	}

	if viper.GetBool("gnomad.enabled") {
		g, err := gnomad.New(gnomad.Config{
			URL:       viper.GetString("gnomad.url"),
			Dataset:   viper.GetString("gnomad.dataset"),
			Timeout:   viper.GetDuration("gnomad.timeout"),
			RateLimit: viper.GetFloat64("gnomad.rate_limit"),
			CacheSize: viper.GetInt("gnomad.cache_size"),
		})
		if err != nil {
			return nil, fmt.Errorf("gnomad: %w", err)
		}
		g.SetLogger(logger)
		ann.AddFrequencySource(gnomad.NewSource(g))
	}

	if path := viper.GetString("scores.db"); path != "" {
		store, err := cadd.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening score store: %w", err)
		}
		p.closers = append(p.closers, store.Close)
		if store.Loaded() {
			ann.AddScoreProvider(cadd.NewSource(store))
		} else {
			logger.Warn("score store is empty; run load-scores first", zap.String("path", path))
		}
	}

	return p, nil
}

func loadKnowledge(logger *zap.Logger) (*knowledge.Knowledge, error) {
	kb, err := knowledge.Load(knowledge.Paths{
		MetabolizerGenes: viper.GetString("knowledge.metabolizer_genes"),
		ClinicalFallback: viper.GetString("knowledge.clinical_fallback"),
		Scores:           viper.GetString("knowledge.scores"),
	})
	if err != nil {
		return nil, fmt.Errorf("loading reference knowledge: %w", err)
	}
	logger.Debug("loaded reference knowledge",
		zap.Int("genes", kb.GeneCount()),
		zap.Int("clinical", kb.ClinicalCount()),
		zap.Int("scores", kb.ScoreCount()))
	return kb, nil
}

// affectedDrugs lists, sorted and without duplicates, the drugs metabolized
// by the genes of the given records.
func affectedDrugs(kb *knowledge.Knowledge, records []*annotate.Record) []string {
	seen := make(map[string]bool)
	var drugs []string
	for _, r := range records {
		if !r.IsDrugMetabolizerGene || r.Gene == nil {
			continue
		}
		for _, d := range kb.DrugsForGene(*r.Gene) {
			if !seen[d] {
				seen[d] = true
				drugs = append(drugs, d)
			}
		}
	}
	sort.Strings(drugs)
	return drugs
}
