package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/annotate"
	"github.com/inodb/vibe-pgx/internal/features"
	"github.com/inodb/vibe-pgx/internal/knowledge"
	"github.com/inodb/vibe-pgx/internal/output"
	"github.com/inodb/vibe-pgx/internal/variantfile"
)

func newFeaturesCmd() *cobra.Command {
	var (
		in           inputFlags
		conservation string
	)

	cmd := &cobra.Command{
		Use:   "features [flags] <input-file>",
		Short: "Aggregate a patient's variants into a feature vector",
		Long: `Annotate the variants of one patient and print the aggregated feature
vector as CSV: is_drug_metabolizer, cadd_score, allele_frequency,
conservation_score, effect_missense, effect_nonsense, is_pathogenic.

A .json input is read as the output of an earlier annotate run.`,
		Example: `  vibe-pgx features patient.vcf
  vibe-pgx features --conservation mean patient.vcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agg, err := newAggregator(cmd, conservation)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			records, _, err := patientRecords(cmd, args[0], in)
			if err != nil {
				return err
			}
			v := aggregate(agg, records, logger)
			return output.WriteFeatureCSV(cmd.OutOrStdout(), []features.Vector{v})
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&conservation, "conservation", "", "Conservation feature: placeholder, mean (default: features.conservation)")

	return cmd
}

func newAggregator(cmd *cobra.Command, flagValue string) (*features.Aggregator, error) {
	value := flagValue
	if !cmd.Flags().Changed("conservation") {
		value = viper.GetString("features.conservation")
	}
	mode, err := features.ParseConservationMode(value)
	if err != nil {
		return nil, err
	}
	return features.NewAggregator(mode), nil
}

// patientRecords annotates one patient file. A .json file is taken as the
// output of an earlier annotate run and read back as is. The reference
// knowledge is returned alongside.
func patientRecords(cmd *cobra.Command, path string, in inputFlags) ([]*annotate.Record, *knowledge.Knowledge, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return annotatedRecords(path)
	}

	p, err := newPipeline()
	if err != nil {
		return nil, nil, err
	}
	defer p.Close()

	records, err := annotateInput(cmd, p, path, in)
	if err != nil {
		return nil, nil, err
	}
	return records, p.kb, nil
}

func aggregate(agg *features.Aggregator, records []*annotate.Record, logger *zap.Logger) features.Vector {
	v := agg.Aggregate(records)
	logger.Debug("aggregated patient features",
		zap.Int("records", len(records)),
		zap.String("conservation", string(agg.Mode())))
	return v
}

func annotatedRecords(path string) ([]*annotate.Record, *knowledge.Knowledge, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	defer logger.Sync()

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &variantfile.IOError{Path: path, Err: err}
	}
	defer f.Close()

	records, err := output.ReadJSON(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading annotated records from %s: %w", path, err)
	}
	kb, err := loadKnowledge(logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("read annotated records", zap.String("input", path), zap.Int("records", len(records)))
	return records, kb, nil
}
