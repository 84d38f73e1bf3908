package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/features"
	"github.com/inodb/vibe-pgx/internal/model"
)

const (
	syntheticSamples = 1000
	syntheticSeed    = 42
)

func newPredictCmd() *cobra.Command {
	var (
		in           inputFlags
		trainingPath string
		kind         string
		strategy     string
		conservation string
		top          int
	)

	cmd := &cobra.Command{
		Use:   "predict [flags] <input-file>",
		Short: "Score drug response or adverse reaction risk for a patient",
		Long: `Train a classifier on a labelled feature matrix, aggregate the patient's
variants and print the predicted probability with its risk category. The
drugs metabolized by the patient's pharmacogenes and the ranked feature
importances follow.

The training CSV has the seven feature columns plus a 0/1 label column.
Without --training a synthetic demonstration set is used.`,
		Example: `  vibe-pgx predict --training cohort.csv --kind adr patient.vcf
  vibe-pgx predict --strategy logistic patient.vcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := model.ParseKind(kind)
			if err != nil {
				return err
			}
			s, err := model.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			agg, err := newAggregator(cmd, conservation)
			if err != nil {
				return err
			}
			return runPredict(cmd, args[0], in, agg, trainingPath, k, s, top)
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&trainingPath, "training", "", "Labelled training CSV (default: synthetic data)")
	cmd.Flags().StringVar(&kind, "kind", string(model.KindDrugResponse), "Prediction: response, adr")
	cmd.Flags().StringVar(&strategy, "strategy", string(model.StrategyBoosted), "Classifier: logistic, boosted")
	cmd.Flags().StringVar(&conservation, "conservation", "", "Conservation feature: placeholder, mean (default: features.conservation)")
	cmd.Flags().IntVar(&top, "top", 0, "Number of feature importances to show (0 = all)")

	return cmd
}

func runPredict(cmd *cobra.Command, inputPath string, in inputFlags, agg *features.Aggregator,
	trainingPath string, kind model.Kind, strategy model.Strategy, top int) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	samples, labels, err := trainingData(trainingPath, logger)
	if err != nil {
		return err
	}

	predictor, err := model.NewPredictor(kind, strategy, logger)
	if err != nil {
		return err
	}
	if err := predictor.Train(samples, labels); err != nil {
		return fmt.Errorf("training: %w", err)
	}

	records, kb, err := patientRecords(cmd, inputPath, in)
	if err != nil {
		return err
	}
	v := aggregate(agg, records, logger)
	prob, err := predictor.Predict(v)
	if err != nil {
		return err
	}
	importance, err := predictor.FeatureImportance(top)
	if err != nil {
		return err
	}

	c := predictor.Classifier()
	strategyText := string(c.Strategy())
	if c.Fallback() {
		strategyText += fmt.Sprintf(" (requested %s)", c.Requested())
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	drugs := "none"
	if d := affectedDrugs(kb, records); len(d) > 0 {
		drugs = strings.Join(d, ", ")
	}

	fmt.Fprintf(tw, "prediction:\t%s\n", predictor.Kind())
	fmt.Fprintf(tw, "strategy:\t%s\n", strategyText)
	fmt.Fprintf(tw, "probability:\t%.4f\n", prob)
	fmt.Fprintf(tw, "risk:\t%s\n", model.RiskCategory(prob))
	fmt.Fprintf(tw, "drugs affected:\t%s\n", drugs)
	fmt.Fprintln(tw, "feature importance:")
	for _, fw := range importance {
		fmt.Fprintf(tw, "  %s\t%.4f\n", fw.Feature, fw.Importance)
	}
	return tw.Flush()
}

func trainingData(path string, logger *zap.Logger) ([]features.Vector, []int, error) {
	if path == "" {
		logger.Warn("no training data given, using synthetic samples",
			zap.Int("samples", syntheticSamples))
		samples, labels := model.SyntheticTrainingData(syntheticSamples, syntheticSeed)
		return samples, labels, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening training data: %w", err)
	}
	defer f.Close()
	return model.LoadTrainingCSV(f)
}
