package model

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/features"
)

// Kind names a prediction target.
type Kind string

const (
	KindDrugResponse Kind = "response"
	KindADR          Kind = "adr"
)

// ParseKind converts a configuration value. Empty selects drug response.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindDrugResponse:
		return KindDrugResponse, nil
	case KindADR:
		return KindADR, nil
	}
	return "", fmt.Errorf("unknown prediction kind %q (use response or adr)", s)
}

// Risk categories returned by RiskCategory.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskCategory buckets a probability: below 0.33 is low, below 0.67 medium,
// otherwise high.
func RiskCategory(p float64) string {
	switch {
	case p < 0.33:
		return RiskLow
	case p < 0.67:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Predictor trains on patient feature vectors and serves probabilities.
// Train publishes a new immutable model; Predict reads the current one
// without locking.
type Predictor struct {
	kind       Kind
	classifier *Classifier
	model      atomic.Pointer[TrainedModel]
	logger     *zap.Logger
}

// NewDrugResponsePredictor predicts the probability of a good drug response.
func NewDrugResponsePredictor(strategy Strategy, logger *zap.Logger) (*Predictor, error) {
	return newPredictor(KindDrugResponse, strategy, DefaultParams, logger)
}

// NewADRRiskPredictor predicts adverse drug reaction risk. Positive samples
// are up-weighted to balance rare reactions.
func NewADRRiskPredictor(strategy Strategy, logger *zap.Logger) (*Predictor, error) {
	return newPredictor(KindADR, strategy, Params{
		LearningRate:   0.05,
		Epochs:         1000,
		L2:             0.01,
		BalanceClasses: true,
	}, logger)
}

// NewPredictor creates the predictor for kind.
func NewPredictor(kind Kind, strategy Strategy, logger *zap.Logger) (*Predictor, error) {
	if kind == KindADR {
		return NewADRRiskPredictor(strategy, logger)
	}
	return NewDrugResponsePredictor(strategy, logger)
}

func newPredictor(kind Kind, strategy Strategy, params Params, logger *zap.Logger) (*Predictor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := NewClassifier(strategy, params, logger)
	if err != nil {
		return nil, err
	}
	return &Predictor{kind: kind, classifier: c, logger: logger}, nil
}

// Kind returns the prediction target.
func (p *Predictor) Kind() Kind { return p.kind }

// Classifier returns the classifier, exposing the resolved strategy.
func (p *Predictor) Classifier() *Classifier { return p.classifier }

// Train fits a model on feature vectors with binary labels and makes it
// the serving model.
func (p *Predictor) Train(samples []features.Vector, labels []int) error {
	X := make([][]float64, len(samples))
	for i, s := range samples {
		X[i] = s.Values()
	}
	m, err := p.classifier.Train(features.Columns(), X, labels)
	if err != nil {
		return err
	}
	p.model.Store(m)
	p.logger.Info("trained model",
		zap.String("kind", string(p.kind)),
		zap.String("strategy", string(m.Strategy())),
		zap.Int("samples", len(samples)))
	return nil
}

// Predict returns the positive-class probability for one patient.
func (p *Predictor) Predict(v features.Vector) (float64, error) {
	m := p.model.Load()
	if m == nil {
		return 0, ErrModelNotReady
	}
	return m.PredictProbability(v.Values())
}

// FeatureImportance returns the top k features of the serving model.
func (p *Predictor) FeatureImportance(topK int) ([]FeatureWeight, error) {
	m := p.model.Load()
	if m == nil {
		return nil, ErrModelNotReady
	}
	return m.FeatureImportance(topK), nil
}
