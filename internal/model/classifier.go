// Package model provides the binary risk classifiers fed by patient feature
// vectors. Training produces an immutable TrainedModel; predictions against
// it need no locking.
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrModelNotReady is returned when predicting before training.
var ErrModelNotReady = errors.New("model not trained")

// Strategy names a classifier family.
type Strategy string

const (
	// StrategyLogistic is L2-regularised logistic regression on standardised features.
	StrategyLogistic Strategy = "logistic"
	// StrategyBoosted requests gradient-boosted trees. No boosted implementation
	// is built in, so it resolves to StrategyLogistic.
	StrategyBoosted Strategy = "boosted"
)

// available lists the strategies this build can train.
var available = map[Strategy]bool{
	StrategyLogistic: true,
}

// ParseStrategy converts a configuration value. Empty selects boosted,
// matching the default of the predictors.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyBoosted:
		return StrategyBoosted, nil
	case StrategyLogistic:
		return StrategyLogistic, nil
	}
	return "", fmt.Errorf("unknown model strategy %q (use logistic or boosted)", s)
}

// Params are the training hyperparameters.
type Params struct {
	LearningRate float64
	Epochs       int
	L2           float64
	// BalanceClasses weights positive samples by negatives/positives.
	BalanceClasses bool
}

// DefaultParams are the hyperparameters used when none are given.
var DefaultParams = Params{LearningRate: 0.1, Epochs: 500, L2: 0.01}

// Classifier trains binary classifiers with a strategy fixed at construction.
type Classifier struct {
	requested Strategy
	strategy  Strategy
	params    Params
}

// NewClassifier resolves the requested strategy once. An unavailable
// strategy falls back to logistic regression and is reported by Fallback.
func NewClassifier(requested Strategy, params Params, logger *zap.Logger) (*Classifier, error) {
	if requested != StrategyLogistic && requested != StrategyBoosted {
		return nil, fmt.Errorf("unknown model strategy %q", requested)
	}
	if params.Epochs <= 0 || params.LearningRate <= 0 {
		return nil, fmt.Errorf("invalid training params: epochs=%d learning_rate=%g", params.Epochs, params.LearningRate)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Classifier{requested: requested, strategy: requested, params: params}
	if !available[requested] {
		c.strategy = StrategyLogistic
		logger.Warn("classifier strategy not available, falling back",
			zap.String("requested", string(requested)), zap.String("strategy", string(c.strategy)))
	}
	return c, nil
}

// Requested returns the strategy asked for at construction.
func (c *Classifier) Requested() Strategy { return c.requested }

// Strategy returns the strategy actually used for training.
func (c *Classifier) Strategy() Strategy { return c.strategy }

// Fallback reports whether the requested strategy was replaced.
func (c *Classifier) Fallback() bool { return c.requested != c.strategy }

// Train fits a model to rows X with binary labels y. names labels the
// feature columns for importance reporting.
func (c *Classifier) Train(names []string, X [][]float64, y []int) (*TrainedModel, error) {
	if len(X) == 0 {
		return nil, errors.New("no training samples")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%d samples but %d labels", len(X), len(y))
	}
	d := len(names)
	for i, row := range X {
		if len(row) != d {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), d)
		}
		if y[i] != 0 && y[i] != 1 {
			return nil, fmt.Errorf("sample %d has label %d, want 0 or 1", i, y[i])
		}
	}

	means, stds := standardisation(X, d)
	scaled := make([][]float64, len(X))
	for i, row := range X {
		scaled[i] = scale(row, means, stds)
	}

	weights := sampleWeights(y, c.params.BalanceClasses)
	w, b := fitLogistic(scaled, y, weights, c.params)

	return &TrainedModel{
		strategy: c.strategy,
		names:    append([]string(nil), names...),
		means:    means,
		stds:     stds,
		weights:  w,
		bias:     b,
	}, nil
}

// standardisation returns per-column mean and standard deviation. Constant
// columns get a deviation of 1.
func standardisation(X [][]float64, d int) (means, stds []float64) {
	means = make([]float64, d)
	stds = make([]float64, d)
	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		m, s := stat.MeanStdDev(col, nil)
		if math.IsNaN(s) || s == 0 {
			s = 1
		}
		means[j], stds[j] = m, s
	}
	return means, stds
}

func scale(x, means, stds []float64) []float64 {
	out := make([]float64, len(x))
	floats.SubTo(out, x, means)
	floats.Div(out, stds)
	return out
}

func sampleWeights(y []int, balance bool) []float64 {
	w := make([]float64, len(y))
	for i := range w {
		w[i] = 1
	}
	if !balance {
		return w
	}
	var pos, neg float64
	for _, label := range y {
		if label == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return w
	}
	for i, label := range y {
		if label == 1 {
			w[i] = neg / pos
		}
	}
	return w
}

// fitLogistic runs full-batch gradient descent from zero weights, so
// training is deterministic.
func fitLogistic(X [][]float64, y []int, sw []float64, p Params) ([]float64, float64) {
	d := len(X[0])
	w := make([]float64, d)
	grad := make([]float64, d)
	var b float64
	total := floats.Sum(sw)

	for epoch := 0; epoch < p.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gb float64
		for i, row := range X {
			e := (sigmoid(floats.Dot(w, row)+b) - float64(y[i])) * sw[i]
			floats.AddScaled(grad, e, row)
			gb += e
		}
		floats.Scale(1/total, grad)
		floats.AddScaled(grad, p.L2, w)
		floats.AddScaled(w, -p.LearningRate, grad)
		b -= p.LearningRate * gb / total
	}
	return w, b
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// FeatureWeight is one entry of a feature-importance ranking.
type FeatureWeight struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TrainedModel is a fitted classifier. It is never mutated after training
// and is safe for concurrent use.
type TrainedModel struct {
	strategy Strategy
	names    []string
	means    []float64
	stds     []float64
	weights  []float64
	bias     float64
}

// Strategy returns the strategy the model was trained with.
func (m *TrainedModel) Strategy() Strategy { return m.strategy }

// PredictProbability returns the positive-class probability for x.
func (m *TrainedModel) PredictProbability(x []float64) (float64, error) {
	if len(x) != len(m.weights) {
		return 0, fmt.Errorf("got %d features, want %d", len(x), len(m.weights))
	}
	return sigmoid(floats.Dot(m.weights, scale(x, m.means, m.stds)) + m.bias), nil
}

// FeatureImportance ranks features by absolute standardised weight,
// normalised to sum to 1. topK <= 0 returns all features.
func (m *TrainedModel) FeatureImportance(topK int) []FeatureWeight {
	abs := make([]float64, len(m.weights))
	for i, w := range m.weights {
		abs[i] = math.Abs(w)
	}
	total := floats.Sum(abs)

	out := make([]FeatureWeight, len(abs))
	for i, a := range abs {
		imp := 0.0
		if total > 0 {
			imp = a / total
		}
		out[i] = FeatureWeight{Feature: m.names[i], Importance: imp}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature < out[j].Feature
	})
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out
}
