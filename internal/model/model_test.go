package model

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/vibe-pgx/internal/features"
)

func TestRiskCategory(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0, RiskLow},
		{0.329, RiskLow},
		{0.33, RiskMedium},
		{0.5, RiskMedium},
		{0.669, RiskMedium},
		{0.67, RiskHigh},
		{1, RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskCategory(tt.p), "p=%v", tt.p)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyBoosted, s)

	s, err = ParseStrategy("logistic")
	require.NoError(t, err)
	assert.Equal(t, StrategyLogistic, s)

	_, err = ParseStrategy("forest")
	assert.Error(t, err)
}

func TestBoostedFallsBackToLogistic(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c, err := NewClassifier(StrategyBoosted, DefaultParams, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, StrategyBoosted, c.Requested())
	assert.Equal(t, StrategyLogistic, c.Strategy())
	assert.True(t, c.Fallback())
	assert.Equal(t, 1, logs.Len())
}

func TestLogisticNoFallback(t *testing.T) {
	c, err := NewClassifier(StrategyLogistic, DefaultParams, nil)
	require.NoError(t, err)
	assert.False(t, c.Fallback())
}

func TestPredictBeforeTrain(t *testing.T) {
	p, err := NewDrugResponsePredictor(StrategyLogistic, nil)
	require.NoError(t, err)

	_, err = p.Predict(features.Vector{})
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = p.FeatureImportance(3)
	assert.ErrorIs(t, err, ErrModelNotReady)
}

func TestTrainValidation(t *testing.T) {
	c, err := NewClassifier(StrategyLogistic, DefaultParams, nil)
	require.NoError(t, err)
	names := []string{"a", "b"}

	_, err = c.Train(names, nil, nil)
	assert.Error(t, err)

	_, err = c.Train(names, [][]float64{{1, 2}}, []int{1, 0})
	assert.Error(t, err)

	_, err = c.Train(names, [][]float64{{1}}, []int{1})
	assert.Error(t, err)

	_, err = c.Train(names, [][]float64{{1, 2}}, []int{2})
	assert.Error(t, err)
}

func TestTrainSeparatesClasses(t *testing.T) {
	samples, labels := SyntheticTrainingData(400, 42)
	p, err := NewDrugResponsePredictor(StrategyLogistic, nil)
	require.NoError(t, err)
	require.NoError(t, p.Train(samples, labels))

	risky := features.Vector{
		IsDrugMetabolizer: 1,
		CADDScore:         32,
		AlleleFrequency:   0.0001,
		ConservationScore: 0.5,
		EffectMissense:    1,
		IsPathogenic:      1,
	}
	benign := features.Vector{
		CADDScore:         2,
		AlleleFrequency:   0.2,
		ConservationScore: 0.5,
	}

	pr, err := p.Predict(risky)
	require.NoError(t, err)
	pb, err := p.Predict(benign)
	require.NoError(t, err)

	assert.Greater(t, pr, pb)
	assert.Greater(t, pr, 0.5)
	assert.Less(t, pb, 0.5)
	assert.GreaterOrEqual(t, pb, 0.0)
	assert.LessOrEqual(t, pr, 1.0)
}

func TestADRPredictorBalancesClasses(t *testing.T) {
	samples, labels := SyntheticTrainingData(300, 7)
	p, err := NewADRRiskPredictor(StrategyLogistic, nil)
	require.NoError(t, err)
	assert.Equal(t, KindADR, p.Kind())
	require.NoError(t, p.Train(samples, labels))

	prob, err := p.Predict(samples[0])
	require.NoError(t, err)
	assert.True(t, prob >= 0 && prob <= 1)
}

func TestNewPredictorKind(t *testing.T) {
	p, err := NewPredictor(KindADR, StrategyLogistic, nil)
	require.NoError(t, err)
	assert.Equal(t, KindADR, p.Kind())

	p, err = NewPredictor(KindDrugResponse, StrategyBoosted, nil)
	require.NoError(t, err)
	assert.Equal(t, KindDrugResponse, p.Kind())
	assert.Equal(t, StrategyLogistic, p.Classifier().Strategy())
}

func TestFeatureImportance(t *testing.T) {
	samples, labels := SyntheticTrainingData(400, 1)
	p, err := NewDrugResponsePredictor(StrategyLogistic, nil)
	require.NoError(t, err)
	require.NoError(t, p.Train(samples, labels))

	all, err := p.FeatureImportance(0)
	require.NoError(t, err)
	require.Len(t, all, len(features.Columns()))

	sum := 0.0
	for i, fw := range all {
		sum += fw.Importance
		if i > 0 {
			assert.GreaterOrEqual(t, all[i-1].Importance, fw.Importance)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	top, err := p.FeatureImportance(3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, all[:3], top)

	// Pathogenicity drives the synthetic labels the most.
	assert.Equal(t, "is_pathogenic", all[0].Feature)
}

func TestPredictWrongWidth(t *testing.T) {
	c, err := NewClassifier(StrategyLogistic, DefaultParams, nil)
	require.NoError(t, err)
	m, err := c.Train([]string{"a", "b"}, [][]float64{{0, 1}, {1, 0}}, []int{0, 1})
	require.NoError(t, err)

	_, err = m.PredictProbability([]float64{1})
	assert.Error(t, err)
}

func TestConstantColumn(t *testing.T) {
	c, err := NewClassifier(StrategyLogistic, DefaultParams, nil)
	require.NoError(t, err)
	X := [][]float64{{1, 0}, {1, 1}, {1, 0}, {1, 1}}
	m, err := c.Train([]string{"const", "x"}, X, []int{0, 1, 0, 1})
	require.NoError(t, err)

	p0, err := m.PredictProbability([]float64{1, 0})
	require.NoError(t, err)
	p1, err := m.PredictProbability([]float64{1, 1})
	require.NoError(t, err)
	assert.Less(t, p0, p1)
}

func TestConcurrentPredict(t *testing.T) {
	samples, labels := SyntheticTrainingData(200, 3)
	p, err := NewDrugResponsePredictor(StrategyLogistic, nil)
	require.NoError(t, err)
	require.NoError(t, p.Train(samples, labels))

	want, err := p.Predict(samples[5])
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]float64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = p.Predict(samples[5])
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestSyntheticTrainingDataDeterministic(t *testing.T) {
	a, la := SyntheticTrainingData(300, 9)
	b, lb := SyntheticTrainingData(300, 9)
	assert.Equal(t, a, b)
	assert.Equal(t, la, lb)
	assert.Contains(t, la, 0)
	assert.Contains(t, la, 1)
}

func TestLoadTrainingCSV(t *testing.T) {
	in := "is_drug_metabolizer,cadd_score,allele_frequency,conservation_score,effect_missense,effect_nonsense,is_pathogenic,label\n" +
		"1,30,0.001,0.5,1,0,1,1\n" +
		"0,3.5,0.2,0.5,0,0,0,0\n"

	samples, labels, err := LoadTrainingCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, []int{1, 0}, labels)
	assert.Equal(t, 1, samples[0].IsDrugMetabolizer)
	assert.Equal(t, 30.0, samples[0].CADDScore)
	assert.Equal(t, 0.001, samples[0].AlleleFrequency)
	assert.Equal(t, 1, samples[0].IsPathogenic)
	assert.Equal(t, 3.5, samples[1].CADDScore)
}

func TestLoadTrainingCSVErrors(t *testing.T) {
	header := "is_drug_metabolizer,cadd_score,allele_frequency,conservation_score,effect_missense,effect_nonsense,is_pathogenic,label\n"

	_, _, err := LoadTrainingCSV(strings.NewReader(header))
	assert.Error(t, err)

	_, _, err = LoadTrainingCSV(strings.NewReader(header + "1,30,0.001,0.5,1,0,1,3\n"))
	assert.ErrorContains(t, err, "label 3")

	_, _, err = LoadTrainingCSV(strings.NewReader(header + "1,abc,0.001,0.5,1,0,1,1\n"))
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindDrugResponse, k)

	k, err = ParseKind("ADR")
	require.NoError(t, err)
	assert.Equal(t, KindADR, k)

	_, err = ParseKind("toxicity")
	assert.Error(t, err)
}
