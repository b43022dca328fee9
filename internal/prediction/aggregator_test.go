package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowback-engine/internal/domain"
)

func newTestAggregator() *Aggregator {
	return New(1, zap.NewNop())
}

func TestCombineNoBets(t *testing.T) {
	a := newTestAggregator()
	v, err := a.Combine(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCombineNoHistoryFallsBackToMean(t *testing.T) {
	a := newTestAggregator()

	v, err := a.Combine(map[int64]float64{1: 0.8, 2: 0.4}, nil)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.InDelta(t, 0.6, *v, 1e-9)

	// history exists but none of the current predictors appear in it
	history := []domain.HistoricalStatement{
		{StatementID: 900, Outcome: 1, Bets: map[int64]float64{99: 0.7}},
	}
	v, err = a.Combine(map[int64]float64{1: 1.0}, history)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.InDelta(t, 1.0, *v, 1e-9)
}

func TestCombineSinglePredictorBiasCorrection(t *testing.T) {
	a := newTestAggregator()

	// the predictor always bet 0.2 above the realized outcome rate
	history := []domain.HistoricalStatement{
		{StatementID: 901, Outcome: 1, Bets: map[int64]float64{1: 1.0}},
		{StatementID: 902, Outcome: 0, Bets: map[int64]float64{1: 0.4}},
	}

	v, err := a.Combine(map[int64]float64{1: 0.7}, history)
	require.NoError(t, err)
	require.NotNil(t, v)
	// bias = 0.5 - 0.7 = -0.2, single weight 1 → 0.7 - 0.2
	assert.InDelta(t, 0.5, *v, 1e-3)
}

func TestCombineWeightsByInverseCovariance(t *testing.T) {
	a := newTestAggregator()

	history := []domain.HistoricalStatement{
		{StatementID: 901, Outcome: 1, Bets: map[int64]float64{1: 1.0, 2: 0.9}},
		{StatementID: 902, Outcome: 0, Bets: map[int64]float64{1: 0.8, 2: 0.1}},
	}
	current := map[int64]float64{1: 0.6, 2: 0.4}

	v, err := a.Combine(current, history)
	require.NoError(t, err)
	require.NotNil(t, v)
	// hand computation: bias = [-0.4, 0], covariance
	// [[0.16, 0.04], [0.04, 0.01]], weights [-1/3, 4/3]
	// → -1/3·0.2 + 4/3·0.4 ≈ 0.4667 (matrix is singular, so the tiny
	// perturbation shifts the value by ~1e-5)
	assert.InDelta(t, 0.46667, *v, 1e-3)
	assert.GreaterOrEqual(t, *v, 0.0)
	assert.LessOrEqual(t, *v, 1.0)
}

func TestCombineClampsToUnitInterval(t *testing.T) {
	a := newTestAggregator()

	// strong negative bias pushes the corrected bet below zero
	history := []domain.HistoricalStatement{
		{StatementID: 901, Outcome: 0, Bets: map[int64]float64{1: 1.0}},
		{StatementID: 902, Outcome: 0, Bets: map[int64]float64{1: 0.8}},
	}

	v, err := a.Combine(map[int64]float64{1: 0.1}, history)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.GreaterOrEqual(t, *v, 0.0)
	assert.LessOrEqual(t, *v, 1.0)
}

func TestCombineDeterministicForSeed(t *testing.T) {
	history := []domain.HistoricalStatement{
		{StatementID: 901, Outcome: 1, Bets: map[int64]float64{1: 1.0, 2: 0.9}},
		{StatementID: 902, Outcome: 0, Bets: map[int64]float64{1: 0.8, 2: 0.1}},
	}
	current := map[int64]float64{1: 0.6, 2: 0.4}

	first, err := New(7, zap.NewNop()).Combine(current, history)
	require.NoError(t, err)
	second, err := New(7, zap.NewNop()).Combine(current, history)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
}

func TestCombineAll(t *testing.T) {
	a := newTestAggregator()

	statements := []domain.PredictionStatement{
		{ID: 1, PollID: 1},
		{ID: 2, PollID: 1},
	}
	bets := []domain.PredictionBet{
		{StatementID: 1, PredictorID: 1, Score: 4}, // probability 0.8
		{StatementID: 1, PredictorID: 2, Score: 2}, // probability 0.4
	}

	combined, err := a.CombineAll(statements, bets, nil)
	require.NoError(t, err)
	require.Len(t, combined, 2)

	require.NotNil(t, combined[0].Value)
	assert.InDelta(t, 0.6, *combined[0].Value, 1e-9)

	// statement 2 has no bets: combined bet stays null
	assert.Equal(t, int64(2), combined[1].StatementID)
	assert.Nil(t, combined[1].Value)
}
