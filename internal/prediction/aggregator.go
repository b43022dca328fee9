package prediction

import (
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

const (
	// perturbation applied to a singular covariance matrix
	perturbMagnitude = 1e-7
	// perturbation attempts before giving up
	maxPerturbations = 8
	// floor for a vanishing weight denominator
	denominatorFloor = 1e-7
	// tolerance for the weight-sum sanity check
	weightEpsilon = 1e-7
)

// Aggregator combines predictors' bets on a statement into a single
// probability, weighting by the inverse covariance of their historical
// errors and correcting per-predictor bias. The perturbation step is the
// only stochastic part; the seed is fixed so runs are reproducible.
type Aggregator struct {
	rng    *rand.Rand
	logger *zap.Logger
}

// New creates an aggregator with a fixed perturbation seed
func New(seed int64, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// CombineAll computes a combined bet for every statement. Numeric
// failures on one statement null its combined bet and leave the others
// untouched; contract bugs propagate.
func (a *Aggregator) CombineAll(
	statements []domain.PredictionStatement,
	bets []domain.PredictionBet,
	history []domain.HistoricalStatement,
) ([]domain.CombinedBet, error) {
	byStatement := make(map[int64]map[int64]float64)
	for _, b := range bets {
		if byStatement[b.StatementID] == nil {
			byStatement[b.StatementID] = make(map[int64]float64)
		}
		byStatement[b.StatementID][b.PredictorID] = b.Probability()
	}

	out := make([]domain.CombinedBet, 0, len(statements))
	for _, s := range statements {
		value, err := a.Combine(byStatement[s.ID], history)
		if err != nil {
			if apperrors.IsKind(err, apperrors.KindAggregation) {
				a.logger.Warn("prediction aggregation failed for statement",
					zap.Int64("statement_id", s.ID),
					zap.Error(err))
				out = append(out, domain.CombinedBet{StatementID: s.ID})
				continue
			}
			return nil, err
		}
		out = append(out, domain.CombinedBet{StatementID: s.ID, Value: value})
	}
	return out, nil
}

// Combine produces the combined bet for one statement from the current
// bets (predictor to probability) and the decided history of the poll's
// tag area. A nil result with nil error means no combination is defined.
func (a *Aggregator) Combine(current map[int64]float64, history []domain.HistoricalStatement) (*float64, error) {
	if len(current) == 0 {
		return nil, nil
	}

	predictors := make([]int64, 0, len(current))
	for id := range current {
		predictors = append(predictors, id)
	}
	sort.Slice(predictors, func(i, j int) bool { return predictors[i] < predictors[j] })

	if !hasUsableHistory(predictors, history) {
		v := clamp01(meanCurrent(predictors, current))
		return &v, nil
	}

	outcomeMean := 0.0
	for _, h := range history {
		outcomeMean += h.Outcome
	}
	outcomeMean /= float64(len(history))

	n := len(predictors)
	bias := make([]float64, n)
	errs := make([]map[int]float64, n) // history index -> error
	for i, id := range predictors {
		errs[i] = make(map[int]float64)
		sum, count := 0.0, 0
		for k, h := range history {
			if b, ok := h.Bets[id]; ok {
				errs[i][k] = h.Outcome - b
				sum += b
				count++
			}
		}
		if count > 0 {
			bias[i] = outcomeMean - sum/float64(count)
		}
	}

	sigma := covarianceMatrix(errs, n)
	if err := a.perturbUntilInvertible(sigma, n); err != nil {
		return nil, err
	}

	var inverse mat.Dense
	if err := inverse.Inverse(sigma); err != nil {
		return nil, apperrors.NewAggregationError("covariance matrix not invertible", err)
	}

	weights := make([]float64, n)
	denominator := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			weights[i] += inverse.At(i, j)
			denominator += inverse.At(i, j)
		}
	}
	if denominator == 0 {
		denominator = denominatorFloor
	}

	combined, weightSum := 0.0, 0.0
	for i, id := range predictors {
		w := weights[i] / denominator
		weightSum += w
		combined += w * clamp01(current[id]+bias[i])
	}
	if math.IsNaN(combined) || math.IsInf(combined, 0) {
		return nil, apperrors.NewAggregationError("combined bet is not a number", nil)
	}
	if math.Abs(weightSum-1) > weightEpsilon {
		a.logger.Warn("aggregation weights do not sum to one",
			zap.Float64("weight_sum", weightSum))
	}

	v := clamp01(combined)
	return &v, nil
}

// perturbUntilInvertible nudges a singular matrix with random-signed
// values of magnitude 1e-7 until its determinant is nonzero. Exhausting
// the attempt budget is a contract bug.
func (a *Aggregator) perturbUntilInvertible(sigma *mat.Dense, n int) error {
	if mat.Det(sigma) != 0 {
		return nil
	}
	for attempt := 0; attempt < maxPerturbations; attempt++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				delta := perturbMagnitude
				if a.rng.Intn(2) == 0 {
					delta = -delta
				}
				sigma.Set(i, j, sigma.At(i, j)+delta)
			}
		}
		if mat.Det(sigma) != 0 {
			return nil
		}
	}
	return apperrors.NewContractBug("covariance matrix still singular after perturbation", nil)
}

// covarianceMatrix builds the pairwise-deletion population covariance of
// the predictors' error vectors. Pairs with no common history contribute
// zero covariance.
func covarianceMatrix(errs []map[int]float64, n int) *mat.Dense {
	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov := pairwiseCovariance(errs[i], errs[j])
			sigma.Set(i, j, cov)
			sigma.Set(j, i, cov)
		}
	}
	return sigma
}

// pairwiseCovariance uses the population formula over indices where both
// error vectors are defined.
func pairwiseCovariance(a, b map[int]float64) float64 {
	var common []int
	for k := range a {
		if _, ok := b[k]; ok {
			common = append(common, k)
		}
	}
	if len(common) == 0 {
		return 0
	}

	meanA, meanB := 0.0, 0.0
	for _, k := range common {
		meanA += a[k]
		meanB += b[k]
	}
	meanA /= float64(len(common))
	meanB /= float64(len(common))

	cov := 0.0
	for _, k := range common {
		cov += (a[k] - meanA) * (b[k] - meanB)
	}
	return cov / float64(len(common))
}

func hasUsableHistory(predictors []int64, history []domain.HistoricalStatement) bool {
	for _, h := range history {
		for _, id := range predictors {
			if _, ok := h.Bets[id]; ok {
				return true
			}
		}
	}
	return false
}

func meanCurrent(predictors []int64, current map[int64]float64) float64 {
	sum := 0.0
	for _, id := range predictors {
		sum += current[id]
	}
	return sum / float64(len(predictors))
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
