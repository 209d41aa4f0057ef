package stats

import (
	"math"
	"math/rand"
	"sort"

	"github.com/kensa-dev/kensa/internal/models"
)

// ConfidenceInterval is a percentile bootstrap interval around a rate.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

const bootstrapIterations = 10000

// PassRateCI bootstraps a confidence interval for the human pass rate over
// the reviewed records. Unreviewed records are excluded from the sample.
func PassRateCI(records []*models.EvalRecord, confidenceLevel float64) ConfidenceInterval {
	return PassRateCIWithSeed(records, confidenceLevel, -1)
}

// PassRateCIWithSeed is PassRateCI with a fixed seed; a negative seed uses a
// non-deterministic source.
func PassRateCIWithSeed(records []*models.EvalRecord, confidenceLevel float64, seed int64) ConfidenceInterval {
	var sample []float64
	for _, r := range records {
		switch r.HumanOutcome {
		case models.OutcomePass:
			sample = append(sample, 1)
		case models.OutcomeFail:
			sample = append(sample, 0)
		}
	}
	return bootstrapCI(sample, confidenceLevel, seed)
}

// bootstrapCI computes a percentile-method interval over the sample mean.
// Fewer than two data points yield a degenerate interval at the mean.
func bootstrapCI(values []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	n := len(values)
	if n < 2 {
		m := mean(values)
		return ConfidenceInterval{Lower: m, Upper: m, Mean: m, ConfidenceLevel: confidenceLevel}
	}

	var rng *rand.Rand
	if seed >= 0 {
		rng = rand.New(rand.NewSource(seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	bootMeans := make([]float64, bootstrapIterations)
	resample := make([]float64, n)
	for i := range bootMeans {
		for j := range resample {
			resample[j] = values[rng.Intn(n)]
		}
		bootMeans[i] = mean(resample)
	}
	sort.Float64s(bootMeans)

	alpha := 1 - confidenceLevel
	lo := int(math.Floor(alpha / 2 * bootstrapIterations))
	hi := int(math.Floor((1 - alpha/2) * bootstrapIterations))
	if hi >= bootstrapIterations {
		hi = bootstrapIterations - 1
	}

	return ConfidenceInterval{
		Lower:           bootMeans[lo],
		Upper:           bootMeans[hi],
		Mean:            mean(values),
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   bootstrapIterations,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
