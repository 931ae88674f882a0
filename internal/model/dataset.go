// Package model implements the risk ensemble: a logistic baseline, a
// gradient-boosted tree ensemble, and the immutable versioned snapshot the
// request path reads from. Training runs offline on deterministic synthetic
// data; inference is pure and deterministic for a fixed snapshot.
package model

import (
	"math"
	"math/rand"

	"github.com/zscore-fintech/zscore-engine/internal/record"
)

// Dataset is a labeled training matrix. Labels are 1 for default, 0 for
// repaid, so model output reads directly as probability of default.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Y) }

// SyntheticDataset generates labeled training data with the documented
// feature correlations: high trust, punctual payments and stable digital
// behavior all reduce the default probability. Generation is fully
// deterministic for a given seed.
func SyntheticDataset(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	dim := record.FeatureCount()

	X := make([][]float64, n)
	Y := make([]float64, n)

	for i := 0; i < n; i++ {
		baseTrust := betaSample(rng, 2, 3)

		x := make([]float64, dim)
		x[0] = clip01(baseTrust + rng.NormFloat64()*0.2)   // payment_on_time_ratio
		x[1] = clip01(expSample(rng, 0.3))                 // payment_avg_amount
		x[2] = clip01(0.25 + baseTrust*0.6)                // payment_type_value
		x[3] = clip01(baseTrust + rng.NormFloat64()*0.25)  // payment_months
		x[4] = clip01(expSample(rng, 0.2))                 // loan_count
		x[5] = clip01(baseTrust + rng.NormFloat64()*0.2)   // loan_success_ratio
		x[6] = clip01(baseTrust + rng.NormFloat64()*0.15)  // community_rating
		x[7] = clip01(poissonSample(rng, baseTrust*5) / 10) // endorsements
		x[8] = clip01(baseTrust + rng.NormFloat64()*0.25)  // network_size
		x[9] = clip01(baseTrust + rng.NormFloat64()*0.2)   // transaction_regularity
		x[10] = clip01(0.7 + rng.NormFloat64()*0.2)        // device_stability
		x[11] = clip01(baseTrust + rng.NormFloat64()*0.2)  // engagement_score
		x[12] = clip01(baseTrust + rng.NormFloat64()*0.1)  // behavioral_score
		x[13] = clip01(baseTrust + rng.NormFloat64()*0.1)  // social_score
		x[14] = clip01(baseTrust + rng.NormFloat64()*0.1)  // digital_score
		x[15] = clip01((x[12] + x[13] + x[14]) / 3)        // overall_trust_score
		x[16] = clip01(expSample(rng, 0.2))                // z_credits

		pd := 1 - (0.30*x[15] + 0.25*x[0] + 0.15*x[6] +
			0.10*x[5] + 0.10*x[9] + 0.10*x[10])
		pd = clip(pd, 0.05, 0.95)

		X[i] = x
		if rng.Float64() < pd {
			Y[i] = 1
		}
	}

	return &Dataset{X: X, Y: Y}
}

// StratifiedSplit partitions the dataset into train and test sets preserving
// the label ratio. The shuffle is seeded, so splits are reproducible.
func StratifiedSplit(d *Dataset, testFraction float64, seed int64) (train, test *Dataset) {
	rng := rand.New(rand.NewSource(seed))

	var posIdx, negIdx []int
	for i, y := range d.Y {
		if y == 1 {
			posIdx = append(posIdx, i)
		} else {
			negIdx = append(negIdx, i)
		}
	}
	rng.Shuffle(len(posIdx), func(i, j int) { posIdx[i], posIdx[j] = posIdx[j], posIdx[i] })
	rng.Shuffle(len(negIdx), func(i, j int) { negIdx[i], negIdx[j] = negIdx[j], negIdx[i] })

	train = &Dataset{}
	test = &Dataset{}
	appendSplit := func(idx []int) {
		nTest := int(math.Round(float64(len(idx)) * testFraction))
		for k, i := range idx {
			if k < nTest {
				test.X = append(test.X, d.X[i])
				test.Y = append(test.Y, d.Y[i])
			} else {
				train.X = append(train.X, d.X[i])
				train.Y = append(train.Y, d.Y[i])
			}
		}
	}
	appendSplit(posIdx)
	appendSplit(negIdx)

	return train, test
}

// Scaler standardizes features to zero mean and unit variance for the
// logistic baseline. The tree ensemble consumes raw feature values.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-feature mean and standard deviation.
func FitScaler(X [][]float64) *Scaler {
	if len(X) == 0 {
		return &Scaler{}
	}
	dim := len(X[0])
	mean := make([]float64, dim)
	std := make([]float64, dim)

	for _, x := range X {
		for j, v := range x {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}
	for _, x := range X {
		for j, v := range x {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			std[j] = 1
		}
	}

	return &Scaler{Mean: mean, Std: std}
}

// Transform standardizes a single vector.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

func betaSample(rng *rand.Rand, a, b int) float64 {
	// order-statistic construction for small integer shape parameters
	n := a + b - 1
	u := make([]float64, n)
	for i := range u {
		u[i] = rng.Float64()
	}
	for i := 1; i < n; i++ {
		for j := i; j > 0 && u[j] < u[j-1]; j-- {
			u[j], u[j-1] = u[j-1], u[j]
		}
	}
	return u[a-1]
}

func expSample(rng *rand.Rand, scale float64) float64 {
	return rng.ExpFloat64() * scale
}

func poissonSample(rng *rand.Rand, lambda float64) float64 {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0.0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clip01(x float64) float64 { return clip(x, 0, 1) }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
