package model

// Logistic is an L2-regularized logistic regression fit by full-batch
// gradient descent on standardized features. It serves as the calibrated
// baseline of the ensemble.
type Logistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// TrainLogistic fits the model on standardized inputs. Labels are 1 for
// default. Training is deterministic: no sampling, fixed iteration count.
func TrainLogistic(X [][]float64, y []float64, iters int, lr float64) *Logistic {
	if len(X) == 0 {
		return &Logistic{}
	}
	dim := len(X[0])
	w := make([]float64, dim)
	b := 0.0
	n := float64(len(X))
	const l2 = 1e-3

	for it := 0; it < iters; it++ {
		gw := make([]float64, dim)
		gb := 0.0
		for i, x := range X {
			p := sigmoid(dot(w, x) + b)
			d := p - y[i]
			for j, v := range x {
				gw[j] += d * v
			}
			gb += d
		}
		for j := range w {
			w[j] -= lr * (gw[j]/n + l2*w[j])
		}
		b -= lr * gb / n
	}

	return &Logistic{Weights: w, Bias: b}
}

// Margin returns the raw log-odds for a standardized vector.
func (l *Logistic) Margin(x []float64) float64 {
	return dot(l.Weights, x) + l.Bias
}

// Predict returns the probability of default for a standardized vector.
func (l *Logistic) Predict(x []float64) float64 {
	return sigmoid(l.Margin(x))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
