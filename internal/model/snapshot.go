package model

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/zscore-fintech/zscore-engine/internal/config"
	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
	"github.com/zscore-fintech/zscore-engine/internal/record"
)

// Metrics summarizes held-out performance of a trained snapshot.
type Metrics struct {
	Accuracy    float64 `json:"accuracy"`
	AUC         float64 `json:"auc"`
	DefaultRate float64 `json:"default_rate"`
	TrainSize   int     `json:"train_size"`
	TestSize    int     `json:"test_size"`
}

// Snapshot is an immutable trained model bundle. All fields are read-only
// after Train returns; the request path never mutates a snapshot, so
// concurrent inference needs no locking.
type Snapshot struct {
	Version    string      `json:"version"`
	TrainedAt  time.Time   `json:"trained_at"`
	Logistic   *Logistic   `json:"-"`
	Ensemble   *Ensemble   `json:"-"`
	Scaler     *Scaler     `json:"-"`
	Background [][]float64 `json:"-"`
	Metrics    Metrics     `json:"metrics"`
}

// Prediction is the ensemble output for one applicant.
type Prediction struct {
	PD           float64            `json:"probability_of_default"`
	Lower        float64            `json:"ci_lower"`
	Upper        float64            `json:"ci_upper"`
	Margin       float64            `json:"-"`
	PerModel     map[string]float64 `json:"per_model"`
	ModelVersion string             `json:"model_version"`
	Fallback     bool               `json:"fallback"`
}

// Train builds a complete snapshot from deterministic synthetic data:
// generate, split, fit the scaled logistic baseline and the raw-feature tree
// ensemble, evaluate on the held-out set, and retain a background sample for
// the explainer.
func Train(cfg config.ModelConfig) (*Snapshot, error) {
	if cfg.SyntheticSamples < 100 {
		return nil, apperrors.NewModelError(
			fmt.Sprintf("training requires at least 100 samples, got %d", cfg.SyntheticSamples), nil)
	}

	data := SyntheticDataset(cfg.SyntheticSamples, cfg.Seed)
	train, test := StratifiedSplit(data, 0.2, cfg.Seed+1)

	scaler := FitScaler(train.X)
	scaled := make([][]float64, len(train.X))
	for i, x := range train.X {
		scaled[i] = scaler.Transform(x)
	}

	logit := TrainLogistic(scaled, train.Y, cfg.LogisticIters, cfg.LogisticLR)
	ens := TrainEnsemble(train.X, train.Y, cfg.Trees, cfg.MaxDepth, cfg.LearningRate)

	bg := cfg.BackgroundSize
	if bg > len(train.X) {
		bg = len(train.X)
	}
	background := make([][]float64, bg)
	for i := 0; i < bg; i++ {
		background[i] = append([]float64(nil), train.X[i]...)
	}

	snap := &Snapshot{
		Version:    fmt.Sprintf("ens-%d.%d.%d", cfg.Trees, cfg.LogisticIters, cfg.Seed),
		TrainedAt:  time.Now().UTC(),
		Logistic:   logit,
		Ensemble:   ens,
		Scaler:     scaler,
		Background: background,
		Metrics:    evaluate(ens, test, data),
	}
	return snap, nil
}

// Predict runs both models on a normalized feature vector. The probability
// of default is the ensemble's, the stronger ranker; the logistic baseline is
// reported per-model only. The confidence interval is a jackknife on the
// ensemble margin, so the PD always lies inside it. Returns a model error for
// malformed or missing model state; callers fall back to the heuristic
// estimate in that case.
func (s *Snapshot) Predict(fv *record.FeatureVector, ciMultiplier float64) (*Prediction, error) {
	if s.Logistic == nil || s.Ensemble == nil || s.Scaler == nil {
		return nil, apperrors.NewModelError("snapshot has no trained model state", nil)
	}
	if fv == nil || len(fv.Values) != record.FeatureCount() {
		return nil, apperrors.NewModelError("feature vector has wrong dimensionality", nil)
	}
	for i, v := range fv.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.NewModelError(
				fmt.Sprintf("feature %q is not finite", record.FeatureNames()[i]), nil)
		}
	}

	logitPD := s.Logistic.Predict(s.Scaler.Transform(fv.Values))
	margin := s.Ensemble.Margin(fv.Values)
	pd := sigmoid(margin)

	lower, upper := s.confidenceInterval(fv.Values, margin, ciMultiplier)

	return &Prediction{
		PD:     pd,
		Lower:  lower,
		Upper:  upper,
		Margin: margin,
		PerModel: map[string]float64{
			"logistic": logitPD,
			"ensemble": pd,
		},
		ModelVersion: s.Version,
	}, nil
}

// confidenceInterval estimates margin uncertainty by jackknifing the per-tree
// contributions: variance of the leave-one-tree-out margins, scaled by the
// configured multiplier and mapped through the sigmoid.
func (s *Snapshot) confidenceInterval(x []float64, margin, multiplier float64) (float64, float64) {
	contribs := s.Ensemble.TreeContributions(x)
	n := float64(len(contribs))
	if n < 2 {
		return sigmoid(margin), sigmoid(margin)
	}

	mean := 0.0
	for _, c := range contribs {
		mean += margin - c
	}
	mean /= n

	variance := 0.0
	for _, c := range contribs {
		d := (margin - c) - mean
		variance += d * d
	}
	variance *= (n - 1) / n

	se := math.Sqrt(variance)
	lower := sigmoid(margin - multiplier*se)
	upper := sigmoid(margin + multiplier*se)
	return lower, upper
}

// FallbackPrediction is the rule-based estimate used when model inference
// fails: default probability is the complement of overall trust, clamped to
// the configured band, with a deliberately wide interval.
func FallbackPrediction(overallTrust float64, cfg config.RiskConfig) *Prediction {
	pd := clip(1-overallTrust, cfg.FallbackFloorPD, cfg.FallbackCeilPD)
	return &Prediction{
		PD:           pd,
		Lower:        clip(pd-0.2, 0, 1),
		Upper:        clip(pd+0.2, 0, 1),
		PerModel:     map[string]float64{"heuristic": pd},
		ModelVersion: "fallback",
		Fallback:     true,
	}
}

// Store holds the active snapshot behind an atomic pointer. Retraining swaps
// in a new snapshot without blocking in-flight predictions.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore trains an initial snapshot and returns a store serving it.
func NewStore(cfg config.ModelConfig) (*Store, error) {
	snap, err := Train(cfg)
	if err != nil {
		return nil, err
	}
	st := &Store{}
	st.current.Store(snap)
	return st, nil
}

// Snapshot returns the active snapshot.
func (st *Store) Snapshot() *Snapshot {
	return st.current.Load()
}

// Swap atomically installs a new snapshot and returns the previous one.
func (st *Store) Swap(snap *Snapshot) *Snapshot {
	return st.current.Swap(snap)
}

// Retrain builds a fresh snapshot and installs it. In-flight requests keep
// reading the snapshot they started with.
func (st *Store) Retrain(cfg config.ModelConfig) (*Snapshot, error) {
	snap, err := Train(cfg)
	if err != nil {
		return nil, err
	}
	st.current.Store(snap)
	return snap, nil
}

// evaluate scores the held-out set with the ensemble, the model whose
// probability the snapshot serves.
func evaluate(ens *Ensemble, test, full *Dataset) Metrics {
	m := Metrics{TrainSize: full.Len() - test.Len(), TestSize: test.Len()}

	pos := 0.0
	for _, y := range full.Y {
		pos += y
	}
	if full.Len() > 0 {
		m.DefaultRate = pos / float64(full.Len())
	}
	if test.Len() == 0 {
		return m
	}

	scores := make([]float64, test.Len())
	correct := 0
	for i, x := range test.X {
		p := ens.Predict(x)
		scores[i] = p
		if (p >= 0.5) == (test.Y[i] == 1) {
			correct++
		}
	}
	m.Accuracy = float64(correct) / float64(test.Len())
	m.AUC = rankAUC(scores, test.Y)
	return m
}

// rankAUC computes the Mann-Whitney AUC estimate with tie correction.
func rankAUC(scores, y []float64) float64 {
	var sum float64
	var nPos, nNeg float64
	for i, yi := range y {
		if yi != 1 {
			continue
		}
		nPos++
		for j, yj := range y {
			if yj == 1 {
				continue
			}
			switch {
			case scores[i] > scores[j]:
				sum++
			case scores[i] == scores[j]:
				sum += 0.5
			}
		}
	}
	for _, yj := range y {
		if yj != 1 {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return sum / (nPos * nNeg)
}
