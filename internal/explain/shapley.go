// Package explain produces per-feature attributions for ensemble risk
// estimates. The primary path is permutation-sampling Shapley values against
// a background sample; when that is unavailable a static-importance
// heuristic produces a degraded explanation instead of failing the request.
package explain

import (
	"math"
	"math/rand"
	"sort"

	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
	"github.com/zscore-fintech/zscore-engine/internal/model"
	"github.com/zscore-fintech/zscore-engine/internal/record"
)

// Quality marks how an explanation was produced.
type Quality string

const (
	QualityFull     Quality = "full"
	QualityDegraded Quality = "degraded"
)

// Contribution is one feature's attributed share of the risk margin.
// Positive values push toward default, negative toward repayment.
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Imputed      bool    `json:"imputed"`
	Contribution float64 `json:"contribution"`
	Reason       string  `json:"reason"`
}

// Explanation is the full attribution for one assessment. Contributions are
// sorted by absolute magnitude, largest first, and under the full quality
// path they sum to the margin minus the base value.
type Explanation struct {
	BaseValue     float64        `json:"base_value"`
	Margin        float64        `json:"margin"`
	Contributions []Contribution `json:"contributions"`
	Quality       Quality        `json:"quality"`
	ModelVersion  string         `json:"model_version"`
}

// TopFactors returns the n largest contributions by magnitude.
func (e *Explanation) TopFactors(n int) []Contribution {
	if n > len(e.Contributions) {
		n = len(e.Contributions)
	}
	return e.Contributions[:n]
}

// Explainer computes Shapley attributions for one model snapshot. The
// background sample and permutation count are fixed at construction, and the
// permutation stream is reseeded per call, so the same input always yields
// the same explanation.
type Explainer struct {
	snapshot *model.Snapshot
	samples  int
	seed     int64
	base     float64
}

// NewExplainer prepares an explainer for the given snapshot. The base value
// is the mean ensemble margin over the background sample, computed once.
func NewExplainer(snap *model.Snapshot, samples int, seed int64) (*Explainer, error) {
	if snap == nil || len(snap.Background) == 0 {
		return nil, apperrors.NewExplanationError("snapshot has no background sample", nil)
	}
	if samples < 1 {
		return nil, apperrors.NewExplanationError("permutation sample count must be positive", nil)
	}

	base := 0.0
	for _, b := range snap.Background {
		base += snap.Ensemble.Margin(b)
	}
	base /= float64(len(snap.Background))

	return &Explainer{snapshot: snap, samples: samples, seed: seed, base: base}, nil
}

// Explain attributes the ensemble margin for a feature vector across all
// features via sampled permutations. The raw estimates are normalized so the
// contributions sum exactly to margin minus base: the residual is spread
// across features in proportion to their absolute attribution.
func (ex *Explainer) Explain(fv *record.FeatureVector) (*Explanation, error) {
	if fv == nil || len(fv.Values) != record.FeatureCount() {
		return nil, apperrors.NewExplanationError("feature vector has wrong dimensionality", nil)
	}

	dim := record.FeatureCount()
	rng := rand.New(rand.NewSource(ex.seed))
	phi := make([]float64, dim)
	perm := make([]int, dim)
	z := make([]float64, dim)

	for s := 0; s < ex.samples; s++ {
		bg := ex.snapshot.Background[s%len(ex.snapshot.Background)]
		copy(z, bg)

		for i := range perm {
			perm[i] = i
		}
		rng.Shuffle(dim, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		prev := ex.snapshot.Ensemble.Margin(z)
		for _, j := range perm {
			z[j] = fv.Values[j]
			cur := ex.snapshot.Ensemble.Margin(z)
			phi[j] += cur - prev
			prev = cur
		}
	}
	for j := range phi {
		phi[j] /= float64(ex.samples)
	}

	margin := ex.snapshot.Ensemble.Margin(fv.Values)
	normalizeResidual(phi, margin-ex.base)

	names := record.FeatureNames()
	contribs := make([]Contribution, dim)
	for j := range phi {
		contribs[j] = Contribution{
			Feature:      names[j],
			Value:        fv.Values[j],
			Imputed:      fv.Imputed[names[j]],
			Contribution: phi[j],
			Reason:       reasonFor(names[j], phi[j]),
		}
	}
	sortByMagnitude(contribs)

	return &Explanation{
		BaseValue:     ex.base,
		Margin:        margin,
		Contributions: contribs,
		Quality:       QualityFull,
		ModelVersion:  ex.snapshot.Version,
	}, nil
}

// normalizeResidual enforces the efficiency property: attributions must sum
// to the target. The gap is distributed proportionally to each feature's
// absolute share, or evenly when all attributions are zero.
func normalizeResidual(phi []float64, target float64) {
	sum := 0.0
	total := 0.0
	for _, p := range phi {
		sum += p
		total += math.Abs(p)
	}
	residual := target - sum
	if residual == 0 {
		return
	}
	if total == 0 {
		even := residual / float64(len(phi))
		for j := range phi {
			phi[j] += even
		}
		return
	}
	for j := range phi {
		phi[j] += residual * math.Abs(phi[j]) / total
	}
}

func sortByMagnitude(contribs []Contribution) {
	sort.SliceStable(contribs, func(i, j int) bool {
		return math.Abs(contribs[i].Contribution) > math.Abs(contribs[j].Contribution)
	})
}
