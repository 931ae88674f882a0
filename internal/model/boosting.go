package model

import (
	"math"
	"sort"
)

// treeNode is one node of a depth-limited regression tree. Leaves carry the
// Newton step value; internal nodes split on Feature < Threshold.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Value     float64   `json:"value"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
	Leaf      bool      `json:"leaf"`
}

func (n *treeNode) eval(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Ensemble is a gradient-boosted collection of regression trees fit on the
// logistic loss. Prediction is additive in the margin domain: base log-odds
// plus shrunken tree outputs.
type Ensemble struct {
	Base      float64     `json:"base"`
	Shrinkage float64     `json:"shrinkage"`
	Trees     []*treeNode `json:"trees"`
}

const (
	minLeafSamples  = 5
	splitCandidates = 16
	maxLeafStep     = 4.0
	hessianEpsilon  = 1e-6
)

// TrainEnsemble boosts nTrees depth-limited trees against the logistic loss.
// Each tree fits the residual y - p and its leaves take the Newton step
// sum(residual) / sum(p*(1-p)). Deterministic for fixed inputs.
func TrainEnsemble(X [][]float64, y []float64, nTrees, maxDepth int, shrinkage float64) *Ensemble {
	n := len(X)
	if n == 0 {
		return &Ensemble{Shrinkage: shrinkage}
	}

	pos := 0.0
	for _, v := range y {
		pos += v
	}
	rate := clip(pos/float64(n), 1e-3, 1-1e-3)
	base := math.Log(rate / (1 - rate))

	ens := &Ensemble{Base: base, Shrinkage: shrinkage}

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = base
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	for t := 0; t < nTrees; t++ {
		for i := range X {
			p := sigmoid(margin[i])
			grad[i] = y[i] - p
			hess[i] = p * (1 - p)
		}
		tree := buildTree(X, grad, hess, idx, maxDepth)
		ens.Trees = append(ens.Trees, tree)
		for i, x := range X {
			margin[i] += shrinkage * tree.eval(x)
		}
	}

	return ens
}

// Margin returns the raw ensemble log-odds for a feature vector.
func (e *Ensemble) Margin(x []float64) float64 {
	m := e.Base
	for _, t := range e.Trees {
		m += e.Shrinkage * t.eval(x)
	}
	return m
}

// Predict returns the probability of default.
func (e *Ensemble) Predict(x []float64) float64 {
	return sigmoid(e.Margin(x))
}

// TreeContributions returns the shrunken per-tree margin contributions for a
// vector. Used for the jackknife variance behind confidence intervals.
func (e *Ensemble) TreeContributions(x []float64) []float64 {
	out := make([]float64, len(e.Trees))
	for i, t := range e.Trees {
		out[i] = e.Shrinkage * t.eval(x)
	}
	return out
}

func buildTree(X [][]float64, grad, hess []float64, idx []int, depth int) *treeNode {
	if depth == 0 || len(idx) < 2*minLeafSamples {
		return leafNode(grad, hess, idx)
	}

	bestFeat, bestThr, bestGain := -1, 0.0, 0.0
	dim := len(X[idx[0]])

	sumG, sumH := 0.0, 0.0
	for _, i := range idx {
		sumG += grad[i]
		sumH += hess[i]
	}
	parentScore := sumG * sumG / (sumH + hessianEpsilon)

	vals := make([]float64, 0, len(idx))
	for f := 0; f < dim; f++ {
		vals = vals[:0]
		for _, i := range idx {
			vals = append(vals, X[i][f])
		}
		for _, thr := range thresholds(vals) {
			lg, lh, lc := 0.0, 0.0, 0
			for _, i := range idx {
				if X[i][f] < thr {
					lg += grad[i]
					lh += hess[i]
					lc++
				}
			}
			rc := len(idx) - lc
			if lc < minLeafSamples || rc < minLeafSamples {
				continue
			}
			rg, rh := sumG-lg, sumH-lh
			gain := lg*lg/(lh+hessianEpsilon) + rg*rg/(rh+hessianEpsilon) - parentScore
			if gain > bestGain {
				bestFeat, bestThr, bestGain = f, thr, gain
			}
		}
	}

	if bestFeat < 0 {
		return leafNode(grad, hess, idx)
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeat] < bestThr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   bestFeat,
		Threshold: bestThr,
		Left:      buildTree(X, grad, hess, left, depth-1),
		Right:     buildTree(X, grad, hess, right, depth-1),
	}
}

func leafNode(grad, hess []float64, idx []int) *treeNode {
	g, h := 0.0, 0.0
	for _, i := range idx {
		g += grad[i]
		h += hess[i]
	}
	v := clip(g/(h+hessianEpsilon), -maxLeafStep, maxLeafStep)
	return &treeNode{Leaf: true, Value: v}
}

// thresholds picks up to splitCandidates quantile midpoints from the sorted
// distinct values, bounding split search cost per feature.
func thresholds(vals []float64) []float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	uniq := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) < 2 {
		return nil
	}

	if len(uniq)-1 <= splitCandidates {
		out := make([]float64, 0, len(uniq)-1)
		for i := 1; i < len(uniq); i++ {
			out = append(out, (uniq[i-1]+uniq[i])/2)
		}
		return out
	}

	out := make([]float64, 0, splitCandidates)
	for k := 1; k <= splitCandidates; k++ {
		i := k * (len(uniq) - 1) / (splitCandidates + 1)
		if i < 1 {
			i = 1
		}
		thr := (uniq[i-1] + uniq[i]) / 2
		if len(out) == 0 || thr != out[len(out)-1] {
			out = append(out, thr)
		}
	}
	return out
}
