package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zscore-fintech/zscore-engine/internal/config"
	"github.com/zscore-fintech/zscore-engine/internal/record"
)

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{
		SyntheticSamples: 400,
		Trees:            30,
		MaxDepth:         3,
		LearningRate:     0.1,
		LogisticIters:    200,
		LogisticLR:       0.5,
		Seed:             42,
		BackgroundSize:   32,
		ShapleySamples:   64,
	}
}

func TestSyntheticDatasetDeterministic(t *testing.T) {
	a := SyntheticDataset(200, 42)
	b := SyntheticDataset(200, 42)

	require.Equal(t, a.Len(), b.Len())
	assert.Equal(t, a.Y, b.Y)
	for i := range a.X {
		assert.Equal(t, a.X[i], b.X[i])
	}

	c := SyntheticDataset(200, 7)
	assert.NotEqual(t, a.Y, c.Y, "different seeds should produce different labels")
}

func TestSyntheticDatasetShape(t *testing.T) {
	d := SyntheticDataset(150, 42)

	require.Equal(t, 150, d.Len())
	for _, x := range d.X {
		require.Len(t, x, record.FeatureCount())
		for _, v := range x {
			assert.False(t, math.IsNaN(v))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}

	defaults := 0.0
	for _, y := range d.Y {
		defaults += y
	}
	rate := defaults / float64(d.Len())
	assert.Greater(t, rate, 0.05, "labels should include defaults")
	assert.Less(t, rate, 0.95, "labels should include repayments")
}

func TestStratifiedSplitPreservesRatio(t *testing.T) {
	d := SyntheticDataset(500, 42)
	train, test := StratifiedSplit(d, 0.2, 43)

	require.Equal(t, d.Len(), train.Len()+test.Len())
	assert.InDelta(t, float64(d.Len())*0.2, float64(test.Len()), 2)

	rate := func(ds *Dataset) float64 {
		pos := 0.0
		for _, y := range ds.Y {
			pos += y
		}
		return pos / float64(ds.Len())
	}
	assert.InDelta(t, rate(train), rate(test), 0.05)
}

func TestScalerRoundTrip(t *testing.T) {
	X := [][]float64{{1, 10}, {2, 20}, {3, 30}}
	s := FitScaler(X)

	z := s.Transform([]float64{2, 20})
	assert.InDelta(t, 0, z[0], 1e-9)
	assert.InDelta(t, 0, z[1], 1e-9)
}

func TestTrainProducesUsefulModel(t *testing.T) {
	snap, err := Train(testModelConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.Version)
	assert.Len(t, snap.Background, 32)
	assert.Greater(t, snap.Metrics.AUC, 0.6, "ensemble should beat random ranking")
	assert.Greater(t, snap.Metrics.Accuracy, 0.5)
}

func TestTrainRejectsTinySampleCount(t *testing.T) {
	cfg := testModelConfig()
	cfg.SyntheticSamples = 50

	_, err := Train(cfg)
	require.Error(t, err)
}

func TestPredictDeterministic(t *testing.T) {
	snap, err := Train(testModelConfig())
	require.NoError(t, err)

	fv := goodApplicantVector()
	a, err := snap.Predict(fv, 1.96)
	require.NoError(t, err)
	b, err := snap.Predict(fv, 1.96)
	require.NoError(t, err)

	assert.Equal(t, a.PD, b.PD)
	assert.Equal(t, a.Lower, b.Lower)
	assert.Equal(t, a.Upper, b.Upper)
}

func TestPredictOrdersApplicantsByQuality(t *testing.T) {
	snap, err := Train(testModelConfig())
	require.NoError(t, err)

	good, err := snap.Predict(goodApplicantVector(), 1.96)
	require.NoError(t, err)
	bad, err := snap.Predict(badApplicantVector(), 1.96)
	require.NoError(t, err)

	assert.Less(t, good.PD, bad.PD, "strong signals should lower default probability")
}

func TestPredictIntervalBracketsEstimate(t *testing.T) {
	snap, err := Train(testModelConfig())
	require.NoError(t, err)

	p, err := snap.Predict(goodApplicantVector(), 1.96)
	require.NoError(t, err)

	ensPD := p.PerModel["ensemble"]
	assert.LessOrEqual(t, p.Lower, ensPD)
	assert.GreaterOrEqual(t, p.Upper, ensPD)
	assert.GreaterOrEqual(t, p.Lower, 0.0)
	assert.LessOrEqual(t, p.Upper, 1.0)
}

func TestPredictServesEnsembleProbability(t *testing.T) {
	snap, err := Train(testModelConfig())
	require.NoError(t, err)

	p, err := snap.Predict(goodApplicantVector(), 1.96)
	require.NoError(t, err)

	assert.Equal(t, p.PerModel["ensemble"], p.PD)
	assert.Contains(t, p.PerModel, "logistic")
	assert.GreaterOrEqual(t, p.PD, p.Lower)
	assert.LessOrEqual(t, p.PD, p.Upper)
}

func TestPredictRejectsUntrainedSnapshot(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
	}{
		{"empty snapshot", &Snapshot{Version: "hollow"}},
		{"missing scaler", func() *Snapshot {
			s, err := Train(testModelConfig())
			require.NoError(t, err)
			cp := *s
			cp.Scaler = nil
			return &cp
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.snap.Predict(goodApplicantVector(), 1.96)
			assert.Error(t, err)
		})
	}
}

func TestPredictRejectsMalformedVectors(t *testing.T) {
	snap, err := Train(testModelConfig())
	require.NoError(t, err)

	_, err = snap.Predict(nil, 1.96)
	assert.Error(t, err)

	short := &record.FeatureVector{Values: []float64{0.5}}
	_, err = snap.Predict(short, 1.96)
	assert.Error(t, err)

	fv := goodApplicantVector()
	fv.Values[3] = math.NaN()
	_, err = snap.Predict(fv, 1.96)
	assert.Error(t, err)
}

func TestFallbackPrediction(t *testing.T) {
	cfg := config.Default().Risk

	tests := []struct {
		name  string
		trust float64
		want  float64
	}{
		{"high trust clamps to floor", 0.99, cfg.FallbackFloorPD},
		{"zero trust clamps to ceiling", 0.0, cfg.FallbackCeilPD},
		{"mid trust passes through", 0.6, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FallbackPrediction(tt.trust, cfg)
			assert.InDelta(t, tt.want, p.PD, 1e-9)
			assert.True(t, p.Fallback)
			assert.Equal(t, "fallback", p.ModelVersion)
			assert.LessOrEqual(t, p.Lower, p.PD)
			assert.GreaterOrEqual(t, p.Upper, p.PD)
		})
	}
}

func TestStoreSwapKeepsOldSnapshotUsable(t *testing.T) {
	store, err := NewStore(testModelConfig())
	require.NoError(t, err)

	old := store.Snapshot()
	require.NotNil(t, old)

	cfg := testModelConfig()
	cfg.Seed = 7
	fresh, err := store.Retrain(cfg)
	require.NoError(t, err)

	assert.Same(t, fresh, store.Snapshot())

	// an in-flight request holding the old snapshot can still predict
	p, err := old.Predict(goodApplicantVector(), 1.96)
	require.NoError(t, err)
	assert.Greater(t, p.PD, 0.0)
}

func goodApplicantVector() *record.FeatureVector {
	v := make([]float64, record.FeatureCount())
	for i := range v {
		v[i] = 0.9
	}
	v[1] = 0.2 // modest payment amounts
	v[4] = 0.6
	return &record.FeatureVector{Values: v, Imputed: map[string]bool{}}
}

func badApplicantVector() *record.FeatureVector {
	v := make([]float64, record.FeatureCount())
	for i := range v {
		v[i] = 0.1
	}
	v[1] = 0.9 // heavy payment burden
	return &record.FeatureVector{Values: v, Imputed: map[string]bool{}}
}
