// Package engine orchestrates one assessment: normalize the raw record,
// score trust and obscurity, run the risk ensemble with its explanation, and
// fold in the applicant's gamification state. Only input validation fails a
// request; model and explanation failures degrade to documented fallbacks.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zscore-fintech/zscore-engine/internal/config"
	"github.com/zscore-fintech/zscore-engine/internal/explain"
	"github.com/zscore-fintech/zscore-engine/internal/gamification"
	"github.com/zscore-fintech/zscore-engine/internal/model"
	"github.com/zscore-fintech/zscore-engine/internal/record"
	"github.com/zscore-fintech/zscore-engine/internal/risk"
	"github.com/zscore-fintech/zscore-engine/internal/trust"
)

// Assessment is the complete result for one applicant.
type Assessment struct {
	ID           string                `json:"id"`
	ApplicantID  string                `json:"applicant_id"`
	Trust        trust.ScoreComponents `json:"trust"`
	Obscurity    trust.Obscurity       `json:"obscurity"`
	Prediction   *model.Prediction     `json:"prediction"`
	Explanation  *explain.Explanation  `json:"explanation"`
	Decision     risk.Decision         `json:"decision"`
	Gamification *gamification.State   `json:"gamification"`
	AssessedAt   time.Time             `json:"assessed_at"`
}

// Engine wires the scoring pipeline together. It is safe for concurrent use:
// the model store swaps snapshots atomically and the explainer cache is
// keyed by snapshot version.
type Engine struct {
	cfg         *config.Config
	logger      *slog.Logger
	normalizer  *record.Normalizer
	scorer      *trust.Scorer
	estimator   *trust.Estimator
	store       *model.Store
	categorizer *risk.Categorizer
	ledger      *gamification.Ledger

	mu               sync.Mutex
	explainer        *explain.Explainer
	explainerVersion string
}

// New builds an engine around an already-trained model store.
func New(cfg *config.Config, logger *slog.Logger, store *model.Store, ledger *gamification.Ledger) *Engine {
	return &Engine{
		cfg:         cfg,
		logger:      logger,
		normalizer:  record.NewNormalizer(),
		scorer:      trust.NewScorer(cfg.Trust),
		estimator:   trust.NewEstimator(cfg.Obscurity),
		store:       store,
		categorizer: risk.New(cfg.Risk),
		ledger:      ledger,
	}
}

// Store exposes the model store for retraining endpoints.
func (e *Engine) Store() *model.Store { return e.store }

// Ledger exposes the gamification ledger.
func (e *Engine) Ledger() *gamification.Ledger { return e.ledger }

// Assess runs the full pipeline for one applicant record. The only hard
// failure is input validation; inference and explanation errors are logged
// and replaced by their fallback paths so a thin-file applicant still gets
// an answer.
func (e *Engine) Assess(ctx context.Context, rec *record.AlternativeDataRecord) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := e.scorer.Score(rec)
	obscurity := e.estimator.Estimate(rec)
	gamState := e.ledger.State(rec.ApplicantID)

	fv, err := e.normalizer.Normalize(rec, scores.Inputs(), gamState.ZCredits)
	if err != nil {
		return nil, err
	}

	snap := e.store.Snapshot()
	pred, err := snap.Predict(&fv, e.cfg.Risk.ConfidenceMultiplier)
	if err != nil {
		e.logger.Warn("model inference failed, using heuristic fallback",
			slog.String("applicant_id", rec.ApplicantID),
			slog.String("error", err.Error()))
		pred = model.FallbackPrediction(scores.Overall, e.cfg.Risk)
	}

	explanation := e.explain(snap, &fv, pred, rec.ApplicantID)

	decision := e.categorizer.Categorize(
		pred.PD, scores.Overall, obscurity.Index, e.cfg.Obscurity.GraduationThreshold)

	return &Assessment{
		ID:           uuid.New().String(),
		ApplicantID:  rec.ApplicantID,
		Trust:        scores,
		Obscurity:    obscurity,
		Prediction:   pred,
		Explanation:  explanation,
		Decision:     decision,
		Gamification: gamState,
		AssessedAt:   time.Now().UTC(),
	}, nil
}

// explain attributes the prediction, falling back to the static-importance
// heuristic when the model path is unavailable.
func (e *Engine) explain(snap *model.Snapshot, fv *record.FeatureVector, pred *model.Prediction, applicantID string) *explain.Explanation {
	if pred.Fallback {
		return explain.Fallback(fv, pred.ModelVersion)
	}

	ex, err := e.explainerFor(snap)
	if err == nil {
		if full, exErr := ex.Explain(fv); exErr == nil {
			return full
		} else {
			err = exErr
		}
	}

	e.logger.Warn("explanation failed, using degraded attribution",
		slog.String("applicant_id", applicantID),
		slog.String("error", err.Error()))
	return explain.Fallback(fv, snap.Version)
}

// explainerFor caches one explainer per snapshot version so the background
// base value is computed once per retrain, not per request.
func (e *Engine) explainerFor(snap *model.Snapshot) (*explain.Explainer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.explainer != nil && e.explainerVersion == snap.Version {
		return e.explainer, nil
	}
	ex, err := explain.NewExplainer(snap, e.cfg.Model.ShapleySamples, e.cfg.Model.Seed)
	if err != nil {
		return nil, err
	}
	e.explainer = ex
	e.explainerVersion = snap.Version
	return ex, nil
}

// Retrain builds a fresh model snapshot and installs it atomically.
func (e *Engine) Retrain(ctx context.Context) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := e.store.Retrain(e.cfg.Model)
	if err != nil {
		return nil, err
	}
	e.logger.Info("model retrained",
		slog.String("version", snap.Version),
		slog.Float64("auc", snap.Metrics.AUC))
	return snap, nil
}
