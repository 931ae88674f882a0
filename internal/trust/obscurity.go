package trust

import (
	"math"

	"github.com/zscore-fintech/zscore-engine/internal/config"
	"github.com/zscore-fintech/zscore-engine/internal/record"
)

// Obscurity is the data-insufficiency index. 0 means a fully documented
// applicant, 100 means no qualifying data at all. It is monotonically
// non-increasing as qualifying data is added to any channel.
type Obscurity struct {
	Index        float64            `json:"index"`
	Completeness float64            `json:"completeness"`
	Channels     map[string]float64 `json:"channels"`
	Graduated    bool               `json:"graduated"`
}

// Estimator computes weighted completeness across the four data channels,
// each capped at its configured ideal quantity.
type Estimator struct {
	cfg config.ObscurityConfig
}

func NewEstimator(cfg config.ObscurityConfig) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate computes the obscurity index for a record. An applicant is
// eligible for full assessment only when the index is below the graduation
// threshold; above it, model output must be flagged INSUFFICIENT_DATA.
func (e *Estimator) Estimate(rec *record.AlternativeDataRecord) Obscurity {
	payment := capRatio(float64(rec.PaymentMonths()), float64(e.cfg.IdealPaymentMonths))
	loan := capRatio(float64(len(rec.Loans)), float64(e.cfg.IdealLoanCount))

	social := 0.0
	if rec.Social != nil {
		endorse := capRatio(float64(rec.Social.Endorsements), float64(e.cfg.IdealEndorsements))
		rated := 0.0
		if rec.Social.CommunityRating > 0 {
			rated = 1.0
		}
		social = 0.5*endorse + 0.5*rated
	}

	digital := 0.0
	if rec.Digital != nil {
		signals := 0
		if rec.Digital.TransactionRegularity > 0 {
			signals++
		}
		if rec.Digital.DeviceStability > 0 {
			signals++
		}
		if rec.Digital.EngagementScore > 0 {
			signals++
		}
		digital = capRatio(float64(signals), float64(e.cfg.IdealDigitalSignals))
	}

	completeness := e.cfg.PaymentWeight*payment +
		e.cfg.LoanWeight*loan +
		e.cfg.SocialWeight*social +
		e.cfg.DigitalWeight*digital

	index := 100 * (1 - completeness)
	index = math.Max(0, math.Min(100, index))

	return Obscurity{
		Index:        index,
		Completeness: completeness,
		Channels: map[string]float64{
			"payment": payment,
			"loan":    loan,
			"social":  social,
			"digital": digital,
		},
		Graduated: index < e.cfg.GraduationThreshold,
	}
}

func capRatio(have, ideal float64) float64 {
	if ideal <= 0 {
		return 1
	}
	return math.Min(have/ideal, 1)
}
