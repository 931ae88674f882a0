// Package trust computes the composite trust score and the data-sufficiency
// (obscurity) index from an applicant's alternative data record.
package trust

import (
	"math"

	"github.com/zscore-fintech/zscore-engine/internal/config"
	"github.com/zscore-fintech/zscore-engine/internal/record"
)

// behavioral part shares
const (
	capacityShare    = 0.40
	consistencyShare = 0.30
	typeValueShare   = 0.15
	reliabilityShare = 0.15
)

// social part shares and saturation bounds
const (
	ratingShare      = 0.50
	endorsementShare = 0.25
	networkShare     = 0.25

	endorsementSaturation = 10.0
	networkSaturation     = 50.0
)

// digital part shares
const (
	regularityShare = 0.40
	deviceShare     = 0.30
	engagementShare = 0.30
)

var employmentReliability = map[record.EmploymentType]float64{
	record.EmploymentFullTime: 0.90,
	record.EmploymentContract: 0.75,
	record.EmploymentPartTime: 0.70,
	record.EmploymentInformal: 0.50,
}

// ScoreComponents is the composite trust output. Each component and the
// overall are always within [floor, 1.0]; the floor prevents a zero-score
// dead end that would make graduation unreachable.
type ScoreComponents struct {
	Behavioral        float64 `json:"behavioral_score"`
	Social            float64 `json:"social_score"`
	Digital           float64 `json:"digital_score"`
	Overall           float64 `json:"overall_trust_score"`
	OverallPercentage float64 `json:"trust_percentage"`
}

// Inputs converts the components to the normalizer's trust feedback form.
func (s ScoreComponents) Inputs() record.TrustInputs {
	return record.TrustInputs{
		Behavioral: s.Behavioral,
		Social:     s.Social,
		Digital:    s.Digital,
		Overall:    s.Overall,
	}
}

// Scorer combines behavioral, social and digital sub-scores under
// configurable channel weights.
type Scorer struct {
	cfg config.TrustConfig
}

func NewScorer(cfg config.TrustConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the three sub-scores and their weighted overall.
func (s *Scorer) Score(rec *record.AlternativeDataRecord) ScoreComponents {
	behavioral := s.floored(s.behavioralScore(rec))
	social := s.floored(s.socialScore(rec.Social))
	digital := s.floored(s.digitalScore(rec.Digital))

	overall := s.floored(
		behavioral*s.cfg.BehavioralWeight +
			social*s.cfg.SocialWeight +
			digital*s.cfg.DigitalWeight)

	return ScoreComponents{
		Behavioral:        behavioral,
		Social:            social,
		Digital:           digital,
		Overall:           overall,
		OverallPercentage: overall * 100,
	}
}

// behavioralScore combines income-relative capacity, payment consistency,
// the payment-type hierarchy value and employment reliability. Each part is
// independently clamped to its share before summation.
func (s *Scorer) behavioralScore(rec *record.AlternativeDataRecord) float64 {
	if len(rec.Payments) == 0 {
		return 0
	}

	var sum, typeVal float64
	onTime := 0
	for _, p := range rec.Payments {
		if p.OnTime() {
			onTime++
		}
		sum += math.Max(p.Amount, 0)
		typeVal += record.TypeValue(p.Type)
	}
	n := float64(len(rec.Payments))
	avgAmount := sum / n

	// capacity: obligations as a fraction of income; a burden at or below
	// 30% of income earns the full share, beyond 80% earns nothing
	capacity := 0.5
	if rec.MonthlyIncome > 0 {
		burden := avgAmount / rec.MonthlyIncome
		capacity = 1 - clamp((burden-0.3)/0.5, 0, 1)
	}

	consistency := float64(onTime) / n

	reliability, ok := employmentReliability[rec.Employment]
	if !ok {
		reliability = 0.5
	}

	return clamp(capacity*capacityShare, 0, capacityShare) +
		clamp(consistency*consistencyShare, 0, consistencyShare) +
		clamp(typeVal/n*typeValueShare, 0, typeValueShare) +
		clamp(reliability*reliabilityShare, 0, reliabilityShare)
}

// socialScore combines community rating, endorsement count and a
// network-size proxy. Endorsements and network size saturate before scaling
// so the channel cannot be gamed by endorsement spam.
func (s *Scorer) socialScore(social *record.SocialProof) float64 {
	if social == nil {
		return 0
	}

	rating := clamp(social.CommunityRating, 0, 5) / 5.0
	endorse := math.Min(float64(social.Endorsements), endorsementSaturation) / endorsementSaturation
	network := math.Min(float64(social.NetworkSize), networkSaturation) / networkSaturation

	return clamp(rating*ratingShare, 0, ratingShare) +
		clamp(endorse*endorsementShare, 0, endorsementShare) +
		clamp(network*networkShare, 0, networkShare)
}

// digitalScore combines transaction regularity, device stability and
// engagement diversity.
func (s *Scorer) digitalScore(digital *record.DigitalFootprint) float64 {
	if digital == nil {
		return 0
	}

	return clamp(digital.TransactionRegularity*regularityShare, 0, regularityShare) +
		clamp(digital.DeviceStability*deviceShare, 0, deviceShare) +
		clamp(digital.EngagementScore*engagementShare, 0, engagementShare)
}

func (s *Scorer) floored(v float64) float64 {
	return clamp(v, s.cfg.ScoreFloor, 1.0)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
