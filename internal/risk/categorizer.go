// Package risk maps model output and trust standing to a lending decision
// category via a configurable threshold table.
package risk

import (
	"fmt"

	"github.com/zscore-fintech/zscore-engine/internal/config"
)

// Category is the final risk bucket for an assessment.
type Category string

const (
	InsufficientData Category = "INSUFFICIENT_DATA"
	LowRisk          Category = "LOW_RISK"
	MediumRisk       Category = "MEDIUM_RISK"
	HighRisk         Category = "HIGH_RISK"
	VeryHighRisk     Category = "VERY_HIGH_RISK"
)

// Decision is the categorizer output: the bucket, whether the applicant is
// credit-eligible under it, and a short reason suitable for the response.
type Decision struct {
	Category Category `json:"category"`
	Eligible bool     `json:"credit_eligible"`
	Reason   string   `json:"reason"`
}

// Categorizer applies the three-gate decision table: the obscurity gate
// first, then probability-of-default bands tightened by minimum trust.
type Categorizer struct {
	cfg config.RiskConfig
}

// New returns a categorizer bound to the given thresholds.
func New(cfg config.RiskConfig) *Categorizer {
	return &Categorizer{cfg: cfg}
}

// Categorize resolves the bucket for one assessment. The rules evaluate top
// down and the first match wins; the obscurity gate precedes everything so a
// sparse profile is never labeled by a prediction the model cannot support.
func (c *Categorizer) Categorize(pd, overallTrust, obscurity float64, graduationThreshold float64) Decision {
	if obscurity >= graduationThreshold {
		return Decision{
			Category: InsufficientData,
			Reason: fmt.Sprintf("data obscurity %.1f is at or above the %.1f graduation threshold",
				obscurity, graduationThreshold),
		}
	}

	switch {
	case pd < c.cfg.LowMaxProbability && overallTrust > c.cfg.LowMinTrust:
		return Decision{
			Category: LowRisk,
			Eligible: true,
			Reason:   "low default probability backed by high trust",
		}
	case pd < c.cfg.MediumMaxProbability && overallTrust > c.cfg.MediumMinTrust:
		return Decision{
			Category: MediumRisk,
			Eligible: true,
			Reason:   "moderate default probability with solid trust",
		}
	case pd < c.cfg.HighMaxProbability:
		return Decision{
			Category: HighRisk,
			Reason:   "elevated default probability",
		}
	default:
		return Decision{
			Category: VeryHighRisk,
			Reason:   "default probability exceeds all lending bands",
		}
	}
}
