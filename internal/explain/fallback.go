package explain

import (
	"fmt"

	"github.com/zscore-fintech/zscore-engine/internal/record"
)

// staticImportance is the heuristic weight of each feature in the degraded
// explanation path, mirroring the relative importances the ensemble learns
// on the synthetic distribution.
var staticImportance = map[string]float64{
	record.FeatOverallTrust:     0.30,
	record.FeatOnTimeRatio:      0.25,
	record.FeatCommunityRating:  0.15,
	record.FeatLoanSuccess:      0.10,
	record.FeatRegularity:       0.10,
	record.FeatDeviceStability:  0.10,
	record.FeatBehavioral:       0.08,
	record.FeatSocial:           0.08,
	record.FeatDigital:          0.08,
	record.FeatPaymentMonths:    0.06,
	record.FeatEngagement:       0.05,
	record.FeatPaymentTypeValue: 0.05,
	record.FeatNetworkSize:      0.04,
	record.FeatEndorsements:     0.04,
	record.FeatLoanCount:        0.03,
	record.FeatAvgAmount:        0.03,
	record.FeatZCredits:         0.02,
}

// Fallback builds a degraded explanation without touching the model: each
// feature contributes its static importance scaled by how far the observed
// value sits from its imputation default. The sum property does not hold on
// this path, which is why the quality marker exists.
func Fallback(fv *record.FeatureVector, modelVersion string) *Explanation {
	names := record.FeatureNames()
	contribs := make([]Contribution, 0, len(names))

	for i, name := range names {
		var value float64
		imputed := true
		if fv != nil && i < len(fv.Values) {
			value = fv.Values[i]
			imputed = fv.Imputed[name]
		} else {
			value = record.DefaultFor(name)
		}

		// distance below the neutral default raises risk, above lowers it
		phi := staticImportance[name] * (record.DefaultFor(name) - value)
		contribs = append(contribs, Contribution{
			Feature:      name,
			Value:        value,
			Imputed:      imputed,
			Contribution: phi,
			Reason:       reasonFor(name, phi),
		})
	}
	sortByMagnitude(contribs)

	return &Explanation{
		Contributions: contribs,
		Quality:       QualityDegraded,
		ModelVersion:  modelVersion,
	}
}

var featurePhrases = map[string]string{
	record.FeatOnTimeRatio:      "on-time payment history",
	record.FeatAvgAmount:        "payment burden relative to income",
	record.FeatPaymentTypeValue: "mix of payment obligation types",
	record.FeatPaymentMonths:    "length of payment history",
	record.FeatLoanCount:        "prior loan experience",
	record.FeatLoanSuccess:      "loan repayment record",
	record.FeatCommunityRating:  "community rating",
	record.FeatEndorsements:     "peer endorsements",
	record.FeatNetworkSize:      "size of trust network",
	record.FeatRegularity:       "transaction regularity",
	record.FeatDeviceStability:  "device stability",
	record.FeatEngagement:       "digital engagement",
	record.FeatBehavioral:       "behavioral trust",
	record.FeatSocial:           "social trust",
	record.FeatDigital:          "digital trust",
	record.FeatOverallTrust:     "overall trust standing",
	record.FeatZCredits:         "earned platform credits",
}

// reasonFor renders a contribution as a short human-readable sentence.
func reasonFor(feature string, contribution float64) string {
	phrase, ok := featurePhrases[feature]
	if !ok {
		phrase = feature
	}
	if contribution > 0 {
		return fmt.Sprintf("%s increases estimated risk", phrase)
	}
	if contribution < 0 {
		return fmt.Sprintf("%s reduces estimated risk", phrase)
	}
	return fmt.Sprintf("%s has no measurable effect", phrase)
}
