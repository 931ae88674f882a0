package record

import (
	"math"

	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
)

// Feature names in vector order. Every model feature is always present in a
// normalized vector; absent source data is substituted with the feature's
// neutral default and tagged imputed, never silently omitted.
const (
	FeatOnTimeRatio      = "payment_on_time_ratio"
	FeatAvgAmount        = "payment_avg_amount"
	FeatPaymentTypeValue = "payment_type_value"
	FeatPaymentMonths    = "payment_months"
	FeatLoanCount        = "loan_count"
	FeatLoanSuccess      = "loan_success_ratio"
	FeatCommunityRating  = "community_rating"
	FeatEndorsements     = "endorsements"
	FeatNetworkSize      = "network_size"
	FeatRegularity       = "transaction_regularity"
	FeatDeviceStability  = "device_stability"
	FeatEngagement       = "engagement_score"
	FeatBehavioral       = "behavioral_score"
	FeatSocial           = "social_score"
	FeatDigital          = "digital_score"
	FeatOverallTrust     = "overall_trust_score"
	FeatZCredits         = "z_credits"
)

var featureNames = []string{
	FeatOnTimeRatio, FeatAvgAmount, FeatPaymentTypeValue, FeatPaymentMonths,
	FeatLoanCount, FeatLoanSuccess, FeatCommunityRating, FeatEndorsements,
	FeatNetworkSize, FeatRegularity, FeatDeviceStability, FeatEngagement,
	FeatBehavioral, FeatSocial, FeatDigital, FeatOverallTrust, FeatZCredits,
}

// neutral defaults substituted when a source channel is absent
var featureDefaults = map[string]float64{
	FeatOnTimeRatio:      0.5,
	FeatAvgAmount:        0.1,
	FeatPaymentTypeValue: 0.25,
	FeatPaymentMonths:    0.0,
	FeatLoanCount:        0.0,
	FeatLoanSuccess:      0.5,
	FeatCommunityRating:  0.6, // mid-range 3.0/5.0
	FeatEndorsements:     0.0,
	FeatNetworkSize:      0.0,
	FeatRegularity:       0.5,
	FeatDeviceStability:  0.7,
	FeatEngagement:       0.5,
	FeatBehavioral:       0.2,
	FeatSocial:           0.2,
	FeatDigital:          0.2,
	FeatOverallTrust:     0.2,
	FeatZCredits:         0.0,
}

// relative predictive value of each payment obligation class
var paymentTypeValues = map[PaymentType]float64{
	PaymentUtility:      0.25,
	PaymentMobile:       0.30,
	PaymentSubscription: 0.35,
	PaymentRent:         0.60,
	PaymentCreditCard:   0.90,
	PaymentLoanInstall:  1.00,
}

// TypeValue returns the predictive value of a payment obligation class on a
// [0,1] scale. Unknown types score as basic utility bills.
func TypeValue(t PaymentType) float64 {
	if v, ok := paymentTypeValues[t]; ok {
		return v
	}
	return paymentTypeValues[PaymentUtility]
}

// FeatureVector is an ordered mapping of named features to values in [0,1].
// Imputed marks features whose source data was absent; explanations carry
// the tag so a contribution from a neutral default is never read as signal.
type FeatureVector struct {
	Values  []float64       `json:"values"`
	Imputed map[string]bool `json:"imputed"`
}

// FeatureNames returns the canonical feature ordering shared by the
// normalizer, the ensemble models and the explanation generator.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// FeatureCount is the fixed width of a normalized vector.
func FeatureCount() int { return len(featureNames) }

// DefaultFor returns the neutral default for a named feature.
func DefaultFor(name string) float64 { return featureDefaults[name] }

// Get returns the value of a named feature.
func (fv FeatureVector) Get(name string) float64 {
	for i, n := range featureNames {
		if n == name {
			return fv.Values[i]
		}
	}
	return 0
}

// TrustInputs are the composite scores fed back into the model features.
type TrustInputs struct {
	Behavioral float64
	Social     float64
	Digital    float64
	Overall    float64
}

// Normalizer maps AlternativeDataRecords into bounded FeatureVectors.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize produces the fixed-width feature vector for a record. Numeric
// inputs outside their declared domain are clipped, not rejected: a single
// malformed field must not block an assessment. The only hard failure is a
// missing applicant id.
func (n *Normalizer) Normalize(rec *AlternativeDataRecord, trust TrustInputs, zCredits int64) (FeatureVector, error) {
	if rec == nil || rec.ApplicantID == "" {
		return FeatureVector{}, apperrors.NewValidationError("applicant id is required")
	}

	fv := FeatureVector{
		Values:  make([]float64, len(featureNames)),
		Imputed: make(map[string]bool),
	}
	set := func(name string, v float64) {
		for i, fn := range featureNames {
			if fn == name {
				fv.Values[i] = clip01(v)
				return
			}
		}
	}
	impute := func(name string) {
		set(name, featureDefaults[name])
		fv.Imputed[name] = true
	}

	// payment channel
	if len(rec.Payments) == 0 {
		impute(FeatOnTimeRatio)
		impute(FeatAvgAmount)
		impute(FeatPaymentTypeValue)
		impute(FeatPaymentMonths)
	} else {
		onTime, total := 0, 0
		sum, typeVal := 0.0, 0.0
		for _, p := range rec.Payments {
			total++
			if p.OnTime() {
				onTime++
			}
			sum += math.Max(p.Amount, 0)
			tv, ok := paymentTypeValues[p.Type]
			if !ok {
				tv = paymentTypeValues[PaymentUtility]
			}
			typeVal += tv
		}
		set(FeatOnTimeRatio, float64(onTime)/float64(total))
		set(FeatAvgAmount, sum/float64(total)/10000.0)
		set(FeatPaymentTypeValue, typeVal/float64(total))
		set(FeatPaymentMonths, float64(rec.PaymentMonths())/24.0)
	}

	// loan channel
	if len(rec.Loans) == 0 {
		impute(FeatLoanCount)
		impute(FeatLoanSuccess)
	} else {
		repaid, resolved := 0, 0
		for _, l := range rec.Loans {
			switch l.Outcome {
			case LoanRepaid:
				repaid++
				resolved++
			case LoanDefaulted:
				resolved++
			}
		}
		set(FeatLoanCount, float64(len(rec.Loans))/10.0)
		if resolved == 0 {
			impute(FeatLoanSuccess)
		} else {
			set(FeatLoanSuccess, float64(repaid)/float64(resolved))
		}
	}

	// social channel
	if rec.Social == nil {
		impute(FeatCommunityRating)
		impute(FeatEndorsements)
		impute(FeatNetworkSize)
	} else {
		set(FeatCommunityRating, clip(rec.Social.CommunityRating, 0, 5)/5.0)
		set(FeatEndorsements, float64(rec.Social.Endorsements)/10.0)
		set(FeatNetworkSize, float64(rec.Social.NetworkSize)/50.0)
	}

	// digital channel
	if rec.Digital == nil {
		impute(FeatRegularity)
		impute(FeatDeviceStability)
		impute(FeatEngagement)
	} else {
		set(FeatRegularity, rec.Digital.TransactionRegularity)
		set(FeatDeviceStability, rec.Digital.DeviceStability)
		set(FeatEngagement, rec.Digital.EngagementScore)
	}

	// composite trust feedback
	set(FeatBehavioral, trust.Behavioral)
	set(FeatSocial, trust.Social)
	set(FeatDigital, trust.Digital)
	set(FeatOverallTrust, trust.Overall)

	// gamification ledger
	set(FeatZCredits, float64(zCredits)/1000.0)

	return fv, nil
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clip01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return clip(x, 0, 1)
}
