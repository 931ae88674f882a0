package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
)

func fullRecord() *AlternativeDataRecord {
	due := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	return &AlternativeDataRecord{
		ApplicantID:   "applicant-1",
		Version:       1,
		MonthlyIncome: 1500,
		Employment:    EmploymentFullTime,
		Payments: []PaymentRecord{
			{Amount: 100, DueDate: due, PaidDate: due.AddDate(0, 0, -2), Type: PaymentRent},
			{Amount: 50, DueDate: due.AddDate(0, -1, 0), PaidDate: due.AddDate(0, -1, 3), Type: PaymentUtility},
			{Amount: 200, DueDate: due.AddDate(0, -2, 0), PaidDate: due.AddDate(0, -2, 0), Type: PaymentLoanInstall},
			{Amount: 80, DueDate: due.AddDate(0, -3, 0), PaidDate: due.AddDate(0, -3, -1), Type: PaymentMobile},
		},
		Loans: []LoanRecord{
			{Amount: 500, Outcome: LoanRepaid},
			{Amount: 300, Outcome: LoanDefaulted},
			{Amount: 700, Outcome: LoanActive},
		},
		Social:  &SocialProof{CommunityRating: 4.0, Endorsements: 5, NetworkSize: 25},
		Digital: &DigitalFootprint{TransactionRegularity: 0.8, DeviceStability: 0.9, EngagementScore: 0.6},
	}
}

func TestNormalizeFullRecord(t *testing.T) {
	n := NewNormalizer()
	trust := TrustInputs{Behavioral: 0.7, Social: 0.6, Digital: 0.8, Overall: 0.7}

	fv, err := n.Normalize(fullRecord(), trust, 150)
	require.NoError(t, err)

	require.Len(t, fv.Values, FeatureCount())
	assert.Empty(t, fv.Imputed)

	// 3 of 4 payments settled on or before the due date
	assert.InDelta(t, 0.75, fv.Get(FeatOnTimeRatio), 1e-9)
	// 4 payments across 4 distinct months, scaled by 24
	assert.InDelta(t, 4.0/24.0, fv.Get(FeatPaymentMonths), 1e-9)
	// 1 repaid of 2 resolved loans; the active loan is not counted
	assert.InDelta(t, 0.5, fv.Get(FeatLoanSuccess), 1e-9)
	assert.InDelta(t, 0.3, fv.Get(FeatLoanCount), 1e-9)
	assert.InDelta(t, 0.8, fv.Get(FeatCommunityRating), 1e-9)
	assert.InDelta(t, 0.5, fv.Get(FeatEndorsements), 1e-9)
	assert.InDelta(t, 0.7, fv.Get(FeatOverallTrust), 1e-9)
	assert.InDelta(t, 0.15, fv.Get(FeatZCredits), 1e-9)

	for _, v := range fv.Values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNormalizeImputesMissingChannels(t *testing.T) {
	n := NewNormalizer()

	fv, err := n.Normalize(&AlternativeDataRecord{ApplicantID: "thin-file"}, TrustInputs{}, 0)
	require.NoError(t, err)

	imputedFeatures := []string{
		FeatOnTimeRatio, FeatAvgAmount, FeatPaymentTypeValue, FeatPaymentMonths,
		FeatLoanCount, FeatLoanSuccess,
		FeatCommunityRating, FeatEndorsements, FeatNetworkSize,
		FeatRegularity, FeatDeviceStability, FeatEngagement,
	}
	for _, name := range imputedFeatures {
		assert.True(t, fv.Imputed[name], "expected %s to be imputed", name)
		assert.InDelta(t, DefaultFor(name), fv.Get(name), 1e-9)
	}

	// composite feedback features come from the scorer, never imputed
	assert.False(t, fv.Imputed[FeatOverallTrust])
}

func TestNormalizeClipsOutOfDomainValues(t *testing.T) {
	n := NewNormalizer()
	rec := fullRecord()
	rec.Social.CommunityRating = 17 // above the 0-5 scale
	rec.Social.NetworkSize = 100000
	rec.Digital.TransactionRegularity = -3

	fv, err := n.Normalize(rec, TrustInputs{}, 0)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, fv.Get(FeatCommunityRating), 1e-9)
	assert.InDelta(t, 1.0, fv.Get(FeatNetworkSize), 1e-9)
	assert.InDelta(t, 0.0, fv.Get(FeatRegularity), 1e-9)
}

func TestNormalizeRejectsMissingApplicantID(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(&AlternativeDataRecord{}, TrustInputs{}, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))

	_, err = n.Normalize(nil, TrustInputs{}, 0)
	require.Error(t, err)
}

func TestNormalizeAllLoansActive(t *testing.T) {
	n := NewNormalizer()
	rec := fullRecord()
	rec.Loans = []LoanRecord{{Amount: 100, Outcome: LoanActive}}

	fv, err := n.Normalize(rec, TrustInputs{}, 0)
	require.NoError(t, err)

	// No resolved loans means success ratio is unknowable, not zero
	assert.True(t, fv.Imputed[FeatLoanSuccess])
	assert.InDelta(t, DefaultFor(FeatLoanSuccess), fv.Get(FeatLoanSuccess), 1e-9)
	assert.False(t, fv.Imputed[FeatLoanCount])
}

func TestPaymentOnTime(t *testing.T) {
	due := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, PaymentRecord{DueDate: due, PaidDate: due}.OnTime())
	assert.True(t, PaymentRecord{DueDate: due, PaidDate: due.AddDate(0, 0, -1)}.OnTime())
	assert.False(t, PaymentRecord{DueDate: due, PaidDate: due.AddDate(0, 0, 1)}.OnTime())
	assert.False(t, PaymentRecord{DueDate: due}.OnTime()) // never settled
}

func TestTypeValueUnknownFallsBackToUtility(t *testing.T) {
	assert.Equal(t, TypeValue(PaymentUtility), TypeValue(PaymentType("barter")))
	assert.Greater(t, TypeValue(PaymentLoanInstall), TypeValue(PaymentRent))
	assert.Greater(t, TypeValue(PaymentRent), TypeValue(PaymentUtility))
}
