package record

import "time"

// PaymentType identifies the obligation class of a payment. Credit and loan
// installments carry more predictive value than basic utility bills.
type PaymentType string

const (
	PaymentUtility      PaymentType = "utility"
	PaymentRent         PaymentType = "rent"
	PaymentMobile       PaymentType = "mobile"
	PaymentLoanInstall  PaymentType = "loan_installment"
	PaymentCreditCard   PaymentType = "credit_card"
	PaymentSubscription PaymentType = "subscription"
)

// LoanOutcome is the terminal state of a historical loan.
type LoanOutcome string

const (
	LoanRepaid    LoanOutcome = "repaid"
	LoanDefaulted LoanOutcome = "defaulted"
	LoanActive    LoanOutcome = "active"
)

// PaymentRecord is one observed payment from the ingestion collaborator.
type PaymentRecord struct {
	Amount   float64     `json:"amount"`
	DueDate  time.Time   `json:"due_date"`
	PaidDate time.Time   `json:"paid_date"`
	Type     PaymentType `json:"type"`
}

// OnTime reports whether the payment settled on or before its due date.
// A zero PaidDate means the payment was never observed as settled.
func (p PaymentRecord) OnTime() bool {
	if p.PaidDate.IsZero() {
		return false
	}
	return !p.PaidDate.After(p.DueDate)
}

// LoanRecord is one historical loan and its outcome.
type LoanRecord struct {
	Amount  float64     `json:"amount"`
	Outcome LoanOutcome `json:"outcome"`
}

// SocialProof carries community-sourced trust signals.
type SocialProof struct {
	CommunityRating float64 `json:"community_rating"` // 0-5 scale
	Endorsements    int     `json:"endorsements"`
	NetworkSize     int     `json:"network_size"`
}

// DigitalFootprint carries digital behavior signals. The ingestion layer
// pre-normalizes these to [0,1]; out-of-domain values are clipped here.
type DigitalFootprint struct {
	TransactionRegularity float64 `json:"transaction_regularity"`
	DeviceStability       float64 `json:"device_stability"`
	EngagementScore       float64 `json:"engagement_score"`
}

// EmploymentType feeds the income-reliability part of the behavioral score.
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "full_time"
	EmploymentPartTime EmploymentType = "part_time"
	EmploymentContract EmploymentType = "contract"
	EmploymentInformal EmploymentType = "informal"
)

// AlternativeDataRecord is the per-applicant input to an assessment.
// It is immutable once ingested; updates create a new Version. The engine
// references records, it never copies or mutates them.
type AlternativeDataRecord struct {
	ApplicantID   string            `json:"applicant_id"`
	Version       int               `json:"version"`
	MonthlyIncome float64           `json:"monthly_income"`
	Employment    EmploymentType    `json:"employment_type"`
	Payments      []PaymentRecord   `json:"payment_history"`
	Loans         []LoanRecord      `json:"loan_history"`
	Social        *SocialProof      `json:"social_proof,omitempty"`
	Digital       *DigitalFootprint `json:"digital_footprint,omitempty"`
}

// PaymentMonths counts distinct calendar months covered by payment history.
func (r *AlternativeDataRecord) PaymentMonths() int {
	months := make(map[string]struct{}, len(r.Payments))
	for _, p := range r.Payments {
		if p.DueDate.IsZero() {
			continue
		}
		months[p.DueDate.Format("2006-01")] = struct{}{}
	}
	return len(months)
}
