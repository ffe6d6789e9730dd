package types

import (
	"time"

	"github.com/vhgminh/bhxh-portal/pkg/bhyt"
)

// DeclarationStatus is the approval lifecycle of a declaration batch.
type DeclarationStatus string

const (
	DeclarationDraft     DeclarationStatus = "draft"
	DeclarationSubmitted DeclarationStatus = "submitted"
	DeclarationApproved  DeclarationStatus = "approved"
	DeclarationRejected  DeclarationStatus = "rejected"
)

func ParseDeclarationStatus(s string) (DeclarationStatus, bool) {
	switch DeclarationStatus(s) {
	case DeclarationDraft, DeclarationSubmitted, DeclarationApproved, DeclarationRejected:
		return DeclarationStatus(s), true
	default:
		return "", false
	}
}

// Participant is one insured person inside a declaration batch.
type Participant struct {
	FullName       string              `json:"full_name"`
	InsuranceCode  string              `json:"insurance_code,omitempty"`
	HouseholdOrder bhyt.HouseholdOrder `json:"household_order"`
	MonthsPaid     int                 `json:"months_paid"`
	OldCardExpiry  time.Time           `json:"old_card_expiry,omitzero"`

	// Derived fields, recomputed on every draft write.
	AmountVND     int64     `json:"amount_vnd"`
	CardStartDate time.Time `json:"card_start_date,omitzero"`
	CardEndDate   time.Time `json:"card_end_date,omitzero"`
}

// Declaration is a batch submission of insured participants by a collection
// agent. Payment records reference the declaration by ID; the org and agent
// codes feed the structured payment description.
type Declaration struct {
	ID             string            `json:"id"`
	OrgCode        string            `json:"org_code"`
	AgentCode      string            `json:"agent_code"`
	Period         string            `json:"period"`
	Status         DeclarationStatus `json:"status"`
	Participants   []Participant     `json:"participants"`
	TotalAmountVND int64             `json:"total_amount_vnd"`
	RejectReason   string            `json:"reject_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	SubmittedAt    time.Time         `json:"submitted_at,omitzero"`
	DecidedAt      time.Time         `json:"decided_at,omitzero"`
}

// TransitionStamp carries the optional columns written with a status change.
type TransitionStamp struct {
	SubmittedAt  time.Time
	DecidedAt    time.Time
	RejectReason string
	Participants []Participant
	TotalAmount  int64
}
