package types

import "time"

// Status is the payment lifecycle state. The set is closed: stores persist
// the string form, but everything above the store layer must go through
// ParseStatus and CanTransition.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return Status(s), true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another. Terminal states admit nothing.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		switch to {
		case StatusProcessing, StatusCompleted, StatusCancelled, StatusExpired:
			return true
		}
	case StatusProcessing:
		switch to {
		case StatusCompleted, StatusFailed:
			return true
		}
	}
	return false
}

// Payment is one payment attempt against a declaration. A declaration may
// accumulate several records over its lifetime (re-issued after rejection).
type Payment struct {
	ID            string    `json:"id"`
	DeclarationID string    `json:"declaration_id"`
	AmountVND     int64     `json:"amount_vnd"`
	Status        Status    `json:"status"`
	Description   string    `json:"description"`
	QRImageURL    string    `json:"qr_image_url,omitempty"`
	ProofImageRef string    `json:"proof_image_ref,omitempty"`
	Note          string    `json:"note,omitempty"`
	CancelReason  string    `json:"cancel_reason,omitempty"`
	FailureCode   string    `json:"failure_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	PaidAt        time.Time `json:"paid_at,omitzero"`
}

// EffectiveStatus applies the lazy-expiry rule: a pending record past its
// deadline reads as expired without anyone having written that state.
func (p Payment) EffectiveStatus(now time.Time) Status {
	if p.Status == StatusPending && !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt) {
		return StatusExpired
	}
	return p.Status
}

// TransitionStamp carries the optional fields written together with a status
// transition. Zero values leave the stored column untouched.
type TransitionStamp struct {
	PaidAt        time.Time
	ProofImageRef string
	Note          string
	CancelReason  string
	FailureCode   string
}

// StatusChangedEvent is the fire-and-forget notification payload emitted
// after an accepted transition.
type StatusChangedEvent struct {
	DeclarationID string    `json:"declaration_id"`
	PaymentID     string    `json:"payment_id"`
	OldStatus     Status    `json:"old_status"`
	NewStatus     Status    `json:"new_status"`
	At            time.Time `json:"timestamp"`
}
