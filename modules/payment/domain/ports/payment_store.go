package ports

import (
	"context"
	"time"

	"github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
)

// PaymentStore persists payment records. Every status mutation is expressed
// as a conditional transition so concurrent writers cannot clobber each
// other; a blind status overwrite has no place in this interface.
type PaymentStore interface {
	Create(ctx context.Context, p types.Payment) (types.Payment, error)
	Get(ctx context.Context, id string) (types.Payment, error)
	ListForDeclaration(ctx context.Context, declarationID string) ([]types.Payment, error)

	// TransitionStatus moves the record to the target status only when its
	// current status is one of allowedFrom. When the precondition fails the
	// current record is returned with applied=false and a nil error; the
	// caller decides whether that is an idempotent no-op or a state error.
	TransitionStatus(ctx context.Context, id string, allowedFrom []types.Status, to types.Status, stamp types.TransitionStamp) (p types.Payment, applied bool, err error)
}

// StatusCache is a read-side cache for the polling endpoint. Implementations
// are best-effort: a miss or a cache failure must never break a status read.
type StatusCache interface {
	Get(ctx context.Context, id string) (types.Payment, bool)
	Set(ctx context.Context, p types.Payment, ttl time.Duration)
}

// Notifier receives fire-and-forget status-change events. Errors are logged
// by the caller, never propagated.
type Notifier interface {
	PaymentStatusChanged(ctx context.Context, evt types.StatusChangedEvent) error
}
