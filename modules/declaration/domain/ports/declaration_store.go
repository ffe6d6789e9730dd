package ports

import (
	"context"

	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
)

// DeclarationStore persists declaration batches. Status changes use the same
// conditional-transition contract as the payment store so concurrent
// approve/reject decisions cannot race each other.
type DeclarationStore interface {
	Create(ctx context.Context, d types.Declaration) (types.Declaration, error)
	Get(ctx context.Context, id string) (types.Declaration, error)
	ListByStatus(ctx context.Context, status types.DeclarationStatus) ([]types.Declaration, error)

	// UpdateDraft replaces participants and total while the declaration is
	// still a draft; applied=false means it had already left draft.
	UpdateDraft(ctx context.Context, id string, participants []types.Participant, totalAmount int64) (d types.Declaration, applied bool, err error)

	TransitionStatus(ctx context.Context, id string, allowedFrom []types.DeclarationStatus, to types.DeclarationStatus, stamp types.TransitionStamp) (d types.Declaration, applied bool, err error)
}
