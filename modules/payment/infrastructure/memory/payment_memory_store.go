// Package memory holds an in-memory PaymentStore with the same conditional
// transition semantics as the Postgres store. It backs handler and service
// tests and the no-database dev mode.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/vhgminh/bhxh-portal/modules/payment/domain/ports"
	"github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
)

type PaymentMemoryStore struct {
	mu       sync.Mutex
	payments map[string]types.Payment
	// order keeps ListForDeclaration deterministic.
	order []string
}

func NewPaymentMemoryStore() *PaymentMemoryStore {
	return &PaymentMemoryStore{payments: make(map[string]types.Payment)}
}

var _ ports.PaymentStore = (*PaymentMemoryStore)(nil)

func (s *PaymentMemoryStore) Create(_ context.Context, p types.Payment) (types.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		// Create is keyed by a fresh UUIDv7; a duplicate means a caller bug.
		return types.Payment{}, &types.InvalidStateTransitionError{PaymentID: p.ID, From: s.payments[p.ID].Status, To: p.Status}
	}
	s.payments[p.ID] = p
	s.order = append(s.order, p.ID)
	return p, nil
}

func (s *PaymentMemoryStore) Get(_ context.Context, id string) (types.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return types.Payment{}, &types.NotFoundError{PaymentID: id}
	}
	return p, nil
}

func (s *PaymentMemoryStore) ListForDeclaration(_ context.Context, declarationID string) ([]types.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Payment
	for _, id := range s.order {
		if p := s.payments[id]; p.DeclarationID == declarationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PaymentMemoryStore) TransitionStatus(_ context.Context, id string, allowedFrom []types.Status, to types.Status, stamp types.TransitionStamp) (types.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return types.Payment{}, false, &types.NotFoundError{PaymentID: id}
	}
	if !slices.Contains(allowedFrom, p.Status) {
		return p, false, nil
	}

	p.Status = to
	if !stamp.PaidAt.IsZero() {
		p.PaidAt = stamp.PaidAt
	}
	if stamp.ProofImageRef != "" {
		p.ProofImageRef = stamp.ProofImageRef
	}
	if stamp.Note != "" {
		p.Note = stamp.Note
	}
	if stamp.CancelReason != "" {
		p.CancelReason = stamp.CancelReason
	}
	if stamp.FailureCode != "" {
		p.FailureCode = stamp.FailureCode
	}
	s.payments[id] = p
	return p, true, nil
}
