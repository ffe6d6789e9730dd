// Package memory is the in-memory DeclarationStore used by tests and the
// no-database dev mode. Semantics mirror the Postgres store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/ports"
	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
)

type DeclarationMemoryStore struct {
	mu           sync.Mutex
	declarations map[string]types.Declaration
	order        []string
}

func NewDeclarationMemoryStore() *DeclarationMemoryStore {
	return &DeclarationMemoryStore{declarations: make(map[string]types.Declaration)}
}

var _ ports.DeclarationStore = (*DeclarationMemoryStore)(nil)

func cloneParticipants(ps []types.Participant) []types.Participant {
	return slices.Clone(ps)
}

func (s *DeclarationMemoryStore) Create(_ context.Context, d types.Declaration) (types.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.Participants = cloneParticipants(d.Participants)
	s.declarations[d.ID] = d
	s.order = append(s.order, d.ID)
	return d, nil
}

func (s *DeclarationMemoryStore) Get(_ context.Context, id string) (types.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.declarations[id]
	if !ok {
		return types.Declaration{}, &types.NotFoundError{DeclarationID: id}
	}
	d.Participants = cloneParticipants(d.Participants)
	return d, nil
}

func (s *DeclarationMemoryStore) ListByStatus(_ context.Context, status types.DeclarationStatus) ([]types.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Declaration
	for _, id := range s.order {
		if d := s.declarations[id]; d.Status == status {
			d.Participants = cloneParticipants(d.Participants)
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *DeclarationMemoryStore) UpdateDraft(_ context.Context, id string, participants []types.Participant, totalAmount int64) (types.Declaration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.declarations[id]
	if !ok {
		return types.Declaration{}, false, &types.NotFoundError{DeclarationID: id}
	}
	if d.Status != types.DeclarationDraft {
		return d, false, nil
	}

	d.Participants = cloneParticipants(participants)
	d.TotalAmountVND = totalAmount
	s.declarations[id] = d
	return d, true, nil
}

func (s *DeclarationMemoryStore) TransitionStatus(_ context.Context, id string, allowedFrom []types.DeclarationStatus, to types.DeclarationStatus, stamp types.TransitionStamp) (types.Declaration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.declarations[id]
	if !ok {
		return types.Declaration{}, false, &types.NotFoundError{DeclarationID: id}
	}
	if !slices.Contains(allowedFrom, d.Status) {
		return d, false, nil
	}

	d.Status = to
	if !stamp.SubmittedAt.IsZero() {
		d.SubmittedAt = stamp.SubmittedAt
	}
	if !stamp.DecidedAt.IsZero() {
		d.DecidedAt = stamp.DecidedAt
	}
	if stamp.RejectReason != "" {
		d.RejectReason = stamp.RejectReason
	}
	if stamp.Participants != nil {
		d.Participants = cloneParticipants(stamp.Participants)
		d.TotalAmountVND = stamp.TotalAmount
	}
	s.declarations[id] = d
	return d, true, nil
}
