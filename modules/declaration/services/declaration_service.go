package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/ports"
	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
	paymenttypes "github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
	paymentservices "github.com/vhgminh/bhxh-portal/modules/payment/services"
	"github.com/vhgminh/bhxh-portal/pkg/bhyt"
	"github.com/vhgminh/bhxh-portal/pkg/httperr"
	"github.com/vhgminh/bhxh-portal/pkg/uuidv7"
)

type DeclarationServiceConfig struct {
	Store    ports.DeclarationStore
	Rules    *RuleEngine
	Payments *paymentservices.PaymentService
	Calc     bhyt.Config

	NowUTC func() time.Time
	NewID  func() (string, error)
	Logger *slog.Logger
}

// DeclarationService owns the intake/approval lifecycle and feeds approved
// totals into the payment core.
type DeclarationService struct {
	cfg DeclarationServiceConfig
}

func NewDeclarationService(cfg DeclarationServiceConfig) DeclarationService {
	if cfg.Rules == nil {
		cfg.Rules = NewRuleEngine(DefaultIntakeRules())
	}
	if cfg.NowUTC == nil {
		cfg.NowUTC = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuidv7.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return DeclarationService{cfg: cfg}
}

// Quote computes per-participant amounts and expected card windows without
// persisting anything. The form preview calls this on every input change.
func (s DeclarationService) Quote(participants []types.Participant, receiptDate time.Time) ([]types.Participant, int64) {
	out := make([]types.Participant, len(participants))
	var total int64
	for i, p := range participants {
		amount := bhyt.ComputeContribution(s.cfg.Calc, bhyt.ContributionInput{
			HouseholdOrder: p.HouseholdOrder,
			MonthsPaid:     p.MonthsPaid,
		})
		p.AmountVND = amount.AmountVND
		total += amount.AmountVND

		window := bhyt.ComputeCardValidity(bhyt.CardValidityInput{
			MonthsPaid:    p.MonthsPaid,
			OldCardExpiry: p.OldCardExpiry,
			ReceiptDate:   receiptDate,
		})
		p.CardStartDate = window.StartDate
		p.CardEndDate = window.EndDate
		out[i] = p
	}
	return out, total
}

// Create validates the roster and stores a draft with computed amounts.
func (s DeclarationService) Create(ctx context.Context, orgCode, agentCode, period string, participants []types.Participant) (types.Declaration, error) {
	orgCode = strings.TrimSpace(orgCode)
	agentCode = strings.TrimSpace(agentCode)
	if orgCode == "" {
		return types.Declaration{}, httperr.NewBadRequest("org_code is required")
	}
	if len(participants) == 0 {
		return types.Declaration{}, httperr.NewBadRequest("at least one participant is required")
	}
	if violations := s.cfg.Rules.Validate(participants); len(violations) > 0 {
		return types.Declaration{}, &types.ValidationError{Violations: violations}
	}

	id, err := s.cfg.NewID()
	if err != nil {
		return types.Declaration{}, err
	}

	now := s.cfg.NowUTC()
	quoted, total := s.Quote(participants, now)
	return s.cfg.Store.Create(ctx, types.Declaration{
		ID:             id,
		OrgCode:        orgCode,
		AgentCode:      agentCode,
		Period:         period,
		Status:         types.DeclarationDraft,
		Participants:   quoted,
		TotalAmountVND: total,
		CreatedAt:      now,
	})
}

// UpdateDraft replaces the roster of a draft declaration, recomputing
// amounts. Editing a declaration that has left draft is a state error.
func (s DeclarationService) UpdateDraft(ctx context.Context, id string, participants []types.Participant) (types.Declaration, error) {
	if len(participants) == 0 {
		return types.Declaration{}, httperr.NewBadRequest("at least one participant is required")
	}
	if violations := s.cfg.Rules.Validate(participants); len(violations) > 0 {
		return types.Declaration{}, &types.ValidationError{Violations: violations}
	}

	quoted, total := s.Quote(participants, s.cfg.NowUTC())
	d, applied, err := s.cfg.Store.UpdateDraft(ctx, id, quoted, total)
	if err != nil {
		return types.Declaration{}, err
	}
	if !applied {
		return d, &types.InvalidStateTransitionError{DeclarationID: id, From: d.Status, To: types.DeclarationDraft}
	}
	return d, nil
}

func (s DeclarationService) Get(ctx context.Context, id string) (types.Declaration, error) {
	return s.cfg.Store.Get(ctx, id)
}

func (s DeclarationService) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.cfg.Store.Get(ctx, id)
	if types.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s DeclarationService) ListByStatus(ctx context.Context, status types.DeclarationStatus) ([]types.Declaration, error) {
	return s.cfg.Store.ListByStatus(ctx, status)
}

// Submit moves a draft into the approval queue.
func (s DeclarationService) Submit(ctx context.Context, id string) (types.Declaration, error) {
	return s.transition(ctx, id,
		[]types.DeclarationStatus{types.DeclarationDraft},
		types.DeclarationSubmitted,
		types.TransitionStamp{SubmittedAt: s.cfg.NowUTC()})
}

// Approve accepts a submitted declaration: card windows are finalized with
// the decision date as the receipt date, and a payment record is issued for
// the aggregated total.
func (s DeclarationService) Approve(ctx context.Context, id string) (types.Declaration, paymenttypes.Payment, error) {
	now := s.cfg.NowUTC()

	current, err := s.cfg.Store.Get(ctx, id)
	if err != nil {
		return types.Declaration{}, paymenttypes.Payment{}, err
	}
	finalized, total := s.Quote(current.Participants, now)

	d, applied, err := s.cfg.Store.TransitionStatus(ctx, id,
		[]types.DeclarationStatus{types.DeclarationSubmitted},
		types.DeclarationApproved,
		types.TransitionStamp{DecidedAt: now, Participants: finalized, TotalAmount: total})
	if err != nil {
		return types.Declaration{}, paymenttypes.Payment{}, err
	}
	if !applied {
		return d, paymenttypes.Payment{}, &types.InvalidStateTransitionError{DeclarationID: id, From: d.Status, To: types.DeclarationApproved}
	}

	if s.cfg.Payments == nil {
		return d, paymenttypes.Payment{}, nil
	}
	p, err := s.cfg.Payments.Create(ctx, d.ID, d.TotalAmountVND, PaymentDescription(d))
	if err != nil {
		// The approval stands; the operator re-issues the payment manually.
		s.cfg.Logger.Warn("approved declaration has no payment", "declaration_id", d.ID, "err", err)
		return d, paymenttypes.Payment{}, err
	}
	return d, p, nil
}

// Reject returns a submitted declaration to its agent with a reason.
func (s DeclarationService) Reject(ctx context.Context, id string, reason string) (types.Declaration, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return types.Declaration{}, httperr.NewBadRequest("reject reason is required")
	}
	return s.transition(ctx, id,
		[]types.DeclarationStatus{types.DeclarationSubmitted},
		types.DeclarationRejected,
		types.TransitionStamp{DecidedAt: s.cfg.NowUTC(), RejectReason: reason})
}

// Resubmit puts a rejected declaration back into the approval queue. The
// next approval issues a fresh payment record.
func (s DeclarationService) Resubmit(ctx context.Context, id string) (types.Declaration, error) {
	return s.transition(ctx, id,
		[]types.DeclarationStatus{types.DeclarationRejected},
		types.DeclarationSubmitted,
		types.TransitionStamp{SubmittedAt: s.cfg.NowUTC()})
}

func (s DeclarationService) transition(ctx context.Context, id string, allowedFrom []types.DeclarationStatus, to types.DeclarationStatus, stamp types.TransitionStamp) (types.Declaration, error) {
	d, applied, err := s.cfg.Store.TransitionStatus(ctx, id, allowedFrom, to, stamp)
	if err != nil {
		return types.Declaration{}, err
	}
	if !applied {
		return d, &types.InvalidStateTransitionError{DeclarationID: id, From: d.Status, To: to}
	}
	return d, nil
}

// PaymentDescription builds the structured reference string embedded in the
// QR payload: scheme, org code, agent code, short declaration ref.
func PaymentDescription(d types.Declaration) string {
	ref := strings.ToUpper(strings.ReplaceAll(d.ID, "-", ""))
	if len(ref) > 8 {
		ref = ref[len(ref)-8:]
	}
	if d.AgentCode == "" {
		return fmt.Sprintf("BHYTHGD %s %s", d.OrgCode, ref)
	}
	return fmt.Sprintf("BHYTHGD %s %s %s", d.OrgCode, d.AgentCode, ref)
}
