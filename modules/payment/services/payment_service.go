package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vhgminh/bhxh-portal/modules/payment/domain/ports"
	"github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
	"github.com/vhgminh/bhxh-portal/pkg/httperr"
	"github.com/vhgminh/bhxh-portal/pkg/uuidv7"
	"github.com/vhgminh/bhxh-portal/pkg/vietqr"
)

// DefaultTTL is how long a fresh payment stays payable.
const DefaultTTL = 30 * time.Minute

const defaultCacheTTL = 5 * time.Second

// QRGenerator is satisfied by *vietqr.Chain.
type QRGenerator interface {
	Generate(ctx context.Context, req vietqr.Request) (string, error)
}

type PaymentServiceConfig struct {
	Store    ports.PaymentStore
	Cache    ports.StatusCache
	Notifier ports.Notifier
	QR       QRGenerator
	Account  vietqr.BankAccount

	// TTL defaults to DefaultTTL when zero.
	TTL      time.Duration
	CacheTTL time.Duration

	// DeclarationExists guards creation against dangling declaration IDs.
	DeclarationExists func(ctx context.Context, declarationID string) (bool, error)

	NowUTC func() time.Time
	NewID  func() (string, error)
	Logger *slog.Logger
}

type PaymentService struct {
	cfg PaymentServiceConfig
}

func NewPaymentService(cfg PaymentServiceConfig) PaymentService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
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
	return PaymentService{cfg: cfg}
}

// Create allocates a pending payment for a declaration. QR image generation
// is best-effort: an exhausted provider chain degrades the record (manual
// bank details still work) instead of failing the creation.
func (s PaymentService) Create(ctx context.Context, declarationID string, amountVND int64, description string) (types.Payment, error) {
	if amountVND <= 0 {
		return types.Payment{}, &types.InvalidAmountError{AmountVND: amountVND}
	}
	if s.cfg.DeclarationExists != nil {
		ok, err := s.cfg.DeclarationExists(ctx, declarationID)
		if err != nil {
			return types.Payment{}, err
		}
		if !ok {
			return types.Payment{}, httperr.NewNotFound(fmt.Sprintf("declaration %s not found", declarationID))
		}
	}

	id, err := s.cfg.NewID()
	if err != nil {
		return types.Payment{}, err
	}

	now := s.cfg.NowUTC()
	p := types.Payment{
		ID:            id,
		DeclarationID: declarationID,
		AmountVND:     amountVND,
		Status:        types.StatusPending,
		Description:   description,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.TTL),
	}

	if s.cfg.QR != nil {
		url, err := s.cfg.QR.Generate(ctx, vietqr.Request{
			Account:     s.cfg.Account,
			AmountVND:   amountVND,
			Description: description,
		})
		if err != nil {
			svcErr := &types.ExternalServiceError{Service: "vietqr", Err: err}
			s.cfg.Logger.Warn("payment created without QR image", "payment_id", id, "err", svcErr)
		} else {
			p.QRImageURL = url
		}
	}

	created, err := s.cfg.Store.Create(ctx, p)
	if err != nil {
		return types.Payment{}, err
	}
	s.cacheSet(ctx, created)
	return created, nil
}

// ConfirmManually marks a payment completed on a user's say-so. Confirming an
// already completed record is a no-op returning the stored state: paidAt is
// stamped exactly once even under concurrent confirmations.
func (s PaymentService) ConfirmManually(ctx context.Context, id string, proofImageRef string, note string) (types.Payment, error) {
	now := s.cfg.NowUTC()

	current, err := s.cfg.Store.Get(ctx, id)
	if err != nil {
		return types.Payment{}, err
	}
	switch eff := current.EffectiveStatus(now); eff {
	case types.StatusCompleted:
		return current, nil
	case types.StatusPending, types.StatusProcessing:
	default:
		return current, &types.InvalidStateTransitionError{PaymentID: id, From: eff, To: types.StatusCompleted}
	}

	updated, applied, err := s.cfg.Store.TransitionStatus(ctx, id,
		[]types.Status{types.StatusPending, types.StatusProcessing},
		types.StatusCompleted,
		types.TransitionStamp{PaidAt: now, ProofImageRef: proofImageRef, Note: note},
	)
	if err != nil {
		return types.Payment{}, err
	}
	if !applied {
		// Lost the race. A concurrent confirmation is fine; anything else is
		// a genuine state conflict.
		if updated.Status == types.StatusCompleted {
			return updated, nil
		}
		return updated, &types.InvalidStateTransitionError{PaymentID: id, From: updated.EffectiveStatus(now), To: types.StatusCompleted}
	}

	s.cacheSet(ctx, updated)
	s.notify(ctx, current.Status, updated)
	return updated, nil
}

// CheckStatus is the side-effect-free read behind client polling. Expiry is
// applied at read time: a pending record past its deadline reports expired
// without any write.
func (s PaymentService) CheckStatus(ctx context.Context, id string) (types.Payment, error) {
	now := s.cfg.NowUTC()

	if s.cfg.Cache != nil {
		if p, ok := s.cfg.Cache.Get(ctx, id); ok {
			p.Status = p.EffectiveStatus(now)
			return p, nil
		}
	}

	p, err := s.cfg.Store.Get(ctx, id)
	if err != nil {
		return types.Payment{}, err
	}
	p.Status = p.EffectiveStatus(now)
	s.cacheSet(ctx, p)
	return p, nil
}

// Cancel aborts a pending payment. Cancelling twice is a no-op; cancelling a
// record in any other state is a state-transition error.
func (s PaymentService) Cancel(ctx context.Context, id string, reason string) (types.Payment, error) {
	now := s.cfg.NowUTC()

	current, err := s.cfg.Store.Get(ctx, id)
	if err != nil {
		return types.Payment{}, err
	}
	switch eff := current.EffectiveStatus(now); eff {
	case types.StatusCancelled:
		return current, nil
	case types.StatusPending:
	default:
		return current, &types.InvalidStateTransitionError{PaymentID: id, From: eff, To: types.StatusCancelled}
	}

	updated, applied, err := s.cfg.Store.TransitionStatus(ctx, id,
		[]types.Status{types.StatusPending},
		types.StatusCancelled,
		types.TransitionStamp{CancelReason: reason},
	)
	if err != nil {
		return types.Payment{}, err
	}
	if !applied {
		if updated.Status == types.StatusCancelled {
			return updated, nil
		}
		return updated, &types.InvalidStateTransitionError{PaymentID: id, From: updated.EffectiveStatus(now), To: types.StatusCancelled}
	}

	s.cacheSet(ctx, updated)
	s.notify(ctx, current.Status, updated)
	return updated, nil
}

// MarkProcessing hands a pending payment to the external reconciliation
// collaborator.
func (s PaymentService) MarkProcessing(ctx context.Context, id string) (types.Payment, error) {
	return s.reconcileTransition(ctx, id, []types.Status{types.StatusPending}, types.StatusProcessing, types.TransitionStamp{})
}

// MarkFailed records a reconciliation failure.
func (s PaymentService) MarkFailed(ctx context.Context, id string, failureCode string) (types.Payment, error) {
	return s.reconcileTransition(ctx, id, []types.Status{types.StatusProcessing}, types.StatusFailed, types.TransitionStamp{FailureCode: failureCode})
}

func (s PaymentService) reconcileTransition(ctx context.Context, id string, allowedFrom []types.Status, to types.Status, stamp types.TransitionStamp) (types.Payment, error) {
	now := s.cfg.NowUTC()

	updated, applied, err := s.cfg.Store.TransitionStatus(ctx, id, allowedFrom, to, stamp)
	if err != nil {
		return types.Payment{}, err
	}
	if !applied {
		if updated.Status == to {
			return updated, nil
		}
		return updated, &types.InvalidStateTransitionError{PaymentID: id, From: updated.EffectiveStatus(now), To: to}
	}

	s.cacheSet(ctx, updated)
	s.notify(ctx, allowedFrom[0], updated)
	return updated, nil
}

// ListForDeclaration returns every payment attempt for a declaration, newest
// last, with lazy expiry applied to the view.
func (s PaymentService) ListForDeclaration(ctx context.Context, declarationID string) ([]types.Payment, error) {
	now := s.cfg.NowUTC()
	out, err := s.cfg.Store.ListForDeclaration(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Status = out[i].EffectiveStatus(now)
	}
	return out, nil
}

func (s PaymentService) cacheSet(ctx context.Context, p types.Payment) {
	if s.cfg.Cache == nil {
		return
	}
	s.cfg.Cache.Set(ctx, p, s.cfg.CacheTTL)
}

func (s PaymentService) notify(ctx context.Context, old types.Status, p types.Payment) {
	if s.cfg.Notifier == nil {
		return
	}
	evt := types.StatusChangedEvent{
		DeclarationID: p.DeclarationID,
		PaymentID:     p.ID,
		OldStatus:     old,
		NewStatus:     p.Status,
		At:            s.cfg.NowUTC(),
	}
	if err := s.cfg.Notifier.PaymentStatusChanged(ctx, evt); err != nil {
		s.cfg.Logger.Warn("status notification dropped", "payment_id", p.ID, "err", err)
	}
}
