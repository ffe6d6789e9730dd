package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vhgminh/bhxh-portal/modules/payment/domain/ports"
	"github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PaymentPGStore struct {
	pool pgBeginner
}

func NewPaymentPGStore(pool pgBeginner) ports.PaymentStore {
	return &PaymentPGStore{pool: pool}
}

var paymentTransitionNamespace = uuid.Must(uuid.Parse("b3a1c6de-9f1b-43d2-8a70-5cc2f0a4d9e1"))

// deterministicTransitionEventID keeps the audit trail rerunnable: replaying
// the same transition writes the same event row.
func deterministicTransitionEventID(paymentID string, from, to types.Status, at time.Time) string {
	name := fmt.Sprintf("billing.payment_transition:%s:%s:%s:%s", paymentID, from, to, at.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(paymentTransitionNamespace, []byte(name)).String()
}

const paymentColumns = `
  id::text,
  declaration_id::text,
  amount_vnd,
  status,
  description,
  COALESCE(qr_image_url, '') AS qr_image_url,
  COALESCE(proof_image_ref, '') AS proof_image_ref,
  COALESCE(note, '') AS note,
  COALESCE(cancel_reason, '') AS cancel_reason,
  COALESCE(failure_code, '') AS failure_code,
  created_at,
  expires_at,
  paid_at`

type paymentRow interface {
	Scan(dest ...any) error
}

func scanPayment(row paymentRow) (types.Payment, error) {
	var p types.Payment
	var status string
	var paidAt *time.Time
	if err := row.Scan(
		&p.ID, &p.DeclarationID, &p.AmountVND, &status, &p.Description,
		&p.QRImageURL, &p.ProofImageRef, &p.Note, &p.CancelReason, &p.FailureCode,
		&p.CreatedAt, &p.ExpiresAt, &paidAt,
	); err != nil {
		return types.Payment{}, err
	}

	st, ok := types.ParseStatus(status)
	if !ok {
		return types.Payment{}, fmt.Errorf("payment %s has unknown status %q", p.ID, status)
	}
	p.Status = st
	if paidAt != nil {
		p.PaidAt = *paidAt
	}
	return p, nil
}

func (s *PaymentPGStore) Create(ctx context.Context, p types.Payment) (types.Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Payment{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
INSERT INTO billing.payments (
  id, declaration_id, amount_vnd, status, description,
  qr_image_url, created_at, expires_at
) VALUES (
  $1::uuid, $2::uuid, $3, $4, $5,
  NULLIF($6, ''), $7, $8
)
RETURNING`+paymentColumns+`
`, p.ID, p.DeclarationID, p.AmountVND, string(p.Status), p.Description, p.QRImageURL, p.CreatedAt, p.ExpiresAt)

	out, err := scanPayment(row)
	if err != nil {
		return types.Payment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Payment{}, err
	}
	return out, nil
}

func (s *PaymentPGStore) Get(ctx context.Context, id string) (types.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Payment{}, &types.NotFoundError{PaymentID: id}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Payment{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := scanPayment(tx.QueryRow(ctx, `
SELECT`+paymentColumns+`
FROM billing.payments
WHERE id = $1::uuid
`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Payment{}, &types.NotFoundError{PaymentID: id}
	}
	if err != nil {
		return types.Payment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Payment{}, err
	}
	return out, nil
}

func (s *PaymentPGStore) ListForDeclaration(ctx context.Context, declarationID string) ([]types.Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT`+paymentColumns+`
FROM billing.payments
WHERE declaration_id = $1::uuid
ORDER BY created_at ASC, id::text ASC
`, declarationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PaymentPGStore) TransitionStatus(ctx context.Context, id string, allowedFrom []types.Status, to types.Status, stamp types.TransitionStamp) (types.Payment, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Payment{}, false, &types.NotFoundError{PaymentID: id}
	}

	from := make([]string, 0, len(allowedFrom))
	for _, st := range allowedFrom {
		from = append(from, string(st))
	}

	var paidAt *time.Time
	if !stamp.PaidAt.IsZero() {
		t := stamp.PaidAt
		paidAt = &t
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Payment{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Conditional update: the row only moves when its current status is in
	// the allowed set, so concurrent confirm/cancel attempts cannot clobber
	// each other. prev carries the pre-update status for the audit event.
	var oldStatus string
	row := tx.QueryRow(ctx, `
UPDATE billing.payments AS p SET
  status = $2,
  paid_at = COALESCE($3, p.paid_at),
  proof_image_ref = COALESCE(NULLIF($4, ''), p.proof_image_ref),
  note = COALESCE(NULLIF($5, ''), p.note),
  cancel_reason = COALESCE(NULLIF($6, ''), p.cancel_reason),
  failure_code = COALESCE(NULLIF($7, ''), p.failure_code)
FROM (
  SELECT id, status AS old_status
  FROM billing.payments
  WHERE id = $1::uuid
  FOR UPDATE
) prev
WHERE p.id = prev.id
  AND p.status = ANY($8::text[])
RETURNING
  p.id::text,
  p.declaration_id::text,
  p.amount_vnd,
  p.status,
  p.description,
  COALESCE(p.qr_image_url, '') AS qr_image_url,
  COALESCE(p.proof_image_ref, '') AS proof_image_ref,
  COALESCE(p.note, '') AS note,
  COALESCE(p.cancel_reason, '') AS cancel_reason,
  COALESCE(p.failure_code, '') AS failure_code,
  p.created_at,
  p.expires_at,
  p.paid_at,
  prev.old_status
`, id, string(to), paidAt, stamp.ProofImageRef, stamp.Note, stamp.CancelReason, stamp.FailureCode, from)

	out, err := scanPaymentWithOldStatus(row, &oldStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		// Precondition failed or the row is gone; report the current state.
		current, err := scanPayment(tx.QueryRow(ctx, `
SELECT`+paymentColumns+`
FROM billing.payments
WHERE id = $1::uuid
`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Payment{}, false, &types.NotFoundError{PaymentID: id}
		}
		if err != nil {
			return types.Payment{}, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return types.Payment{}, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return types.Payment{}, false, err
	}

	eventAt := time.Now().UTC()
	if paidAt != nil {
		eventAt = paidAt.UTC()
	}
	eventID := deterministicTransitionEventID(id, types.Status(oldStatus), out.Status, eventAt)
	if _, err := tx.Exec(ctx, `
INSERT INTO billing.payment_events (id, payment_id, old_status, new_status, occurred_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
`, eventID, id, oldStatus, string(out.Status), eventAt); err != nil {
		return types.Payment{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Payment{}, false, err
	}
	return out, true, nil
}

func scanPaymentWithOldStatus(row paymentRow, oldStatus *string) (types.Payment, error) {
	var p types.Payment
	var status string
	var paidAt *time.Time
	if err := row.Scan(
		&p.ID, &p.DeclarationID, &p.AmountVND, &status, &p.Description,
		&p.QRImageURL, &p.ProofImageRef, &p.Note, &p.CancelReason, &p.FailureCode,
		&p.CreatedAt, &p.ExpiresAt, &paidAt, oldStatus,
	); err != nil {
		return types.Payment{}, err
	}

	st, ok := types.ParseStatus(status)
	if !ok {
		return types.Payment{}, fmt.Errorf("payment %s has unknown status %q", p.ID, status)
	}
	p.Status = st
	if paidAt != nil {
		p.PaidAt = *paidAt
	}
	return p, nil
}
