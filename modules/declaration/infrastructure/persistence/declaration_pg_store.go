package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/ports"
	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type DeclarationPGStore struct {
	pool pgBeginner
}

func NewDeclarationPGStore(pool pgBeginner) ports.DeclarationStore {
	return &DeclarationPGStore{pool: pool}
}

// Participants live in a jsonb column: the roster is always read and written
// as a whole, never queried per row.
const declarationColumns = `
  id::text,
  org_code,
  COALESCE(agent_code, '') AS agent_code,
  COALESCE(period, '') AS period,
  status,
  participants,
  total_amount_vnd,
  COALESCE(reject_reason, '') AS reject_reason,
  created_at,
  submitted_at,
  decided_at`

type declRow interface {
	Scan(dest ...any) error
}

func scanDeclaration(row declRow) (types.Declaration, error) {
	var d types.Declaration
	var status string
	var participants []byte
	var submittedAt, decidedAt *time.Time
	if err := row.Scan(
		&d.ID, &d.OrgCode, &d.AgentCode, &d.Period, &status,
		&participants, &d.TotalAmountVND, &d.RejectReason,
		&d.CreatedAt, &submittedAt, &decidedAt,
	); err != nil {
		return types.Declaration{}, err
	}

	st, ok := types.ParseDeclarationStatus(status)
	if !ok {
		return types.Declaration{}, fmt.Errorf("declaration %s has unknown status %q", d.ID, status)
	}
	d.Status = st
	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &d.Participants); err != nil {
			return types.Declaration{}, fmt.Errorf("declaration %s participants: %w", d.ID, err)
		}
	}
	if submittedAt != nil {
		d.SubmittedAt = *submittedAt
	}
	if decidedAt != nil {
		d.DecidedAt = *decidedAt
	}
	return d, nil
}

func (s *DeclarationPGStore) Create(ctx context.Context, d types.Declaration) (types.Declaration, error) {
	participants, err := json.Marshal(d.Participants)
	if err != nil {
		return types.Declaration{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Declaration{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := scanDeclaration(tx.QueryRow(ctx, `
INSERT INTO insurance.declarations (
  id, org_code, agent_code, period, status, participants, total_amount_vnd, created_at
) VALUES (
  $1::uuid, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6::jsonb, $7, $8
)
RETURNING`+declarationColumns+`
`, d.ID, d.OrgCode, d.AgentCode, d.Period, string(d.Status), participants, d.TotalAmountVND, d.CreatedAt))
	if err != nil {
		return types.Declaration{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Declaration{}, err
	}
	return out, nil
}

func (s *DeclarationPGStore) Get(ctx context.Context, id string) (types.Declaration, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Declaration{}, &types.NotFoundError{DeclarationID: id}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Declaration{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := scanDeclaration(tx.QueryRow(ctx, `
SELECT`+declarationColumns+`
FROM insurance.declarations
WHERE id = $1::uuid
`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Declaration{}, &types.NotFoundError{DeclarationID: id}
	}
	if err != nil {
		return types.Declaration{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Declaration{}, err
	}
	return out, nil
}

func (s *DeclarationPGStore) ListByStatus(ctx context.Context, status types.DeclarationStatus) ([]types.Declaration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT`+declarationColumns+`
FROM insurance.declarations
WHERE status = $1
ORDER BY created_at ASC, id::text ASC
`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DeclarationPGStore) UpdateDraft(ctx context.Context, id string, participants []types.Participant, totalAmount int64) (types.Declaration, bool, error) {
	raw, err := json.Marshal(participants)
	if err != nil {
		return types.Declaration{}, false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Declaration{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := scanDeclaration(tx.QueryRow(ctx, `
UPDATE insurance.declarations SET
  participants = $2::jsonb,
  total_amount_vnd = $3
WHERE id = $1::uuid
  AND status = 'draft'
RETURNING`+declarationColumns+`
`, id, raw, totalAmount))
	if errors.Is(err, pgx.ErrNoRows) {
		current, cur := s.currentInTx(ctx, tx, id)
		if cur != nil {
			return types.Declaration{}, false, cur
		}
		if err := tx.Commit(ctx); err != nil {
			return types.Declaration{}, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return types.Declaration{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Declaration{}, false, err
	}
	return out, true, nil
}

func (s *DeclarationPGStore) TransitionStatus(ctx context.Context, id string, allowedFrom []types.DeclarationStatus, to types.DeclarationStatus, stamp types.TransitionStamp) (types.Declaration, bool, error) {
	from := make([]string, 0, len(allowedFrom))
	for _, st := range allowedFrom {
		from = append(from, string(st))
	}

	var submittedAt, decidedAt *time.Time
	if !stamp.SubmittedAt.IsZero() {
		t := stamp.SubmittedAt
		submittedAt = &t
	}
	if !stamp.DecidedAt.IsZero() {
		t := stamp.DecidedAt
		decidedAt = &t
	}

	var participants []byte
	if stamp.Participants != nil {
		raw, err := json.Marshal(stamp.Participants)
		if err != nil {
			return types.Declaration{}, false, err
		}
		participants = raw
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Declaration{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := scanDeclaration(tx.QueryRow(ctx, `
UPDATE insurance.declarations SET
  status = $2,
  submitted_at = COALESCE($3, submitted_at),
  decided_at = COALESCE($4, decided_at),
  reject_reason = COALESCE(NULLIF($5, ''), reject_reason),
  participants = COALESCE($6::jsonb, participants),
  total_amount_vnd = CASE WHEN $6::jsonb IS NULL THEN total_amount_vnd ELSE $7 END
WHERE id = $1::uuid
  AND status = ANY($8::text[])
RETURNING`+declarationColumns+`
`, id, string(to), submittedAt, decidedAt, stamp.RejectReason, participants, stamp.TotalAmount, from))
	if errors.Is(err, pgx.ErrNoRows) {
		current, cur := s.currentInTx(ctx, tx, id)
		if cur != nil {
			return types.Declaration{}, false, cur
		}
		if err := tx.Commit(ctx); err != nil {
			return types.Declaration{}, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return types.Declaration{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Declaration{}, false, err
	}
	return out, true, nil
}

func (s *DeclarationPGStore) currentInTx(ctx context.Context, tx pgx.Tx, id string) (types.Declaration, error) {
	current, err := scanDeclaration(tx.QueryRow(ctx, `
SELECT`+declarationColumns+`
FROM insurance.declarations
WHERE id = $1::uuid
`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Declaration{}, &types.NotFoundError{DeclarationID: id}
	}
	return current, err
}
