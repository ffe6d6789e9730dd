package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
	declmemory "github.com/vhgminh/bhxh-portal/modules/declaration/infrastructure/memory"
	paymenttypes "github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
	paymemory "github.com/vhgminh/bhxh-portal/modules/payment/infrastructure/memory"
	paymentservices "github.com/vhgminh/bhxh-portal/modules/payment/services"
	"github.com/vhgminh/bhxh-portal/pkg/bhyt"
	"github.com/vhgminh/bhxh-portal/pkg/httperr"
)

var declTestNow = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func newTestDeclarationService(t *testing.T) DeclarationService {
	t.Helper()
	return NewDeclarationService(DeclarationServiceConfig{
		Store:  declmemory.NewDeclarationMemoryStore(),
		NowUTC: func() time.Time { return declTestNow },
	})
}

func roster() []types.Participant {
	return []types.Participant{
		{FullName: "Nguyen Van A", HouseholdOrder: bhyt.HouseholdOrderFirst, MonthsPaid: 12},
		{FullName: "Nguyen Thi B", HouseholdOrder: bhyt.HouseholdOrderSecond, MonthsPaid: 12},
	}
}

func TestQuoteComputesAmountsAndWindows(t *testing.T) {
	svc := newTestDeclarationService(t)

	quoted, total := svc.Quote(roster(), declTestNow)
	if quoted[0].AmountVND != 1_263_600 {
		t.Fatalf("first member amount=%d, want 1263600", quoted[0].AmountVND)
	}
	if quoted[1].AmountVND != 884_520 {
		t.Fatalf("second member amount=%d, want 884520", quoted[1].AmountVND)
	}
	if total != 2_148_120 {
		t.Fatalf("total=%d, want 2148120", total)
	}

	wantStart := declTestNow.AddDate(0, 0, 30)
	if !quoted[0].CardStartDate.Equal(wantStart) {
		t.Fatalf("card start=%v, want %v", quoted[0].CardStartDate, wantStart)
	}
	wantEnd := wantStart.AddDate(1, 0, -1)
	if !quoted[0].CardEndDate.Equal(wantEnd) {
		t.Fatalf("card end=%v, want %v", quoted[0].CardEndDate, wantEnd)
	}
}

func TestCreateStoresQuotedDraft(t *testing.T) {
	svc := newTestDeclarationService(t)

	d, err := svc.Create(context.Background(), "DVT001", "AG07", "2026-02", roster())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Status != types.DeclarationDraft {
		t.Fatalf("status=%s, want draft", d.Status)
	}
	if d.TotalAmountVND != 2_148_120 {
		t.Fatalf("total=%d, want 2148120", d.TotalAmountVND)
	}
	if d.Participants[0].AmountVND == 0 {
		t.Fatalf("participant amount not computed")
	}
	if !d.CreatedAt.Equal(declTestNow) {
		t.Fatalf("created_at=%v, want %v", d.CreatedAt, declTestNow)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := newTestDeclarationService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", "", "", roster()); !httperr.IsBadRequest(err) {
		t.Fatalf("missing org code: err=%v, want bad request", err)
	}
	if _, err := svc.Create(ctx, "DVT001", "", "", nil); !httperr.IsBadRequest(err) {
		t.Fatalf("empty roster: err=%v, want bad request", err)
	}

	bad := roster()
	bad[1].MonthsPaid = 7
	_, err := svc.Create(ctx, "DVT001", "", "", bad)
	if !types.IsValidation(err) {
		t.Fatalf("err=%v, want validation error", err)
	}
	verr, ok := errors.AsType[*types.ValidationError](err)
	if !ok || len(verr.Violations) != 1 || verr.Violations[0].ParticipantIndex != 1 {
		t.Fatalf("violations=%+v, want one for participant 1", verr)
	}
}

func TestUpdateDraftRecomputesTotals(t *testing.T) {
	svc := newTestDeclarationService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "DVT001", "", "", roster())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	smaller := roster()[:1]
	updated, err := svc.UpdateDraft(ctx, d.ID, smaller)
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if len(updated.Participants) != 1 {
		t.Fatalf("participants=%d, want 1", len(updated.Participants))
	}
	if updated.TotalAmountVND != 1_263_600 {
		t.Fatalf("total=%d, want 1263600", updated.TotalAmountVND)
	}
}

func TestUpdateDraftAfterSubmitRejected(t *testing.T) {
	svc := newTestDeclarationService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "DVT001", "", "", roster())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Submit(ctx, d.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = svc.UpdateDraft(ctx, d.ID, roster())
	if !types.IsInvalidStateTransition(err) {
		t.Fatalf("err=%v, want invalid state transition", err)
	}
}

func TestLifecycleSubmitRejectResubmit(t *testing.T) {
	svc := newTestDeclarationService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "DVT001", "AG07", "", roster())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	d, err = svc.Submit(ctx, d.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if d.Status != types.DeclarationSubmitted || !d.SubmittedAt.Equal(declTestNow) {
		t.Fatalf("after submit: status=%s submitted_at=%v", d.Status, d.SubmittedAt)
	}

	if _, err := svc.Submit(ctx, d.ID); !types.IsInvalidStateTransition(err) {
		t.Fatalf("double submit: err=%v, want invalid state transition", err)
	}

	if _, err := svc.Reject(ctx, d.ID, ""); !httperr.IsBadRequest(err) {
		t.Fatalf("empty reason: err=%v, want bad request", err)
	}
	d, err = svc.Reject(ctx, d.ID, "missing household book scan")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if d.Status != types.DeclarationRejected || d.RejectReason != "missing household book scan" {
		t.Fatalf("after reject: status=%s reason=%q", d.Status, d.RejectReason)
	}

	d, err = svc.Resubmit(ctx, d.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if d.Status != types.DeclarationSubmitted {
		t.Fatalf("after resubmit: status=%s", d.Status)
	}
}

func TestApproveIssuesPayment(t *testing.T) {
	payments := paymentservices.NewPaymentService(paymentservices.PaymentServiceConfig{
		Store:  paymemory.NewPaymentMemoryStore(),
		NowUTC: func() time.Time { return declTestNow },
	})
	svc := NewDeclarationService(DeclarationServiceConfig{
		Store:    declmemory.NewDeclarationMemoryStore(),
		Payments: &payments,
		NowUTC:   func() time.Time { return declTestNow },
	})
	ctx := context.Background()

	d, err := svc.Create(ctx, "DVT001", "AG07", "2026-02", roster())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Submit(ctx, d.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	d, p, err := svc.Approve(ctx, d.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if d.Status != types.DeclarationApproved || !d.DecidedAt.Equal(declTestNow) {
		t.Fatalf("after approve: status=%s decided_at=%v", d.Status, d.DecidedAt)
	}
	if p.DeclarationID != d.ID {
		t.Fatalf("payment declaration=%s, want %s", p.DeclarationID, d.ID)
	}
	if p.AmountVND != d.TotalAmountVND {
		t.Fatalf("payment amount=%d, want %d", p.AmountVND, d.TotalAmountVND)
	}
	if p.Status != paymenttypes.StatusPending {
		t.Fatalf("payment status=%s, want pending", p.Status)
	}
	if want := PaymentDescription(d); p.Description != want {
		t.Fatalf("description=%q, want %q", p.Description, want)
	}
}

func TestApproveUnsubmittedRejected(t *testing.T) {
	svc := newTestDeclarationService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "DVT001", "", "", roster())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Approve(ctx, d.ID); !types.IsInvalidStateTransition(err) {
		t.Fatalf("approve draft: err=%v, want invalid state transition", err)
	}
}

func TestExists(t *testing.T) {
	svc := newTestDeclarationService(t)
	ctx := context.Background()

	ok, err := svc.Exists(ctx, "018fd3a0-0000-7000-8000-000000000000")
	if err != nil || ok {
		t.Fatalf("unknown id: ok=%v err=%v", ok, err)
	}

	d, err := svc.Create(ctx, "DVT001", "", "", roster())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err = svc.Exists(ctx, d.ID)
	if err != nil || !ok {
		t.Fatalf("known id: ok=%v err=%v", ok, err)
	}
}

func TestPaymentDescription(t *testing.T) {
	d := types.Declaration{ID: "018fd3a0-1234-7abc-8def-00aa11bb22cc", OrgCode: "DVT001", AgentCode: "AG07"}
	if got := PaymentDescription(d); got != "BHYTHGD DVT001 AG07 11BB22CC" {
		t.Fatalf("description=%q", got)
	}
	d.AgentCode = ""
	if got := PaymentDescription(d); got != "BHYTHGD DVT001 11BB22CC" {
		t.Fatalf("description=%q", got)
	}
}
