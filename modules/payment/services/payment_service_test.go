package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
	"github.com/vhgminh/bhxh-portal/modules/payment/infrastructure/memory"
	"github.com/vhgminh/bhxh-portal/pkg/httperr"
	"github.com/vhgminh/bhxh-portal/pkg/vietqr"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) NowUTC() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []types.StatusChangedEvent
}

func (n *recordingNotifier) PaymentStatusChanged(_ context.Context, evt types.StatusChangedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func (n *recordingNotifier) Events() []types.StatusChangedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.StatusChangedEvent(nil), n.events...)
}

type stubQR struct {
	url string
	err error
}

func (q stubQR) Generate(context.Context, vietqr.Request) (string, error) {
	return q.url, q.err
}

func newTestService(t *testing.T, mutate func(*PaymentServiceConfig)) (PaymentService, *fixedClock, *memory.PaymentMemoryStore, *recordingNotifier) {
	t.Helper()

	clock := &fixedClock{now: time.Date(2025, time.August, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewPaymentMemoryStore()
	notifier := &recordingNotifier{}

	cfg := PaymentServiceConfig{
		Store:    store,
		Notifier: notifier,
		QR:       stubQR{url: "https://img.example/qr.png"},
		NowUTC:   clock.NowUTC,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewPaymentService(cfg), clock, store, notifier
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)

	for _, amount := range []int64{0, -1, -884_520} {
		_, err := svc.Create(context.Background(), "d-1", amount, "ref")
		if !types.IsInvalidAmount(err) {
			t.Fatalf("amount=%d err=%v", amount, err)
		}
	}
}

func TestCreatePendingWithThirtyMinuteExpiry(t *testing.T) {
	svc, clock, _, _ := newTestService(t, nil)

	p, err := svc.Create(context.Background(), "d-1", 884_520, "BHYTHGD AG001 KK0042")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.Status != types.StatusPending {
		t.Fatalf("status=%s", p.Status)
	}
	if !p.ExpiresAt.Equal(clock.NowUTC().Add(30 * time.Minute)) {
		t.Fatalf("expires=%v", p.ExpiresAt)
	}
	if p.QRImageURL != "https://img.example/qr.png" {
		t.Fatalf("qr=%q", p.QRImageURL)
	}
	if p.ID == "" {
		t.Fatal("missing id")
	}
}

func TestCreateSucceedsWhenQRChainExhausted(t *testing.T) {
	svc, _, _, _ := newTestService(t, func(cfg *PaymentServiceConfig) {
		cfg.QR = stubQR{err: errors.New("all providers down")}
	})

	p, err := svc.Create(context.Background(), "d-1", 100_000, "ref")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.QRImageURL != "" {
		t.Fatalf("qr=%q", p.QRImageURL)
	}
	if p.Status != types.StatusPending {
		t.Fatalf("status=%s", p.Status)
	}
}

func TestCreateChecksDeclaration(t *testing.T) {
	svc, _, _, _ := newTestService(t, func(cfg *PaymentServiceConfig) {
		cfg.DeclarationExists = func(_ context.Context, id string) (bool, error) {
			return id == "d-known", nil
		}
	})

	if _, err := svc.Create(context.Background(), "d-known", 100, "ref"); err != nil {
		t.Fatalf("err=%v", err)
	}
	_, err := svc.Create(context.Background(), "d-missing", 100, "ref")
	if !httperr.IsNotFound(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestConfirmManually(t *testing.T) {
	svc, clock, _, notifier := newTestService(t, nil)

	p, err := svc.Create(context.Background(), "d-1", 100_000, "ref")
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	clock.Advance(5 * time.Minute)
	got, err := svc.ConfirmManually(context.Background(), p.ID, "uploads/proof.jpg", "paid at counter")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got.Status != types.StatusCompleted {
		t.Fatalf("status=%s", got.Status)
	}
	if !got.PaidAt.Equal(clock.NowUTC()) {
		t.Fatalf("paidAt=%v", got.PaidAt)
	}
	if got.ProofImageRef != "uploads/proof.jpg" || got.Note != "paid at counter" {
		t.Fatalf("stamp=%+v", got)
	}

	events := notifier.Events()
	if len(events) != 1 {
		t.Fatalf("events=%d", len(events))
	}
	evt := events[0]
	if evt.OldStatus != types.StatusPending || evt.NewStatus != types.StatusCompleted || evt.PaymentID != p.ID || evt.DeclarationID != "d-1" {
		t.Fatalf("evt=%+v", evt)
	}
}

func TestConfirmManuallyIdempotent(t *testing.T) {
	svc, clock, _, notifier := newTestService(t, nil)

	p, _ := svc.Create(context.Background(), "d-1", 100_000, "ref")
	first, err := svc.ConfirmManually(context.Background(), p.ID, "", "")
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	clock.Advance(time.Hour)
	second, err := svc.ConfirmManually(context.Background(), p.ID, "", "")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !second.PaidAt.Equal(first.PaidAt) {
		t.Fatalf("paidAt restamped: %v vs %v", second.PaidAt, first.PaidAt)
	}
	if len(notifier.Events()) != 1 {
		t.Fatalf("events=%d", len(notifier.Events()))
	}
}

func TestConfirmManuallyConcurrent(t *testing.T) {
	svc, _, _, notifier := newTestService(t, nil)

	p, _ := svc.Create(context.Background(), "d-1", 100_000, "ref")

	const n = 8
	var wg sync.WaitGroup
	results := make([]types.Payment, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.ConfirmManually(context.Background(), p.ID, "", "")
		}()
	}
	wg.Wait()

	var paidAt time.Time
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("confirm %d: %v", i, errs[i])
		}
		if results[i].Status != types.StatusCompleted {
			t.Fatalf("confirm %d status=%s", i, results[i].Status)
		}
		if paidAt.IsZero() {
			paidAt = results[i].PaidAt
		} else if !results[i].PaidAt.Equal(paidAt) {
			t.Fatalf("paidAt mismatch: %v vs %v", results[i].PaidAt, paidAt)
		}
	}
	// Exactly one mutation won; the rest observed the completed record.
	if len(notifier.Events()) != 1 {
		t.Fatalf("events=%d", len(notifier.Events()))
	}
}

func TestConfirmExpiredPaymentRejected(t *testing.T) {
	svc, clock, _, _ := newTestService(t, nil)

	p, _ := svc.Create(context.Background(), "d-1", 100_000, "ref")
	clock.Advance(31 * time.Minute)

	_, err := svc.ConfirmManually(context.Background(), p.ID, "", "")
	tr, ok := errors.AsType[*types.InvalidStateTransitionError](err)
	if !ok {
		t.Fatalf("err=%v", err)
	}
	if tr.From != types.StatusExpired {
		t.Fatalf("from=%s", tr.From)
	}
}

func TestCheckStatusLazyExpiry(t *testing.T) {
	svc, clock, store, _ := newTestService(t, nil)

	p, _ := svc.Create(context.Background(), "d-1", 100_000, "ref")
	clock.Advance(31 * time.Minute)

	got, err := svc.CheckStatus(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got.Status != types.StatusExpired {
		t.Fatalf("status=%s", got.Status)
	}

	// The store was never written: the record is still pending on disk.
	raw, err := store.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if raw.Status != types.StatusPending {
		t.Fatalf("stored status=%s", raw.Status)
	}
}

func TestCheckStatusNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)

	_, err := svc.CheckStatus(context.Background(), "0198b3e2-0000-7000-8000-000000000000")
	if !types.IsNotFound(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestCancel(t *testing.T) {
	svc, _, _, notifier := newTestService(t, nil)

	p, _ := svc.Create(context.Background(), "d-1", 100_000, "ref")
	got, err := svc.Cancel(context.Background(), p.ID, "declaration withdrawn")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got.Status != types.StatusCancelled || got.CancelReason != "declaration withdrawn" {
		t.Fatalf("got=%+v", got)
	}
	if len(notifier.Events()) != 1 {
		t.Fatalf("events=%d", len(notifier.Events()))
	}

	// Second cancel is a no-op.
	again, err := svc.Cancel(context.Background(), p.ID, "other reason")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if again.CancelReason != "declaration withdrawn" {
		t.Fatalf("reason=%q", again.CancelReason)
	}
}

func TestCancelCompletedRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)

	p, _ := svc.Create(context.Background(), "d-1", 100_000, "ref")
	if _, err := svc.ConfirmManually(context.Background(), p.ID, "", ""); err != nil {
		t.Fatalf("err=%v", err)
	}

	_, err := svc.Cancel(context.Background(), p.ID, "too late")
	if !types.IsInvalidStateTransition(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestReconciliationPath(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)

	p, _ := svc.Create(context.Background(), "d-1", 100_000, "ref")

	proc, err := svc.MarkProcessing(context.Background(), p.ID)
	if err != nil || proc.Status != types.StatusProcessing {
		t.Fatalf("proc=%+v err=%v", proc, err)
	}

	// Cancel is forbidden once reconciliation owns the record.
	if _, err := svc.Cancel(context.Background(), p.ID, "nope"); !types.IsInvalidStateTransition(err) {
		t.Fatalf("err=%v", err)
	}

	failed, err := svc.MarkFailed(context.Background(), p.ID, "NO_MATCHING_STATEMENT")
	if err != nil || failed.Status != types.StatusFailed || failed.FailureCode != "NO_MATCHING_STATEMENT" {
		t.Fatalf("failed=%+v err=%v", failed, err)
	}
}

func TestConfirmWhileProcessing(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)

	p, _ := svc.Create(context.Background(), "d-1", 100_000, "ref")
	if _, err := svc.MarkProcessing(context.Background(), p.ID); err != nil {
		t.Fatalf("err=%v", err)
	}

	got, err := svc.ConfirmManually(context.Background(), p.ID, "", "")
	if err != nil || got.Status != types.StatusCompleted {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}

func TestListForDeclarationAppliesExpiryView(t *testing.T) {
	svc, clock, _, _ := newTestService(t, nil)

	first, _ := svc.Create(context.Background(), "d-1", 100_000, "ref-1")
	clock.Advance(31 * time.Minute)
	second, _ := svc.Create(context.Background(), "d-1", 100_000, "ref-2")
	_, _ = svc.Create(context.Background(), "d-2", 100_000, "other")

	got, err := svc.ListForDeclaration(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if got[0].ID != first.ID || got[0].Status != types.StatusExpired {
		t.Fatalf("first=%+v", got[0])
	}
	if got[1].ID != second.ID || got[1].Status != types.StatusPending {
		t.Fatalf("second=%+v", got[1])
	}
}
