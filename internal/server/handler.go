package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vhgminh/bhxh-portal/internal/config"
	"github.com/vhgminh/bhxh-portal/internal/routing"
	declports "github.com/vhgminh/bhxh-portal/modules/declaration/domain/ports"
	decltypes "github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
	declpersistence "github.com/vhgminh/bhxh-portal/modules/declaration/infrastructure/persistence"
	declservices "github.com/vhgminh/bhxh-portal/modules/declaration/services"
	payports "github.com/vhgminh/bhxh-portal/modules/payment/domain/ports"
	paycache "github.com/vhgminh/bhxh-portal/modules/payment/infrastructure/cache"
	paymessaging "github.com/vhgminh/bhxh-portal/modules/payment/infrastructure/messaging"
	paypersistence "github.com/vhgminh/bhxh-portal/modules/payment/infrastructure/persistence"
	payservices "github.com/vhgminh/bhxh-portal/modules/payment/services"
	"github.com/vhgminh/bhxh-portal/pkg/bhyt"
	"github.com/vhgminh/bhxh-portal/pkg/vietqr"
)

type HandlerOptions struct {
	Config config.Config
	Logger *slog.Logger

	// Stores default to Postgres when nil; tests inject memory stores.
	PaymentStore     payports.PaymentStore
	DeclarationStore declports.DeclarationStore
	StatusCache      payports.StatusCache
	Notifier         payports.Notifier
	QR               payservices.QRGenerator
}

func NewHandler(cfg config.Config) (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{Config: cfg})
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allowlistPath := cfg.Routing.AllowlistPath
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	} else if _, err := os.Stat(allowlistPath); err != nil {
		p, werr := defaultAllowlistPath()
		if werr != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	entrypoint := cfg.Routing.Entrypoint
	if entrypoint == "" {
		entrypoint = "server"
	}
	classifier, err := routing.NewClassifier(a, entrypoint)
	if err != nil {
		return nil, err
	}

	paymentStore := opts.PaymentStore
	declarationStore := opts.DeclarationStore
	if paymentStore == nil || declarationStore == nil {
		pool, err := pgxpool.New(context.Background(), cfg.Database.PostgresDSN())
		if err != nil {
			return nil, err
		}
		if paymentStore == nil {
			paymentStore = paypersistence.NewPaymentPGStore(pool)
		}
		if declarationStore == nil {
			declarationStore = declpersistence.NewDeclarationPGStore(pool)
		}
	}

	statusCache := opts.StatusCache
	if statusCache == nil && cfg.Redis.Addr != "" {
		statusCache = paycache.NewRedisStatusCache(cfg.Redis.Addr)
	}

	notifier := opts.Notifier
	if notifier == nil {
		if len(cfg.Kafka.Brokers) > 0 {
			n, err := paymessaging.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return nil, err
			}
			notifier = n
		} else {
			notifier = paymessaging.LogNotifier{Logger: logger}
		}
	}

	qr := opts.QR
	if qr == nil {
		qr = buildQRChain(cfg, logger)
	}

	payments := payservices.NewPaymentService(payservices.PaymentServiceConfig{
		Store:    paymentStore,
		Cache:    statusCache,
		Notifier: notifier,
		QR:       qr,
		Account: vietqr.BankAccount{
			BankCode:      cfg.Payment.BankCode,
			AccountNumber: cfg.Payment.AccountNumber,
			AccountName:   cfg.Payment.AccountName,
		},
		TTL:      cfg.Payment.TTL,
		CacheTTL: cfg.Payment.CacheTTL,
		DeclarationExists: func(ctx context.Context, declarationID string) (bool, error) {
			_, err := declarationStore.Get(ctx, declarationID)
			if err != nil {
				if decltypes.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			return true, nil
		},
		Logger: logger,
	})

	declarations := declservices.NewDeclarationService(declservices.DeclarationServiceConfig{
		Store:    declarationStore,
		Payments: &payments,
		Calc: bhyt.Config{
			BaseSalaryVND:   cfg.Insurance.BaseSalaryVND,
			RateBasisPoints: cfg.Insurance.RateBasisPoints,
		},
		Logger: logger,
	})

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/kekhai/api/declarations/quote", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeclarationQuoteAPI(w, r, declarations)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/kekhai/api/declarations", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeclarationsReadAPI(w, r, declarations)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/kekhai/api/declarations", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeclarationCreateAPI(w, r, declarations)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/kekhai/api/declarations:update", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeclarationUpdateAPI(w, r, declarations)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/kekhai/api/declarations:submit", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeclarationSubmitAPI(w, r, declarations)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/kekhai/api/declarations:approve", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeclarationApproveAPI(w, r, declarations)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/kekhai/api/declarations:reject", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeclarationRejectAPI(w, r, declarations)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/kekhai/api/declarations:resubmit", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeclarationResubmitAPI(w, r, declarations)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/billing/api/payments", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePaymentsReadAPI(w, r, payments)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/billing/api/payments", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePaymentCreateAPI(w, r, payments, declarations)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/billing/api/payments/status", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePaymentStatusAPI(w, r, payments)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/billing/api/payments:confirm", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePaymentConfirmAPI(w, r, payments)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/billing/api/payments:cancel", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePaymentCancelAPI(w, r, payments)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/billing/api/payments:mark-processing", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePaymentMarkProcessingAPI(w, r, payments)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/billing/api/payments:mark-failed", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePaymentMarkFailedAPI(w, r, payments)
	}))

	return router, nil
}

func buildQRChain(cfg config.Config, logger *slog.Logger) payservices.QRGenerator {
	var providers []vietqr.Provider
	if cfg.VietQR.APIClientID != "" {
		providers = append(providers, vietqr.APIProvider{
			Endpoint: cfg.VietQR.APIURL,
			ClientID: cfg.VietQR.APIClientID,
			APIKey:   cfg.VietQR.APIKey,
		})
	}
	providers = append(providers, vietqr.QuickLinkProvider{Template: cfg.Payment.QRTemplate})
	return vietqr.NewChain(logger, providers...)
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
