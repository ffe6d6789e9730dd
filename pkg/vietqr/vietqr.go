// Package vietqr builds scannable bank-transfer QR images for payment
// records. Generation is best-effort: providers are tried in order and the
// first success wins, so a broken remote service degrades to the next
// strategy instead of failing payment creation.
package vietqr

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

type BankAccount struct {
	BankCode      string
	AccountNumber string
	AccountName   string
}

type Request struct {
	Account     BankAccount
	AmountVND   int64
	Description string
}

// Provider turns a transfer request into an image URL (or data URL).
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// ExhaustedError reports that every provider in the chain failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("vietqr: all %d providers failed, last: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, logger: logger}
}

// Generate tries each provider in order. Individual failures are logged and
// swallowed; the caller only sees an error once the whole chain is exhausted.
func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	var last error
	for _, p := range c.providers {
		u, err := p.Generate(ctx, req)
		if err == nil {
			return u, nil
		}
		last = err
		c.logger.Warn("qr provider failed", "provider", p.Name(), "err", err)
	}
	if last == nil {
		last = fmt.Errorf("no providers configured")
	}
	return "", &ExhaustedError{Attempts: len(c.providers), Last: last}
}

// QuickLinkProvider builds a static quick-link image URL. It performs no
// network I/O, which makes it the natural tail of a chain.
type QuickLinkProvider struct {
	// BaseURL defaults to the public quick-link host.
	BaseURL string
	// Template selects the rendered frame, e.g. "compact2".
	Template string
}

const defaultQuickLinkBase = "https://img.vietqr.io/image"

func (p QuickLinkProvider) Name() string { return "quicklink" }

func (p QuickLinkProvider) Generate(_ context.Context, req Request) (string, error) {
	bank := strings.TrimSpace(req.Account.BankCode)
	account := strings.TrimSpace(req.Account.AccountNumber)
	if bank == "" || account == "" {
		return "", fmt.Errorf("quicklink: bank code and account number are required")
	}

	base := p.BaseURL
	if base == "" {
		base = defaultQuickLinkBase
	}
	template := p.Template
	if template == "" {
		template = "compact2"
	}

	q := url.Values{}
	if req.AmountVND > 0 {
		q.Set("amount", strconv.FormatInt(req.AmountVND, 10))
	}
	if req.Description != "" {
		q.Set("addInfo", req.Description)
	}
	if req.Account.AccountName != "" {
		q.Set("accountName", req.Account.AccountName)
	}

	u := fmt.Sprintf("%s/%s-%s-%s.png", strings.TrimRight(base, "/"), bank, account, template)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u, nil
}
