package vietqr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

var testAccount = BankAccount{
	BankCode:      "970436",
	AccountNumber: "0123456789",
	AccountName:   "DAI LY THU BHXH",
}

func TestQuickLinkProvider(t *testing.T) {
	got, err := QuickLinkProvider{}.Generate(context.Background(), Request{
		Account:     testAccount,
		AmountVND:   884_520,
		Description: "BHYTHGD AG001 KK0042",
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/970436-0123456789-compact2.png") {
		t.Fatalf("path=%s", u.Path)
	}
	q := u.Query()
	if q.Get("amount") != "884520" {
		t.Fatalf("amount=%q", q.Get("amount"))
	}
	if q.Get("addInfo") != "BHYTHGD AG001 KK0042" {
		t.Fatalf("addInfo=%q", q.Get("addInfo"))
	}
}

func TestQuickLinkProviderRequiresAccount(t *testing.T) {
	if _, err := (QuickLinkProvider{}).Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAPIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method=%s", r.Method)
		}
		if r.Header.Get("x-client-id") != "cid" {
			t.Fatalf("client id header missing")
		}
		fmt.Fprint(w, `{"code":"00","desc":"ok","data":{"qrDataURL":"data:image/png;base64,AAAA"}}`)
	}))
	defer srv.Close()

	p := APIProvider{Endpoint: srv.URL, ClientID: "cid", APIKey: "key", HTTPClient: srv.Client()}
	got, err := p.Generate(context.Background(), Request{Account: testAccount, AmountVND: 100})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got != "data:image/png;base64,AAAA" {
		t.Fatalf("got=%q", got)
	}
}

func TestAPIProviderRejectsErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"42","desc":"invalid bank"}`)
	}))
	defer srv.Close()

	p := APIProvider{Endpoint: srv.URL, HTTPClient: srv.Client()}
	if _, err := p.Generate(context.Background(), Request{Account: testAccount}); err == nil {
		t.Fatal("expected error")
	}
}

type stubProvider struct {
	name string
	url  string
	err  error
}

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) Generate(context.Context, Request) (string, error) {
	return s.url, s.err
}

func TestChainFirstSuccessShortCircuits(t *testing.T) {
	chain := NewChain(nil,
		stubProvider{name: "a", err: errors.New("down")},
		stubProvider{name: "b", url: "https://img.example/qr.png"},
		stubProvider{name: "c", err: errors.New("must not be reached")},
	)

	got, err := chain.Generate(context.Background(), Request{Account: testAccount})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got != "https://img.example/qr.png" {
		t.Fatalf("got=%q", got)
	}
}

func TestChainExhausted(t *testing.T) {
	chain := NewChain(nil,
		stubProvider{name: "a", err: errors.New("down")},
		stubProvider{name: "b", err: errors.New("also down")},
	)

	_, err := chain.Generate(context.Background(), Request{Account: testAccount})
	ex, ok := errors.AsType[*ExhaustedError](err)
	if !ok {
		t.Fatalf("err=%v", err)
	}
	if ex.Attempts != 2 {
		t.Fatalf("attempts=%d", ex.Attempts)
	}
}

func TestChainEmpty(t *testing.T) {
	if _, err := NewChain(nil).Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
}
