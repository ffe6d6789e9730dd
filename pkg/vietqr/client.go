package vietqr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// APIProvider generates a QR image through a remote generate endpoint
// (vietqr.io v2 wire shape).
type APIProvider struct {
	Endpoint   string
	ClientID   string
	APIKey     string
	HTTPClient *http.Client
}

type apiGenerateRequest struct {
	AcqID       string `json:"acqId"`
	AccountNo   string `json:"accountNo"`
	AccountName string `json:"accountName"`
	Amount      int64  `json:"amount"`
	AddInfo     string `json:"addInfo"`
	Template    string `json:"template"`
}

type apiGenerateResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		QRCode    string `json:"qrCode"`
		QRDataURL string `json:"qrDataURL"`
	} `json:"data"`
}

func (p APIProvider) Name() string { return "generate-api" }

func (p APIProvider) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(p.Endpoint) == "" {
		return "", fmt.Errorf("generate-api: endpoint not configured")
	}

	payload, err := json.Marshal(apiGenerateRequest{
		AcqID:       req.Account.BankCode,
		AccountNo:   req.Account.AccountNumber,
		AccountName: req.Account.AccountName,
		Amount:      req.AmountVND,
		AddInfo:     req.Description,
		Template:    "compact2",
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.ClientID != "" {
		httpReq.Header.Set("x-client-id", p.ClientID)
	}
	if p.APIKey != "" {
		httpReq.Header.Set("x-api-key", p.APIKey)
	}

	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate-api: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	var out apiGenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.Code != "00" {
		return "", fmt.Errorf("generate-api: code=%s desc=%s", out.Code, out.Desc)
	}
	if out.Data.QRDataURL == "" {
		return "", fmt.Errorf("generate-api: empty qrDataURL")
	}
	return out.Data.QRDataURL, nil
}
