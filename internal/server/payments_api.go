package server

import (
	"net/http"
	"strings"

	declservices "github.com/vhgminh/bhxh-portal/modules/declaration/services"
	paytypes "github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
	payservices "github.com/vhgminh/bhxh-portal/modules/payment/services"
)

// handlePaymentsReadAPI serves GET /billing/api/payments.
// ?id= returns a single payment; ?declaration_id= lists a declaration's
// payments, newest state included via lazy expiry.
func handlePaymentsReadAPI(w http.ResponseWriter, r *http.Request, payments payservices.PaymentService) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	declarationID := strings.TrimSpace(r.URL.Query().Get("declaration_id"))

	switch {
	case id != "":
		p, err := payments.CheckStatus(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case declarationID != "":
		list, err := payments.ListForDeclaration(r.Context(), declarationID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if list == nil {
			list = []paytypes.Payment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
	default:
		writeInternalAPIError(w, r, http.StatusBadRequest, "invalid_request", "id or declaration_id required")
	}
}

type createPaymentRequest struct {
	DeclarationID string `json:"declaration_id"`
	AmountVND     int64  `json:"amount_vnd"`
	Description   string `json:"description"`
}

func handlePaymentCreateAPI(w http.ResponseWriter, r *http.Request, payments payservices.PaymentService, declarations declservices.DeclarationService) {
	var req createPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	req.DeclarationID = strings.TrimSpace(req.DeclarationID)
	if req.DeclarationID == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "declaration_id required")
		return
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		d, err := declarations.Get(r.Context(), req.DeclarationID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		description = declservices.PaymentDescription(d)
		if req.AmountVND == 0 {
			req.AmountVND = d.TotalAmountVND
		}
	}

	p, err := payments.Create(r.Context(), req.DeclarationID, req.AmountVND, description)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handlePaymentStatusAPI is the polling endpoint behind the payment page.
func handlePaymentStatusAPI(w http.ResponseWriter, r *http.Request, payments payservices.PaymentService) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeInternalAPIError(w, r, http.StatusBadRequest, "invalid_request", "id required")
		return
	}
	p, err := payments.CheckStatus(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         p.ID,
		"status":     p.Status,
		"expires_at": p.ExpiresAt,
	})
}

type confirmPaymentRequest struct {
	ID            string `json:"id"`
	ProofImageRef string `json:"proof_image_ref"`
	Note          string `json:"note"`
}

func handlePaymentConfirmAPI(w http.ResponseWriter, r *http.Request, payments payservices.PaymentService) {
	var req confirmPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}
	p, err := payments.ConfirmManually(r.Context(), strings.TrimSpace(req.ID), req.ProofImageRef, req.Note)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type cancelPaymentRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func handlePaymentCancelAPI(w http.ResponseWriter, r *http.Request, payments payservices.PaymentService) {
	var req cancelPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}
	p, err := payments.Cancel(r.Context(), strings.TrimSpace(req.ID), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type markPaymentRequest struct {
	ID          string `json:"id"`
	FailureCode string `json:"failure_code"`
}

func handlePaymentMarkProcessingAPI(w http.ResponseWriter, r *http.Request, payments payservices.PaymentService) {
	var req markPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}
	p, err := payments.MarkProcessing(r.Context(), strings.TrimSpace(req.ID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func handlePaymentMarkFailedAPI(w http.ResponseWriter, r *http.Request, payments payservices.PaymentService) {
	var req markPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}
	p, err := payments.MarkFailed(r.Context(), strings.TrimSpace(req.ID), req.FailureCode)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
