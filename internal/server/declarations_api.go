package server

import (
	"net/http"
	"strings"
	"time"

	decltypes "github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
	declservices "github.com/vhgminh/bhxh-portal/modules/declaration/services"
)

type quoteRequest struct {
	ReceiptDate  string                  `json:"receipt_date"`
	Participants []decltypes.Participant `json:"participants"`
}

type quoteResponse struct {
	Participants   []decltypes.Participant `json:"participants"`
	TotalAmountVND int64                   `json:"total_amount_vnd"`
}

// handleDeclarationQuoteAPI prices a roster without persisting anything. The
// intake form calls this on every edit.
func handleDeclarationQuoteAPI(w http.ResponseWriter, r *http.Request, declarations declservices.DeclarationService) {
	var req quoteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if len(req.Participants) == 0 {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "participants required")
		return
	}

	receipt := time.Now().UTC()
	if s := strings.TrimSpace(req.ReceiptDate); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "receipt_date must be YYYY-MM-DD")
			return
		}
		receipt = d
	}

	quoted, total := declarations.Quote(req.Participants, receipt)
	writeJSON(w, http.StatusOK, quoteResponse{Participants: quoted, TotalAmountVND: total})
}

// handleDeclarationsReadAPI serves GET /kekhai/api/declarations.
// ?id= returns one declaration; ?status= lists by lifecycle state.
func handleDeclarationsReadAPI(w http.ResponseWriter, r *http.Request, declarations declservices.DeclarationService) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	switch {
	case id != "":
		d, err := declarations.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case status != "":
		st, ok := decltypes.ParseDeclarationStatus(status)
		if !ok {
			writeInternalAPIError(w, r, http.StatusBadRequest, "invalid_request", "unknown status")
			return
		}
		list, err := declarations.ListByStatus(r.Context(), st)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if list == nil {
			list = []decltypes.Declaration{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
	default:
		writeInternalAPIError(w, r, http.StatusBadRequest, "invalid_request", "id or status required")
	}
}

type createDeclarationRequest struct {
	OrgCode      string                  `json:"org_code"`
	AgentCode    string                  `json:"agent_code"`
	Period       string                  `json:"period"`
	Participants []decltypes.Participant `json:"participants"`
}

func handleDeclarationCreateAPI(w http.ResponseWriter, r *http.Request, declarations declservices.DeclarationService) {
	var req createDeclarationRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	d, err := declarations.Create(r.Context(), req.OrgCode, req.AgentCode, req.Period, req.Participants)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type updateDeclarationRequest struct {
	ID           string                  `json:"id"`
	Participants []decltypes.Participant `json:"participants"`
}

func handleDeclarationUpdateAPI(w http.ResponseWriter, r *http.Request, declarations declservices.DeclarationService) {
	var req updateDeclarationRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}
	d, err := declarations.UpdateDraft(r.Context(), strings.TrimSpace(req.ID), req.Participants)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type declarationActionRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func handleDeclarationSubmitAPI(w http.ResponseWriter, r *http.Request, declarations declservices.DeclarationService) {
	var req declarationActionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}
	d, err := declarations.Submit(r.Context(), strings.TrimSpace(req.ID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type approveDeclarationResponse struct {
	Declaration decltypes.Declaration `json:"declaration"`
	Payment     any                   `json:"payment,omitempty"`
}

// handleDeclarationApproveAPI approves a submitted declaration and issues
// the aggregated payment. A payment issue failure still approves the
// declaration; the response carries the declaration plus an error code so
// the operator can re-issue manually.
func handleDeclarationApproveAPI(w http.ResponseWriter, r *http.Request, declarations declservices.DeclarationService) {
	var req declarationActionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}

	d, p, err := declarations.Approve(r.Context(), strings.TrimSpace(req.ID))
	if err != nil {
		if d.Status == decltypes.DeclarationApproved {
			writeJSON(w, http.StatusOK, map[string]any{
				"declaration":   d,
				"payment_error": "payment_issue_failed",
			})
			return
		}
		writeDomainError(w, r, err)
		return
	}

	resp := approveDeclarationResponse{Declaration: d}
	if p.ID != "" {
		resp.Payment = p
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleDeclarationRejectAPI(w http.ResponseWriter, r *http.Request, declarations declservices.DeclarationService) {
	var req declarationActionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}
	d, err := declarations.Reject(r.Context(), strings.TrimSpace(req.ID), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func handleDeclarationResubmitAPI(w http.ResponseWriter, r *http.Request, declarations declservices.DeclarationService) {
	var req declarationActionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", "id required")
		return
	}
	d, err := declarations.Resubmit(r.Context(), strings.TrimSpace(req.ID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
