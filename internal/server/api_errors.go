package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vhgminh/bhxh-portal/internal/routing"
	decltypes "github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
	paytypes "github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
	"github.com/vhgminh/bhxh-portal/pkg/httperr"
)

func writeInternalAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, message)
}

// writeDomainError maps service errors onto the internal API error envelope.
// Unknown errors are logged and reported as opaque 500s.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case decltypes.IsValidation(err):
		writeValidationError(w, r, err)
	case httperr.IsBadRequest(err), paytypes.IsInvalidAmount(err):
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case httperr.IsNotFound(err), paytypes.IsNotFound(err), decltypes.IsNotFound(err):
		writeInternalAPIError(w, r, http.StatusNotFound, "not_found", err.Error())
	case paytypes.IsInvalidStateTransition(err), decltypes.IsInvalidStateTransition(err):
		writeInternalAPIError(w, r, http.StatusConflict, "invalid_state_transition", err.Error())
	case isPgInvalidInput(err):
		writeInternalAPIError(w, r, http.StatusBadRequest, "invalid_request", "invalid identifier")
	case isPgUniqueViolation(err):
		writeInternalAPIError(w, r, http.StatusConflict, "conflict", "duplicate record")
	default:
		slog.Default().Error("internal api error", "path", r.URL.Path, "err", err)
		writeInternalAPIError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

type validationErrorBody struct {
	Code       string                    `json:"code"`
	Message    string                    `json:"message"`
	Violations []decltypes.RuleViolation `json:"violations"`
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	verr, ok := errors.AsType[*decltypes.ValidationError](err)
	if !ok {
		writeInternalAPIError(w, r, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(validationErrorBody{
		Code:       "validation_failed",
		Message:    verr.Error(),
		Violations: verr.Violations,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeInternalAPIError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	return true
}
