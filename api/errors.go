package api

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/xraph/carbon"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// statusFor maps a ledger error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case carbon.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case carbon.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, carbon.ErrCannotTransferZeroCarbonUnit),
		errors.Is(err, carbon.ErrInsufficientCarbonUnit),
		errors.Is(err, carbon.ErrSupplyOverflow):
		return http.StatusUnprocessableEntity, "unprocessable"
	case errors.Is(err, carbon.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, carbon.ErrInvalidInput),
		errors.Is(err, carbon.ErrInvalidAccount):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError translates err into a JSON error response. Internal errors
// are not echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	desc := err.Error()
	if status == http.StatusInternalServerError {
		desc = ""
	}
	writeStatus(w, status, code, desc)
}

func writeStatus(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, errorResponse{Error: code, Description: desc})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
