package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/remit-demo/remit-service/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var (
		appErr  *AppError
		details any
	)

	var ise *domain.InvalidStateError
	var ese *domain.ExternalServiceError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrAmountOutOfRange):
		appErr = ErrAmountOutOfRange
	case errors.Is(err, domain.ErrFeeExceedsAmount):
		appErr = ErrFeeExceedsAmount
	case errors.Is(err, domain.ErrIneligibleUser):
		appErr = ErrIneligibleUser
	case errors.Is(err, domain.ErrRecipientNotFound):
		appErr = ErrRecipientNotFound
	case errors.Is(err, domain.ErrConflict):
		appErr = ErrStateConflict
	case errors.Is(err, domain.ErrMissingReference):
		appErr = ErrMissingReference
	case errors.Is(err, domain.ErrValidation):
		appErr = ErrValidationFailed
	case errors.As(err, &ise):
		appErr = ErrInvalidState
		details = map[string]string{
			"current_status":  string(ise.Current),
			"expected_status": string(ise.Expected),
		}
	case errors.As(err, &ese):
		appErr = ErrUpstreamFailure
		details = map[string]string{"provider": ese.Provider}
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, details)
}
