package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidSignature  = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrAmountOutOfRange  = &AppError{http.StatusUnprocessableEntity, "AMOUNT_OUT_OF_RANGE", "Amount outside the allowed range"}
	ErrFeeExceedsAmount  = &AppError{http.StatusUnprocessableEntity, "FEE_EXCEEDS_AMOUNT", "Fee exceeds the transaction amount"}
	ErrIneligibleUser    = &AppError{http.StatusUnprocessableEntity, "USER_NOT_ELIGIBLE", "User is not eligible for remittance"}
	ErrRecipientNotFound = &AppError{http.StatusUnprocessableEntity, "RECIPIENT_NOT_FOUND", "Recipient not found"}
	ErrInvalidState      = &AppError{http.StatusUnprocessableEntity, "INVALID_TRANSACTION_STATE", "Transaction is not in the required state for this operation"}
	ErrStateConflict     = &AppError{http.StatusConflict, "STATE_CONFLICT", "Transaction was modified concurrently, please retry"}
	ErrMissingReference  = &AppError{http.StatusUnprocessableEntity, "MISSING_PROVIDER_REFERENCE", "Provider reference missing for this operation"}
	ErrUpstreamFailure   = &AppError{http.StatusBadGateway, "UPSTREAM_FAILURE", "An external provider request failed"}
)
