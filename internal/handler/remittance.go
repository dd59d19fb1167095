package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/auth"
	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/logging"
	"github.com/remit-demo/remit-service/internal/service/remittance"
)

const defaultListLimit = 50

type RemittanceHandler struct {
	remit *remittance.Service
}

func NewRemittanceHandler(remit *remittance.Service) *RemittanceHandler {
	return &RemittanceHandler{remit: remit}
}

type createTransactionRequest struct {
	Amount      string `json:"amount"`
	RecipientID string `json:"recipient_id"`
	Notes       string `json:"notes,omitempty"`
}

func (r createTransactionRequest) validate() ([]FieldError, decimal.Decimal) {
	var errs []FieldError
	var amount decimal.Decimal

	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else {
		parsed, err := decimal.NewFromString(r.Amount)
		switch {
		case err != nil:
			errs = append(errs, FieldError{Field: "amount", Message: "must be a decimal number"})
		case !parsed.IsPositive():
			errs = append(errs, FieldError{Field: "amount", Message: "must be greater than zero"})
		default:
			amount = parsed
		}
	}

	if r.RecipientID == "" {
		errs = append(errs, FieldError{Field: "recipient_id", Message: "required"})
	}

	return errs, amount
}

type transactionResponse struct {
	TransactionID     string                    `json:"transaction_id"`
	Status            string                    `json:"status"`
	SourceAmount      string                    `json:"source_amount"`
	SourceCurrency    string                    `json:"source_currency"`
	DestinationAmount *string                   `json:"destination_amount,omitempty"`
	ExchangeRate      *string                   `json:"exchange_rate,omitempty"`
	Fees              string                    `json:"fees"`
	TotalCharge       string                    `json:"total_charge"`
	RecipientID       string                    `json:"recipient_id"`
	Recipient         domain.BankAccountDetails `json:"recipient_account"`
	PaymentDetails    *domain.PaymentDetails    `json:"payment_details,omitempty"`
	ConversionDetails *domain.ConversionDetails `json:"conversion_details,omitempty"`
	TransferDetails   *domain.TransferDetails   `json:"transfer_details,omitempty"`
	FailureReason     *string                   `json:"failure_reason,omitempty"`
	Notes             string                    `json:"notes,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		TransactionID:     t.ID.String(),
		Status:            string(t.Status),
		SourceAmount:      t.SourceAmount.Amount.String(),
		SourceCurrency:    string(t.SourceAmount.Currency),
		Fees:              t.Fees.Amount.String(),
		TotalCharge:       t.TotalCharge().String(),
		RecipientID:       t.RecipientID,
		Recipient:         t.RecipientAccount,
		PaymentDetails:    t.PaymentDetails,
		ConversionDetails: t.ConversionDetails,
		TransferDetails:   t.TransferDetails,
		FailureReason:     t.FailureReason,
		Notes:             t.Notes,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if t.DestinationAmount != nil {
		s := t.DestinationAmount.Amount.String()
		resp.DestinationAmount = &s
	}
	if t.ExchangeRate != nil {
		s := t.ExchangeRate.String()
		resp.ExchangeRate = &s
	}
	return resp
}

// Create handles POST /api/v1/transactions.
func (h *RemittanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	fields, amount := req.validate()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, err := h.remit.Create(r.Context(), remittance.CreateParams{
		UserID:      userID,
		AmountINR:   amount,
		RecipientID: req.RecipientID,
		Notes:       req.Notes,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	logging.FromContext(r.Context()).Info("transaction created via api",
		"transaction_id", result.Transaction.ID, "user_id", userID)

	RespondSuccess(w, http.StatusCreated, map[string]any{
		"transaction":  toTransactionResponse(result.Transaction),
		"payment_link": result.PaymentLink,
	})
}

// Get handles GET /api/v1/transactions/{id}.
func (h *RemittanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	txn, err := h.remit.GetTransaction(r.Context(), userID, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionResponse(txn))
}

// List handles GET /api/v1/transactions.
func (h *RemittanceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	txns, err := h.remit.ListTransactions(r.Context(), userID, defaultListLimit)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	RespondSuccess(w, http.StatusOK, out)
}

// InitiatePayment handles POST /api/v1/transactions/{id}/initiate-payment:
// restart the UPI collection for a Pending transaction and return the
// payment link.
func (h *RemittanceHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	link, err := h.remit.InitiatePayment(r.Context(), userID, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"payment_link": link})
}

// Convert handles POST /api/v1/transactions/{id}/convert: manually trigger
// the conversion stage for a Funded transaction.
func (h *RemittanceHandler) Convert(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	if !h.requireOwnership(w, r, userID, id) {
		return
	}

	if err := h.remit.ConvertFunds(r.Context(), id); err != nil {
		RespondDomainError(w, err)
		return
	}
	h.respondCurrent(w, r, userID, id)
}

// Transfer handles POST /api/v1/transactions/{id}/transfer: manually trigger
// the transfer stage for a Converted transaction.
func (h *RemittanceHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	if !h.requireOwnership(w, r, userID, id) {
		return
	}

	if err := h.remit.TransferFunds(r.Context(), id); err != nil {
		RespondDomainError(w, err)
		return
	}
	h.respondCurrent(w, r, userID, id)
}

// CheckPayment handles POST /api/v1/transactions/{id}/check-payment: poll
// the UPI gateway, apply the outcome, and report the transaction's status.
func (h *RemittanceHandler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	status, err := h.remit.CheckPaymentStatus(r.Context(), userID, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": string(status)})
}

// CheckTransfer handles POST /api/v1/transactions/{id}/check-transfer: poll
// Wise, apply the outcome, and report the transaction's status.
func (h *RemittanceHandler) CheckTransfer(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	status, err := h.remit.CheckTransferStatus(r.Context(), userID, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": string(status)})
}

// Recipients handles GET /api/v1/recipients: the caller's saved
// beneficiaries.
func (h *RemittanceHandler) Recipients(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	recipients, err := h.remit.ListRecipients(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, recipients)
}

// Quote handles GET /api/v1/quotes?amount=50000.
func (h *RemittanceHandler) Quote(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("amount")
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be a positive decimal number"}})
		return
	}

	quote, err := h.remit.GetQuote(r.Context(), amount)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{
		"amount":        quote.AmountINR.String(),
		"fee":           quote.Fee.String(),
		"total_charge":  quote.TotalCharge.String(),
		"exchange_rate": quote.Rate.String(),
		"rate_provider": quote.RateProvider,
		"estimated_cad": quote.EstimatedCAD.String(),
	})
}

func (h *RemittanceHandler) userAndID(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return "", uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return "", uuid.Nil, false
	}
	return userID, id, true
}

func (h *RemittanceHandler) requireOwnership(w http.ResponseWriter, r *http.Request, userID string, id uuid.UUID) bool {
	if _, err := h.remit.GetTransaction(r.Context(), userID, id); err != nil {
		RespondDomainError(w, err)
		return false
	}
	return true
}

func (h *RemittanceHandler) respondCurrent(w http.ResponseWriter, r *http.Request, userID string, id uuid.UUID) {
	txn, err := h.remit.GetTransaction(r.Context(), userID, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionResponse(txn))
}
