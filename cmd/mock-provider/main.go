// mock-provider emulates the four external services the API depends on:
// the UPI gateway, AD Bank, Wise, and the user service. Payment and
// transfer creation fire signed webhooks back at the API after a short
// delay, so the full pipeline can run locally end to end.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/logging"
)

const inrToCAD = "0.016"

type mockProvider struct {
	secret string

	mu        sync.Mutex
	payments  map[string]paymentState
	transfers map[string]transferState
}

type paymentState struct {
	ReferenceID string
	CallbackURL string
	Status      string
}

type transferState struct {
	CallbackURL string
	Status      string
}

func main() {
	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	p := &mockProvider{
		secret:    os.Getenv("WEBHOOK_SECRET"),
		payments:  make(map[string]paymentState),
		transfers: make(map[string]transferState),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /upi/payments", p.createPayment)
	mux.HandleFunc("GET /upi/payments/{id}", p.getPayment)

	mux.HandleFunc("POST /adbank/rates", p.getRate)
	mux.HandleFunc("POST /adbank/convert", p.convert)

	mux.HandleFunc("POST /wise/accounts", p.createAccount)
	mux.HandleFunc("POST /wise/transfers", p.createTransfer)
	mux.HandleFunc("GET /wise/transfers/{id}", p.getTransfer)

	mux.HandleFunc("GET /users/users/{id}", p.getUser)
	mux.HandleFunc("GET /users/users/{id}/recipients/{rid}", p.getRecipient)
	mux.HandleFunc("GET /users/users/{id}/recipients", p.listRecipients)

	slog.Info("mock provider started", "addr", ":8081")
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (p *mockProvider) createPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      string `json:"amount"`
		ReferenceID string `json:"reference_id"`
		CallbackURL string `json:"callback_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	paymentID := "PAY-" + uuid.NewString()[:8]
	p.mu.Lock()
	p.payments[paymentID] = paymentState{
		ReferenceID: req.ReferenceID,
		CallbackURL: req.CallbackURL,
		Status:      "pending",
	}
	p.mu.Unlock()

	// Settle the payment shortly after, as a real gateway would once the
	// payer approves.
	go p.settlePayment(paymentID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"payment_id":   paymentID,
		"payment_link": "upi://pay?tr=" + req.ReferenceID + "&am=" + req.Amount,
		"status":       "pending",
		"expiry_time":  time.Now().UTC().Add(15 * time.Minute),
	})
}

func (p *mockProvider) settlePayment(paymentID string) {
	time.Sleep(2 * time.Second)

	p.mu.Lock()
	state, ok := p.payments[paymentID]
	if !ok {
		p.mu.Unlock()
		return
	}
	state.Status = "completed"
	p.payments[paymentID] = state
	p.mu.Unlock()

	payload := map[string]any{
		"payment_id":         paymentID,
		"status":             "completed",
		"reference_id":       state.ReferenceID,
		"payment_time":       time.Now().UTC(),
		"upi_transaction_id": "UPI-" + uuid.NewString()[:8],
	}
	p.fireWebhook(state.CallbackURL, payload)
}

func (p *mockProvider) getPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")
	p.mu.Lock()
	state, ok := p.payments[paymentID]
	p.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_id":   paymentID,
		"status":       state.Status,
		"amount":       "0",
		"currency":     "INR",
		"reference_id": state.ReferenceID,
	})
}

func (p *mockProvider) getRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceCurrency      string `json:"source_currency"`
		DestinationCurrency string `json:"destination_currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source_currency":      req.SourceCurrency,
		"destination_currency": req.DestinationCurrency,
		"rate":                 inrToCAD,
		"timestamp":            time.Now().UTC(),
	})
}

func (p *mockProvider) convert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceCurrency      string `json:"source_currency"`
		DestinationCurrency string `json:"destination_currency"`
		SourceAmount        string `json:"source_amount"`
		ReferenceID         string `json:"reference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	amount, err := decimal.NewFromString(req.SourceAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source_amount"})
		return
	}
	rate, _ := decimal.NewFromString(inrToCAD)

	writeJSON(w, http.StatusOK, map[string]any{
		"conversion_id":        "CONV-" + uuid.NewString()[:8],
		"source_currency":      req.SourceCurrency,
		"destination_currency": req.DestinationCurrency,
		"source_amount":        req.SourceAmount,
		"destination_amount":   amount.Mul(rate).String(),
		"rate":                 inrToCAD,
		"fees":                 "0",
		"status":               "completed",
		"timestamp":            time.Now().UTC(),
	})
}

func (p *mockProvider) createAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":     "ACC-" + uuid.NewString()[:8],
		"status": "active",
	})
}

func (p *mockProvider) createTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceAmount string `json:"source_amount"`
		CallbackURL  string `json:"callback_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	transferID := "TR-" + uuid.NewString()[:8]
	p.mu.Lock()
	p.transfers[transferID] = transferState{CallbackURL: req.CallbackURL, Status: "processing"}
	p.mu.Unlock()

	go p.deliverTransfer(transferID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":              transferID,
		"source_currency": "CAD",
		"source_amount":   req.SourceAmount,
		"target_currency": "CAD",
		"target_amount":   req.SourceAmount,
		"status":          "processing",
		"created_at":      time.Now().UTC(),
		"tracking_url":    "https://wise.example/track/" + transferID,
	})
}

func (p *mockProvider) deliverTransfer(transferID string) {
	time.Sleep(3 * time.Second)

	p.mu.Lock()
	state, ok := p.transfers[transferID]
	if !ok {
		p.mu.Unlock()
		return
	}
	state.Status = "outgoing_payment_sent"
	p.transfers[transferID] = state
	p.mu.Unlock()

	callbackURL := state.CallbackURL
	if callbackURL == "" {
		callbackURL = os.Getenv("WISE_CALLBACK_URL")
	}
	if callbackURL == "" {
		callbackURL = "http://app:8080/api/v1/webhooks/wise-callback"
	}

	payload := map[string]any{
		"event_type":  "transfers#state-change",
		"transfer_id": transferID,
		"status":      "outgoing_payment_sent",
		"timestamp":   time.Now().UTC(),
	}
	p.fireWebhook(callbackURL, payload)
}

func (p *mockProvider) getTransfer(w http.ResponseWriter, r *http.Request) {
	transferID := r.PathValue("id")
	p.mu.Lock()
	state, ok := p.transfers[transferID]
	p.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transfer not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         transferID,
		"status":     state.Status,
		"created_at": time.Now().UTC(),
		"updated_at": time.Now().UTC(),
	})
}

func (p *mockProvider) getUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      r.PathValue("id"),
		"name":         "Arjun Mehta",
		"email":        "arjun@example.com",
		"phone":        "+911234567890",
		"kyc_status":   "verified",
		"kyc_verified": true,
	})
}

func (p *mockProvider) getRecipient(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, recipientJSON(r.PathValue("rid")))
}

func (p *mockProvider) listRecipients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]any{recipientJSON("recipient-1")})
}

func recipientJSON(id string) map[string]any {
	return map[string]any{
		"recipient_id":        id,
		"name":                "Priya Sharma",
		"account_holder_name": "Priya Sharma",
		"account_number":      "1234567890",
		"bank_name":           "Royal Bank of Canada",
		"ifsc_or_swift_code":  "ROYCCAT2",
		"relationship":        "family",
	}
}

func (p *mockProvider) fireWebhook(url string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal webhook payload", "error", err)
		return
	}

	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		slog.Error("failed to deliver webhook", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()

	slog.Info("webhook delivered", "url", url, "status", resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		slog.Warn("webhook not acknowledged", "url", url, "status", resp.StatusCode)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
