package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/integration"
	"github.com/remit-demo/remit-service/internal/logging"
)

type webhookEventStore interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookHandler receives provider callbacks. It verifies the signature,
// persists the event durably, and acks immediately; the reconciler applies
// the event to its transaction out of band.
type WebhookHandler struct {
	events webhookEventStore
	secret string
}

func NewWebhookHandler(events webhookEventStore, secret string) *WebhookHandler {
	return &WebhookHandler{events: events, secret: secret}
}

// ReceiveUPICallback handles POST /api/v1/webhooks/upi-callback.
func (h *WebhookHandler) ReceiveUPICallback(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, domain.WebhookProviderUPI)
}

// ReceiveWiseCallback handles POST /api/v1/webhooks/wise-callback.
func (h *WebhookHandler) ReceiveWiseCallback(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, domain.WebhookProviderWise)
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request, provider domain.WebhookProvider) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get("X-Webhook-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("webhook signature verification failed", "provider", provider)
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	key, fields := idempotencyKeyFor(provider, body)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		Provider:       provider,
		IdempotencyKey: key,
		Payload:        body,
		Status:         domain.WebhookEventStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.events.Create(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Info("duplicate webhook received", "provider", provider, "idempotency_key", key)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
			return
		}
		log.Error("failed to store webhook event", "provider", provider, "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("webhook event stored",
		"webhook_event_id", event.ID,
		"provider", provider,
		"idempotency_key", key,
	)

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received"})
}

// idempotencyKeyFor derives the provider's event identity from the payload.
// UPI identifies a settlement by payment id, Wise by transfer id plus the
// reported status, so distinct state changes for one transfer are distinct
// events while redeliveries collapse.
func idempotencyKeyFor(provider domain.WebhookProvider, body []byte) (string, []FieldError) {
	switch provider {
	case domain.WebhookProviderUPI:
		var p integration.UPIWebhookPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return "", []FieldError{{Field: "body", Message: "must be valid JSON"}}
		}
		if err := integration.ValidateUPIWebhook(&p); err != nil {
			return "", []FieldError{{Field: "body", Message: err.Error()}}
		}
		return p.PaymentID + ":" + p.Status, nil
	case domain.WebhookProviderWise:
		var p integration.WiseWebhookPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return "", []FieldError{{Field: "body", Message: "must be valid JSON"}}
		}
		if err := integration.ValidateWiseWebhook(&p); err != nil {
			return "", []FieldError{{Field: "body", Message: err.Error()}}
		}
		return p.TransferID + ":" + p.Status, nil
	}
	return "", []FieldError{{Field: "provider", Message: "unsupported"}}
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
