package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/integration"
)

const testWebhookSecret = "test-secret"

type fakeEventStore struct {
	events map[string]*domain.WebhookEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[string]*domain.WebhookEvent)}
}

func (s *fakeEventStore) Create(_ context.Context, event *domain.WebhookEvent) error {
	key := string(event.Provider) + ":" + event.IdempotencyKey
	if _, exists := s.events[key]; exists {
		return domain.ErrConflict
	}
	s.events[key] = event
	return nil
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, h http.HandlerFunc, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/upi-callback", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func upiBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(integration.UPIWebhookPayload{
		PaymentID:        "PAY-1",
		Status:           "completed",
		ReferenceID:      "REF-1",
		PaymentTime:      time.Now().UTC(),
		UPITransactionID: "UPI-1",
	})
	require.NoError(t, err)
	return body
}

func TestReceiveUPICallback(t *testing.T) {
	store := newFakeEventStore()
	h := NewWebhookHandler(store, testWebhookSecret)

	body := upiBody(t)
	rec := postWebhook(t, h.ReceiveUPICallback, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received"`)
	require.Len(t, store.events, 1)

	stored := store.events["upi:PAY-1:completed"]
	require.NotNil(t, stored)
	assert.Equal(t, domain.WebhookEventStatusPending, stored.Status)
	assert.JSONEq(t, string(body), string(stored.Payload))
}

func TestReceiveUPICallback_DuplicateAcked(t *testing.T) {
	store := newFakeEventStore()
	h := NewWebhookHandler(store, testWebhookSecret)

	body := upiBody(t)
	first := postWebhook(t, h.ReceiveUPICallback, body, sign(body))
	require.Equal(t, http.StatusOK, first.Code)

	second := postWebhook(t, h.ReceiveUPICallback, body, sign(body))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"already_received"`)
	assert.Len(t, store.events, 1, "replay must not enqueue a second event")
}

func TestReceiveUPICallback_BadSignature(t *testing.T) {
	h := NewWebhookHandler(newFakeEventStore(), testWebhookSecret)

	body := upiBody(t)
	rec := postWebhook(t, h.ReceiveUPICallback, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(t, h.ReceiveUPICallback, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReceiveUPICallback_MalformedBody(t *testing.T) {
	h := NewWebhookHandler(newFakeEventStore(), testWebhookSecret)

	body := []byte(`{not json`)
	rec := postWebhook(t, h.ReceiveUPICallback, body, sign(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiveWiseCallback(t *testing.T) {
	store := newFakeEventStore()
	h := NewWebhookHandler(store, testWebhookSecret)

	body, err := json.Marshal(integration.WiseWebhookPayload{
		EventType:  "transfers#state-change",
		TransferID: "TR-1",
		Status:     "outgoing_payment_sent",
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/wise-callback", strings.NewReader(string(body)))
	req.Header.Set("X-Webhook-Signature", sign(body))
	rec := httptest.NewRecorder()
	h.ReceiveWiseCallback(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.events["wise:TR-1:outgoing_payment_sent"])
}

func TestReceiveWiseCallback_MissingTransferID(t *testing.T) {
	h := NewWebhookHandler(newFakeEventStore(), testWebhookSecret)

	body := []byte(`{"event_type":"transfers#state-change","status":"completed","timestamp":"2026-01-01T00:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/wise-callback", strings.NewReader(string(body)))
	req.Header.Set("X-Webhook-Signature", sign(body))
	rec := httptest.NewRecorder()
	h.ReceiveWiseCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
