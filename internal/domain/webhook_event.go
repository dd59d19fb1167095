package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WebhookEventStatus string

const (
	WebhookEventStatusPending    WebhookEventStatus = "pending"
	WebhookEventStatusDispatched WebhookEventStatus = "dispatched"
	WebhookEventStatusFailed     WebhookEventStatus = "failed"
)

type WebhookProvider string

const (
	WebhookProviderUPI  WebhookProvider = "upi"
	WebhookProviderWise WebhookProvider = "wise"
)

// WebhookEvent is a durably stored inbound provider notification. The HTTP
// handler persists and acks; the reconciler loop applies it later.
// IdempotencyKey is the provider's own event identity, unique per row, so
// webhook retries collapse into the original event.
type WebhookEvent struct {
	ID             uuid.UUID
	Provider       WebhookProvider
	IdempotencyKey string
	Payload        json.RawMessage
	Status         WebhookEventStatus
	Attempts       int
	LastAttempt    *time.Time
	CreatedAt      time.Time
}
