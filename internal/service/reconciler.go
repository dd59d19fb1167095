package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/integration"
)

const maxDispatchAttempts = 5

type webhookInbox interface {
	GetPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus) error
}

type reconcilerLedger interface {
	GetByPaymentReference(ctx context.Context, referenceID string) (*domain.Transaction, error)
	GetByTransferID(ctx context.Context, transferID string) (*domain.Transaction, error)
}

type stageRunner interface {
	ProcessPayment(ctx context.Context, id uuid.UUID, details *domain.PaymentDetails) error
	CompleteTransaction(ctx context.Context, id uuid.UUID) error
	FailTransaction(ctx context.Context, id uuid.UUID, reason string) error
}

// WebhookReconciler drains the durable webhook inbox and applies each event
// to its transaction. Events are correlated through the indexed provider
// references (payment_reference_id for UPI, transfer_ref for Wise), and an
// event whose transition was already applied is acknowledged as a no-op, so
// provider replays and races with polling are harmless.
type WebhookReconciler struct {
	inbox    webhookInbox
	ledger   reconcilerLedger
	remit    stageRunner
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewWebhookReconciler(
	inbox webhookInbox,
	ledger reconcilerLedger,
	remit stageRunner,
	logger *slog.Logger,
	interval time.Duration,
	batchLimit int,
) *WebhookReconciler {
	return &WebhookReconciler{
		inbox:    inbox,
		ledger:   ledger,
		remit:    remit,
		logger:   logger,
		interval: interval,
		batch:    batchLimit,
	}
}

func (r *WebhookReconciler) Start(ctx context.Context) {
	r.logger.Info("webhook reconciler started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("webhook reconciler stopped")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *WebhookReconciler) poll(ctx context.Context) {
	events, err := r.inbox.GetPending(ctx, r.batch)
	if err != nil {
		r.logger.Error("failed to fetch pending webhook events", "error", err)
		return
	}

	for _, event := range events {
		if err := r.processEvent(ctx, event); err != nil {
			r.logger.Error("failed to process webhook event",
				"webhook_event_id", event.ID,
				"provider", event.Provider,
				"error", err,
			)
			r.recordAttempt(ctx, event)
		}
	}
}

func (r *WebhookReconciler) processEvent(ctx context.Context, event domain.WebhookEvent) error {
	switch event.Provider {
	case domain.WebhookProviderUPI:
		return r.processUPIEvent(ctx, event)
	case domain.WebhookProviderWise:
		return r.processWiseEvent(ctx, event)
	default:
		r.logger.Error("unknown webhook provider", "webhook_event_id", event.ID, "provider", event.Provider)
		return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}
}

func (r *WebhookReconciler) processUPIEvent(ctx context.Context, event domain.WebhookEvent) error {
	var payload integration.UPIWebhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		r.logger.Error("malformed upi webhook payload", "webhook_event_id", event.ID, "error", err)
		return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}
	if err := integration.ValidateUPIWebhook(&payload); err != nil {
		r.logger.Error("invalid upi webhook payload", "webhook_event_id", event.ID, "error", err)
		return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}

	txn, err := r.ledger.GetByPaymentReference(ctx, payload.ReferenceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("no transaction for upi reference",
				"webhook_event_id", event.ID,
				"reference_id", payload.ReferenceID,
			)
			return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
		}
		return fmt.Errorf("processUPIEvent: %w", err)
	}

	switch integration.ParsePaymentStatus(payload.Status) {
	case integration.PaymentStatusCompleted:
		paymentTime := payload.PaymentTime
		details := &domain.PaymentDetails{
			PaymentID:   payload.PaymentID,
			PaymentTime: &paymentTime,
			ReferenceID: payload.ReferenceID,
		}
		err = r.remit.ProcessPayment(ctx, txn.ID, details)
	case integration.PaymentStatusFailed:
		err = r.remit.FailTransaction(ctx, txn.ID, "upi payment failed")
	case integration.PaymentStatusExpired:
		err = r.remit.FailTransaction(ctx, txn.ID, "upi payment expired")
	default:
		// Still pending at the gateway; a later event carries the outcome.
		return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusDispatched)
	}

	return r.finishEvent(ctx, event, txn.ID, err)
}

func (r *WebhookReconciler) processWiseEvent(ctx context.Context, event domain.WebhookEvent) error {
	var payload integration.WiseWebhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		r.logger.Error("malformed wise webhook payload", "webhook_event_id", event.ID, "error", err)
		return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}
	if err := integration.ValidateWiseWebhook(&payload); err != nil {
		r.logger.Error("invalid wise webhook payload", "webhook_event_id", event.ID, "error", err)
		return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}

	txn, err := r.ledger.GetByTransferID(ctx, payload.TransferID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("no transaction for wise transfer",
				"webhook_event_id", event.ID,
				"transfer_id", payload.TransferID,
			)
			return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
		}
		return fmt.Errorf("processWiseEvent: %w", err)
	}

	switch integration.ParseTransferStatus(payload.Status) {
	case integration.TransferStatusCompleted:
		err = r.remit.CompleteTransaction(ctx, txn.ID)
	case integration.TransferStatusFailed:
		err = r.remit.FailTransaction(ctx, txn.ID, "wise transfer failed")
	case integration.TransferStatusCancelled:
		err = r.remit.FailTransaction(ctx, txn.ID, "wise transfer cancelled")
	default:
		// In-flight status update; nothing to apply.
		return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusDispatched)
	}

	return r.finishEvent(ctx, event, txn.ID, err)
}

// finishEvent acknowledges the event. A transition that was already applied
// by another path (poll, replay, racing reconciler) counts as success.
func (r *WebhookReconciler) finishEvent(ctx context.Context, event domain.WebhookEvent, txnID uuid.UUID, err error) error {
	if err != nil {
		var ise *domain.InvalidStateError
		if errors.As(err, &ise) || errors.Is(err, domain.ErrConflict) {
			r.logger.Info("webhook transition already applied",
				"webhook_event_id", event.ID,
				"transaction_id", txnID,
			)
			return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusDispatched)
		}
		return fmt.Errorf("finishEvent: %w", err)
	}
	return r.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusDispatched)
}

// recordAttempt bumps the attempt counter after a processing error and gives
// up once the event has exhausted its retries.
func (r *WebhookReconciler) recordAttempt(ctx context.Context, event domain.WebhookEvent) {
	status := domain.WebhookEventStatusPending
	if event.Attempts+1 >= maxDispatchAttempts {
		status = domain.WebhookEventStatusFailed
		r.logger.Error("webhook event exhausted retries", "webhook_event_id", event.ID)
	}
	if err := r.inbox.UpdateStatus(ctx, event.ID, status); err != nil {
		r.logger.Error("failed to record webhook attempt", "webhook_event_id", event.ID, "error", err)
	}
}
