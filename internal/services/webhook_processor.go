package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/degentalk/ledger/internal/models"
)

// Outcome reports what processing an event did
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"   // an order or entry changed state
	OutcomeDuplicate Outcome = "duplicate" // event id already processed
	OutcomeIgnored   Outcome = "ignored"   // target was already final
	OutcomeUnmatched Outcome = "unmatched" // no order or entry carries the reference
)

const eventColumns = `id, provider_event_id, event_type, external_reference, payload, status, retry_count, last_error, outcome, created_at, processed_at`

// WebhookProcessor reconciles provider events against orders and entries.
// Every event is stored before it is acted on and applied at most once.
type WebhookProcessor struct {
	ledger   *LedgerService
	orders   *OrderService
	db       *sql.DB
	audit    *AuditLogger
	validate *validator.Validate
	now      func() time.Time
}

func NewWebhookProcessor(ledger *LedgerService, orders *OrderService) *WebhookProcessor {
	return &WebhookProcessor{
		ledger:   ledger,
		orders:   orders,
		db:       ledger.DB(),
		audit:    NewAuditLogger(),
		validate: validator.New(),
		now:      time.Now,
	}
}

// ParseEvent builds a validated event from a provider notification body
func (p *WebhookProcessor) ParseEvent(payload []byte) (*models.WebhookEvent, error) {
	var parsed models.WebhookPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.validate.Struct(parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return &models.WebhookEvent{
		ProviderEventID:   strings.TrimSpace(parsed.EventID),
		EventType:         models.WebhookEventType(strings.ToLower(strings.TrimSpace(parsed.EventType))),
		ExternalReference: strings.TrimSpace(parsed.ExternalReference),
		Payload:           payload,
		Parsed:            parsed,
		Status:            models.WebhookReceived,
	}, nil
}

// ProcessEvent stores event and applies it. Redelivered events that were
// already processed return OutcomeDuplicate without side effects.
func (p *WebhookProcessor) ProcessEvent(ctx context.Context, event *models.WebhookEvent) (Outcome, error) {
	if event.ProviderEventID == "" || event.ExternalReference == "" {
		return "", fmt.Errorf("%w: event id and reference are required", ErrInvalidPayload)
	}

	stored, err := p.persist(ctx, event)
	if err != nil {
		return "", err
	}
	if stored.Status == models.WebhookProcessed {
		log.Printf("[WEBHOOK] duplicate event %s ignored", event.ProviderEventID)
		webhookEvents.WithLabelValues(string(event.EventType), string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}
	event.ID = stored.ID

	if !knownEventType(event.EventType) {
		err := fmt.Errorf("%w: %q", ErrUnknownEventType, event.EventType)
		p.markFailed(ctx, event, err)
		return "", err
	}

	outcome, entries, err := p.apply(ctx, event)
	if err != nil {
		log.Printf("[WEBHOOK] event %s (%s) failed: %v", event.ProviderEventID, event.EventType, err)
		p.markFailed(ctx, event, err)
		return "", err
	}

	p.ledger.Committed(ctx, entries...)
	webhookEvents.WithLabelValues(string(event.EventType), string(outcome)).Inc()
	log.Printf("[WEBHOOK] event %s (%s) for %s: %s", event.ProviderEventID, event.EventType, event.ExternalReference, outcome)
	return outcome, nil
}

// Replay reprocesses a stored event, typically one left failed
func (p *WebhookProcessor) Replay(ctx context.Context, eventID string) (Outcome, error) {
	stored, err := p.getEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	event, err := p.ParseEvent(stored.Payload)
	if err != nil {
		return "", err
	}
	return p.ProcessEvent(ctx, event)
}

// ListFailedEvents returns failed events oldest first for the retry worker
func (p *WebhookProcessor) ListFailedEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM webhook_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`, string(models.WebhookFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed events: %w", err)
	}
	defer rows.Close()

	var events []*models.WebhookEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (p *WebhookProcessor) persist(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO webhook_events (id, provider_event_id, event_type, external_reference, payload, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		ON CONFLICT (provider_event_id) DO NOTHING`,
		uuid.NewString(), event.ProviderEventID, string(event.EventType), event.ExternalReference,
		string(event.Payload), string(models.WebhookReceived), p.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to store webhook event: %w", err)
	}

	stored, err := scanEvent(p.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM webhook_events
		WHERE provider_event_id = $1`, event.ProviderEventID))
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook event: %w", err)
	}
	return stored, nil
}

// apply runs the event's effect and marks it processed in one transaction
func (p *WebhookProcessor) apply(ctx context.Context, event *models.WebhookEvent) (Outcome, []*models.LedgerEntry, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback()

	dialect := p.ledger.Dialect()
	if err := dialect.LockKey(ctx, tx, "webhook:"+event.ExternalReference); err != nil {
		return "", nil, fmt.Errorf("failed to lock reference: %w", err)
	}

	// A concurrent delivery of the same event may have won the lock
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM webhook_events WHERE id = $1`+dialect.ForUpdate(), event.ID).Scan(&status)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load webhook event: %w", err)
	}
	if models.WebhookEventStatus(status) == models.WebhookProcessed {
		return OutcomeDuplicate, nil, nil
	}

	outcome, entries, err := p.reconcile(ctx, tx, event)
	if err != nil {
		return "", nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = $1, outcome = $2, last_error = '', processed_at = $3
		WHERE id = $4`,
		string(models.WebhookProcessed), string(outcome), p.now().UTC(), event.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to mark event processed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("failed to commit webhook event: %w", err)
	}
	return outcome, entries, nil
}

func (p *WebhookProcessor) reconcile(ctx context.Context, tx *sql.Tx, event *models.WebhookEvent) (Outcome, []*models.LedgerEntry, error) {
	meta := eventMetadata(event)
	target := models.OrderConfirmed
	if event.EventType == models.EventDepositFailed || event.EventType == models.EventWithdrawalFailed {
		target = models.OrderFailed
	}

	order, err := p.orders.GetOrderByExternalReferenceTx(ctx, tx, event.ExternalReference)
	switch {
	case err == nil:
		if order.Kind != expectedOrderKind(event.EventType) {
			return "", nil, fmt.Errorf("%w: %s event for %s order %s", ErrEventMismatch, event.EventType, order.Kind, order.ID)
		}
		if order.Status.Terminal() {
			return OutcomeIgnored, nil, nil
		}
		_, entries, err := p.orders.FulfillTx(ctx, tx, order.ID, target, meta)
		if err != nil {
			return "", nil, err
		}
		return OutcomeApplied, entries, nil
	case !errors.Is(err, ErrOrderNotFound):
		return "", nil, err
	}

	entry, err := p.ledger.FindEntryByExternalReferenceTx(ctx, tx, event.ExternalReference)
	if errors.Is(err, ErrEntryNotFound) {
		log.Printf("[WEBHOOK] no order or entry for reference %s", event.ExternalReference)
		return OutcomeUnmatched, nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	if event.EventType != models.EventWithdrawalFailed {
		return OutcomeIgnored, nil, nil
	}
	if entry.Kind != models.KindWithdrawal {
		return "", nil, fmt.Errorf("%w: %s event for %s entry %s", ErrEventMismatch, event.EventType, entry.Kind, entry.ID)
	}
	compensating, _, err := p.ledger.ReverseTx(ctx, tx, entry.ID, meta.With(models.MetaReason, "withdrawal failed").Only(models.KindReversal))
	if errors.Is(err, ErrAlreadyReversed) {
		return OutcomeIgnored, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return OutcomeApplied, []*models.LedgerEntry{compensating}, nil
}

func (p *WebhookProcessor) markFailed(ctx context.Context, event *models.WebhookEvent, cause error) {
	_, err := p.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = $1, retry_count = retry_count + 1, last_error = $2
		WHERE id = $3`,
		string(models.WebhookFailed), cause.Error(), event.ID)
	if err != nil {
		log.Printf("[WEBHOOK] failed to mark event %s failed: %v", event.ID, err)
	}
	webhookEvents.WithLabelValues(string(event.EventType), "error").Inc()
	p.audit.LogError(event.ProviderEventID, "", cause)
}

func (p *WebhookProcessor) getEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	event, err := scanEvent(p.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM webhook_events
		WHERE id = $1`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("webhook event %s not found", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook event: %w", err)
	}
	return event, nil
}

func knownEventType(t models.WebhookEventType) bool {
	switch t {
	case models.EventDepositCompleted, models.EventDepositFailed,
		models.EventWithdrawalCompleted, models.EventWithdrawalFailed:
		return true
	}
	return false
}

func expectedOrderKind(t models.WebhookEventType) models.OrderKind {
	if t == models.EventDepositCompleted || t == models.EventDepositFailed {
		return models.OrderPurchase
	}
	return models.OrderWithdrawal
}

func eventMetadata(event *models.WebhookEvent) models.Metadata {
	return models.NewMetadata().
		With(models.MetaEventID, event.ProviderEventID).
		With(models.MetaTxHash, event.Parsed.TxHash).
		With(models.MetaActualAmount, event.Parsed.ActualAmount).
		With(models.MetaCurrency, strings.ToUpper(event.Parsed.Currency))
}

func scanEvent(row rowScanner) (*models.WebhookEvent, error) {
	var (
		event                      models.WebhookEvent
		eventType, payload, status string
		processedAt                sql.NullTime
	)
	err := row.Scan(&event.ID, &event.ProviderEventID, &eventType, &event.ExternalReference, &payload,
		&status, &event.RetryCount, &event.LastError, &event.Outcome, &event.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	event.EventType = models.WebhookEventType(eventType)
	event.Payload = []byte(payload)
	event.Status = models.WebhookEventStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		event.ProcessedAt = &t
	}
	return &event, nil
}
