package models

import (
	"time"
)

// WebhookEventType is the provider's declared event type
type WebhookEventType string

const (
	EventDepositCompleted    WebhookEventType = "deposit_completed"
	EventDepositFailed       WebhookEventType = "deposit_failed"
	EventWithdrawalCompleted WebhookEventType = "withdrawal_completed"
	EventWithdrawalFailed    WebhookEventType = "withdrawal_failed"
)

// WebhookEventStatus tracks processing of a stored event
type WebhookEventStatus string

const (
	WebhookReceived  WebhookEventStatus = "received"
	WebhookProcessed WebhookEventStatus = "processed"
	WebhookFailed    WebhookEventStatus = "failed"
)

// WebhookPayload is the provider notification body
type WebhookPayload struct {
	EventType         string     `json:"externalEventType" validate:"required"`
	EventID           string     `json:"externalEventId" validate:"required,max=191"`
	ExternalReference string     `json:"externalReference" validate:"required,max=191"`
	Status            string     `json:"status"`
	Amount            string     `json:"amount" validate:"omitempty,numeric"`
	ActualAmount      string     `json:"actualAmount,omitempty" validate:"omitempty,numeric"`
	TxHash            string     `json:"txHash,omitempty"`
	Currency          string     `json:"currency" validate:"omitempty,max=16"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

// WebhookEvent is a received provider notification and its processing state
type WebhookEvent struct {
	ID                string             `json:"id" db:"id"`
	ProviderEventID   string             `json:"provider_event_id" db:"provider_event_id"`
	EventType         WebhookEventType   `json:"event_type" db:"event_type"`
	ExternalReference string             `json:"external_reference" db:"external_reference"`
	Payload           []byte             `json:"-" db:"payload"`
	Parsed            WebhookPayload     `json:"-"`
	Status            WebhookEventStatus `json:"status" db:"status"`
	RetryCount        int                `json:"retry_count" db:"retry_count"`
	LastError         string             `json:"last_error,omitempty" db:"last_error"`
	Outcome           string             `json:"outcome,omitempty" db:"outcome"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	ProcessedAt       *time.Time         `json:"processed_at,omitempty" db:"processed_at"`
}
