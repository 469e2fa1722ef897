package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/degentalk/ledger/internal/models"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference"`
	AccountID string    `json:"account_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// AuditLogger writes one JSON line per balance-affecting or security event
type AuditLogger struct {
	logf func(format string, v ...any)
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{logf: log.Printf}
}

func (a *AuditLogger) LogEntry(entry *models.LedgerEntry) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "LEDGER_ENTRY",
		Reference: entry.ID,
		AccountID: entry.AccountKey,
		Amount:    entry.Amount,
		Status:    string(entry.Status),
		Details: map[string]string{
			"kind":         string(entry.Kind),
			"counterparty": entry.CounterpartyKey,
		},
	})
}

func (a *AuditLogger) LogTransfer(reference, fromAccount, toAccount string, amount, fee int64, status string) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "TRANSFER",
		Reference: reference,
		Amount:    amount,
		Status:    status,
		Details: map[string]any{
			"from_account": fromAccount,
			"to_account":   toAccount,
			"fee":          fee,
		},
	})
}

func (a *AuditLogger) LogError(reference, accountID string, err error) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		Reference: reference,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) LogOperation(reference, accountID, operation, details string) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: operation,
		Reference: reference,
		AccountID: accountID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

// LogSecurity records rejected requests such as bad webhook signatures
func (a *AuditLogger) LogSecurity(source, reason string) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "SECURITY",
		Reference: source,
		Status:    "REJECTED",
		Details:   map[string]string{"reason": reason},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	a.logf("AUDIT: %s", string(data))
}
