package services

import (
	"errors"

	"github.com/degentalk/ledger/internal/models"
)

// Sentinel errors for ledger operations. Callers match them with errors.Is;
// services wrap them with operation context.
var (
	// Validation errors, surfaced to the end user as a rejected operation
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrSelfTransfer      = errors.New("cannot transfer to the same account")
	ErrBelowMinimum      = errors.New("minimum transfer amount not met")
	ErrBalanceCeiling    = errors.New("recipient balance limit reached")
	ErrInvalidMetadata   = models.ErrInvalidMetadata
	ErrInvalidAccount    = errors.New("invalid account")

	// Lookup errors
	ErrAccountNotFound = errors.New("account not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrEntryNotFound   = errors.New("ledger entry not found")

	// State errors
	ErrOrderAlreadyFinalized = errors.New("order already finalized")
	ErrAlreadyReversed       = errors.New("entry already reversed")
	ErrInvalidReversal       = errors.New("entry cannot be reversed")

	// Webhook errors
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrUnknownEventType = errors.New("unknown webhook event type")
	ErrEventMismatch    = errors.New("webhook event does not match order")
	ErrInvalidPayload   = errors.New("invalid webhook payload")

	ErrInvalidConfiguration = errors.New("invalid configuration")
)

var validationErrors = []error{
	ErrInvalidAmount, ErrInsufficientFunds, ErrSelfTransfer, ErrBelowMinimum,
	ErrBalanceCeiling, ErrInvalidMetadata, ErrInvalidAccount,
}

// IsValidationError reports whether err rejects the operation on its inputs
// or the account state, as opposed to a storage failure.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound returns true for any of the lookup errors
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

// IsTerminalWebhookError reports whether redelivering the event can never
// succeed, so the retry collaborator should stop.
func IsTerminalWebhookError(err error) bool {
	return errors.Is(err, ErrUnknownEventType) ||
		errors.Is(err, ErrEventMismatch) ||
		errors.Is(err, ErrInvalidPayload)
}

// UserMessage returns the reason shown to the end user. It never includes
// account identifiers; storage failures collapse to a generic message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient balance"
	case errors.Is(err, ErrBelowMinimum):
		return "minimum transfer amount not met"
	case errors.Is(err, ErrSelfTransfer):
		return "cannot transfer to yourself"
	case errors.Is(err, ErrInvalidAmount):
		return "amount must be a positive whole number"
	case errors.Is(err, ErrBalanceCeiling):
		return "recipient cannot receive this amount"
	case errors.Is(err, ErrInvalidMetadata):
		return "invalid operation details"
	case errors.Is(err, ErrInvalidAccount):
		return "invalid account"
	case errors.Is(err, ErrOrderNotFound):
		return "order not found"
	case errors.Is(err, ErrEntryNotFound):
		return "transaction not found"
	case errors.Is(err, ErrAccountNotFound):
		return "account not found"
	case errors.Is(err, ErrAlreadyReversed):
		return "transaction already reversed"
	}
	return "operation failed, please try again"
}
