package models

import (
	"time"
)

// OrderKind distinguishes buying DGT from cashing it out
type OrderKind string

const (
	OrderPurchase   OrderKind = "purchase"
	OrderWithdrawal OrderKind = "withdrawal"
)

// OrderStatus moves pending -> confirmed | failed exactly once
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderFailed    OrderStatus = "failed"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderConfirmed || s == OrderFailed
}

// Order is an external-money operation awaiting provider confirmation
type Order struct {
	ID                string      `json:"id" db:"id"`
	Account           AccountRef  `json:"-"`
	AccountKey        string      `json:"account" db:"account_id"`
	Kind              OrderKind   `json:"kind" db:"kind"`
	RequestedAmount   int64       `json:"requested_amount" db:"requested_amount"`
	ExternalAmount    string      `json:"external_amount" db:"external_amount"` // decimal string
	ExternalCurrency  string      `json:"external_currency" db:"external_currency"`
	ExternalReference string      `json:"external_reference" db:"external_reference"`
	Status            OrderStatus `json:"status" db:"status"`
	HoldEntryID       string      `json:"hold_entry_id,omitempty" db:"hold_entry_id"`
	SettlementEntryID string      `json:"settlement_entry_id,omitempty" db:"settlement_entry_id"`
	Metadata          Metadata    `json:"metadata" db:"metadata"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
	FinalizedAt       *time.Time  `json:"finalized_at,omitempty" db:"finalized_at"`
}

// OrderView is the polling shape returned to the UI
type OrderView struct {
	ID               string      `json:"id"`
	Kind             OrderKind   `json:"kind"`
	Status           OrderStatus `json:"status"`
	RequestedAmount  int64       `json:"requested_amount"`
	ExternalAmount   string      `json:"external_amount"`
	ExternalCurrency string      `json:"external_currency"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	FinalizedAt      *time.Time  `json:"finalized_at,omitempty"`
}

func (o *Order) View() OrderView {
	return OrderView{
		ID:               o.ID,
		Kind:             o.Kind,
		Status:           o.Status,
		RequestedAmount:  o.RequestedAmount,
		ExternalAmount:   o.ExternalAmount,
		ExternalCurrency: o.ExternalCurrency,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		FinalizedAt:      o.FinalizedAt,
	}
}
