package models

import (
	"time"
)

// EntryKind is the business reason for a ledger entry
type EntryKind string

const (
	KindDeposit         EntryKind = "deposit"
	KindWithdrawal      EntryKind = "withdrawal"
	KindTip             EntryKind = "tip"
	KindRain            EntryKind = "rain"
	KindAirdrop         EntryKind = "airdrop"
	KindAdminAdjustment EntryKind = "admin_adjustment"
	KindReward          EntryKind = "reward"
	KindReferralBonus   EntryKind = "referral_bonus"
	KindFee             EntryKind = "fee"
	KindVaultLock       EntryKind = "vault_lock"
	KindVaultUnlock     EntryKind = "vault_unlock"
	KindReversal        EntryKind = "reversal"
)

var entryKinds = map[EntryKind]struct{}{
	KindDeposit: {}, KindWithdrawal: {}, KindTip: {}, KindRain: {}, KindAirdrop: {},
	KindAdminAdjustment: {}, KindReward: {}, KindReferralBonus: {}, KindFee: {},
	KindVaultLock: {}, KindVaultUnlock: {}, KindReversal: {},
}

// Valid reports whether k belongs to the closed set of entry kinds
func (k EntryKind) Valid() bool {
	_, ok := entryKinds[k]
	return ok
}

// EntryStatus is the lifecycle state of a ledger entry
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryConfirmed EntryStatus = "confirmed"
	EntryFailed    EntryStatus = "failed"
	EntryReversed  EntryStatus = "reversed"
)

// Applied reports whether an entry in this status has moved a balance.
// A reversed entry was applied and is cancelled by its compensating entry.
func (s EntryStatus) Applied() bool {
	return s == EntryConfirmed || s == EntryReversed
}

// LedgerEntry is one immutable, signed movement on an account
type LedgerEntry struct {
	ID                string      `json:"id" db:"id"`
	Account           AccountRef  `json:"-"`
	AccountKey        string      `json:"account" db:"account_id"`
	CounterpartyKey   string      `json:"counterparty,omitempty" db:"counterparty_id"`
	Amount            int64       `json:"amount" db:"amount"` // positive=credit, negative=debit
	Kind              EntryKind   `json:"kind" db:"kind"`
	Status            EntryStatus `json:"status" db:"status"`
	ExternalReference string      `json:"external_reference,omitempty" db:"external_reference"`
	ReversesEntryID   string      `json:"reverses_entry_id,omitempty" db:"reverses_entry_id"`
	Metadata          Metadata    `json:"metadata" db:"metadata"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}

// IsCredit reports whether the entry increased the balance
func (e *LedgerEntry) IsCredit() bool {
	return e.Amount > 0
}

// AuditReport compares an account's stored balance with its entry projection
type AuditReport struct {
	Account       string `json:"account"`
	StoredBalance int64  `json:"stored_balance"`
	LedgerBalance int64  `json:"ledger_balance"`
	EntryCount    int    `json:"entry_count"`
}

func (r AuditReport) Consistent() bool {
	return r.StoredBalance == r.LedgerBalance
}
