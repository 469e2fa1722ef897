package models

import (
	"fmt"
	"strings"
	"time"
)

// AccountKind tags which variant an AccountRef holds
type AccountKind string

const (
	AccountKindUser     AccountKind = "user"
	AccountKindTreasury AccountKind = "treasury"
)

const treasuryName = "main"

// AccountRef identifies a ledger account. It is either a user account or the
// platform treasury; construct it with UserAccount or TreasuryAccount.
type AccountRef struct {
	kind AccountKind
	id   string
}

// UserAccount returns the ledger account of a platform user
func UserAccount(userID string) AccountRef {
	return AccountRef{kind: AccountKindUser, id: strings.TrimSpace(userID)}
}

// TreasuryAccount returns the account that accumulates transaction fees
func TreasuryAccount() AccountRef {
	return AccountRef{kind: AccountKindTreasury, id: treasuryName}
}

func (a AccountRef) Kind() AccountKind { return a.kind }

// ID is the user id for user accounts and the treasury name otherwise
func (a AccountRef) ID() string { return a.id }

func (a AccountRef) IsTreasury() bool { return a.kind == AccountKindTreasury }

func (a AccountRef) IsZero() bool { return a.kind == "" && a.id == "" }

// Valid reports whether the ref names a usable account
func (a AccountRef) Valid() bool {
	switch a.kind {
	case AccountKindUser:
		return a.id != ""
	case AccountKindTreasury:
		return a.id == treasuryName
	}
	return false
}

// Key is the storage key of the account, e.g. "user:42" or "treasury:main"
func (a AccountRef) Key() string {
	return string(a.kind) + ":" + a.id
}

func (a AccountRef) String() string {
	return a.Key()
}

// ParseAccountRef is the inverse of Key
func ParseAccountRef(key string) (AccountRef, error) {
	kind, id, ok := strings.Cut(key, ":")
	if !ok {
		return AccountRef{}, fmt.Errorf("invalid account key %q", key)
	}
	ref := AccountRef{kind: AccountKind(kind), id: id}
	if !ref.Valid() {
		return AccountRef{}, fmt.Errorf("invalid account key %q", key)
	}
	return ref, nil
}

// Account is the materialised balance of one AccountRef
type Account struct {
	Ref       AccountRef `json:"-"`
	Key       string     `json:"account" db:"id"`
	Kind      string     `json:"kind" db:"kind"`
	Balance   int64      `json:"balance" db:"balance"` // smallest DGT unit
	Version   int        `json:"version" db:"version"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
