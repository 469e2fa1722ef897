package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/degentalk/ledger/internal/config"
	"github.com/degentalk/ledger/internal/database"
	"github.com/degentalk/ledger/internal/models"
)

// EntryNotificationList is the Redis list that receives every committed entry
const EntryNotificationList = "ledger:entries"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

const entryColumns = `id, account_id, counterparty_id, amount, kind, status, external_reference, reverses_entry_id, metadata, created_at`

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LedgerService is the only writer of account balances and ledger entries.
// Every mutation runs in one database transaction with the touched accounts
// locked in sorted key order.
type LedgerService struct {
	db          *sql.DB
	dialect     database.Dialect
	fees        *FeeRouter
	redis       *redis.Client
	audit       *AuditLogger
	minTransfer int64
	maxBalance  int64
	now         func() time.Time
}

func NewLedgerService(db *sql.DB, dialect database.Dialect, fees *FeeRouter, cfg *config.LedgerConfig) *LedgerService {
	return &LedgerService{
		db:          db,
		dialect:     dialect,
		fees:        fees,
		audit:       NewAuditLogger(),
		minTransfer: cfg.MinTransfer,
		maxBalance:  cfg.MaxBalance,
		now:         time.Now,
	}
}

// WithNotifier enables post-commit entry notifications on Redis
func (s *LedgerService) WithNotifier(rdb *redis.Client) *LedgerService {
	s.redis = rdb
	return s
}

// DB exposes the store so collaborators can open transactions that span
// their own writes and the ledger's.
func (s *LedgerService) DB() *sql.DB {
	return s.db
}

func (s *LedgerService) Dialect() database.Dialect {
	return s.dialect
}

// Credit adds amount to account and returns the new balance. Credits that
// would push a user account above the balance ceiling are clamped; the
// requested amount is kept in the entry metadata.
func (s *LedgerService) Credit(ctx context.Context, account models.AccountRef, amount int64, kind models.EntryKind, meta models.Metadata) (balance int64, err error) {
	defer s.observe("credit", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	entry, balance, err := s.CreditTx(ctx, tx, account, amount, kind, meta)
	if err != nil {
		s.audit.LogError("credit", account.Key(), err)
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit credit: %w", err)
	}

	s.Committed(ctx, entry)
	return balance, nil
}

// CreditTx is Credit inside a caller-owned transaction. The entry is nil
// when the credit was clamped to zero.
func (s *LedgerService) CreditTx(ctx context.Context, tx *sql.Tx, account models.AccountRef, amount int64, kind models.EntryKind, meta models.Metadata) (*models.LedgerEntry, int64, error) {
	if err := s.checkMutation(account, amount, kind, meta); err != nil {
		return nil, 0, err
	}

	accounts, err := s.lockAccounts(ctx, tx, account)
	if err != nil {
		return nil, 0, err
	}
	acc := accounts[account.Key()]

	applied := amount
	if account.IsTreasury() {
		if acc.Balance > math.MaxInt64-amount {
			return nil, 0, ErrBalanceCeiling
		}
	} else if amount > s.maxBalance-acc.Balance {
		applied = s.maxBalance - acc.Balance
		if applied < 0 {
			applied = 0
		}
		meta = meta.With(models.MetaRequestedAmount, strconv.FormatInt(amount, 10))
		log.Printf("[LEDGER] credit to %s clamped from %d to %d", account.Key(), amount, applied)
	}
	if applied == 0 {
		return nil, acc.Balance, nil
	}

	entry := s.newEntry(account, "", applied, kind, models.EntryConfirmed, meta)
	if err := s.insertEntry(ctx, tx, entry); err != nil {
		return nil, 0, err
	}
	newBalance := acc.Balance + applied
	if err := s.updateAccountBalance(ctx, tx, acc, newBalance); err != nil {
		return nil, 0, err
	}
	return entry, newBalance, nil
}

// Debit removes amount from account and returns the new balance
func (s *LedgerService) Debit(ctx context.Context, account models.AccountRef, amount int64, kind models.EntryKind, meta models.Metadata) (balance int64, err error) {
	defer s.observe("debit", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	entry, balance, err := s.DebitTx(ctx, tx, account, amount, kind, meta)
	if err != nil {
		s.audit.LogError("debit", account.Key(), err)
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit debit: %w", err)
	}

	s.Committed(ctx, entry)
	return balance, nil
}

// DebitTx is Debit inside a caller-owned transaction
func (s *LedgerService) DebitTx(ctx context.Context, tx *sql.Tx, account models.AccountRef, amount int64, kind models.EntryKind, meta models.Metadata) (*models.LedgerEntry, int64, error) {
	if err := s.checkMutation(account, amount, kind, meta); err != nil {
		return nil, 0, err
	}

	accounts, err := s.lockAccounts(ctx, tx, account)
	if err != nil {
		return nil, 0, err
	}
	acc := accounts[account.Key()]

	if acc.Balance < amount {
		return nil, 0, ErrInsufficientFunds
	}

	entry := s.newEntry(account, "", -amount, kind, models.EntryConfirmed, meta)
	if err := s.insertEntry(ctx, tx, entry); err != nil {
		return nil, 0, err
	}
	newBalance := acc.Balance - amount
	if err := s.updateAccountBalance(ctx, tx, acc, newBalance); err != nil {
		return nil, 0, err
	}
	return entry, newBalance, nil
}

// Transfer moves amount from one account to another, routing the fee for
// kind to the treasury. It returns both balances after the move.
func (s *LedgerService) Transfer(ctx context.Context, from, to models.AccountRef, amount int64, kind models.EntryKind, meta models.Metadata) (fromBalance, toBalance int64, err error) {
	defer s.observe("transfer", time.Now(), &err)

	if err := s.checkMutation(from, amount, kind, meta); err != nil {
		return 0, 0, err
	}
	if !to.Valid() {
		return 0, 0, ErrInvalidAccount
	}
	if from.Key() == to.Key() {
		return 0, 0, ErrSelfTransfer
	}
	if amount < s.minTransfer {
		return 0, 0, ErrBelowMinimum
	}

	net, fee, err := s.fees.Split(amount, kind)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	treasury := models.TreasuryAccount()
	accounts, err := s.lockAccounts(ctx, tx, from, to, treasury)
	if err != nil {
		return 0, 0, err
	}
	sender, recipient := accounts[from.Key()], accounts[to.Key()]

	if sender.Balance < amount {
		s.audit.LogTransfer("", from.Key(), to.Key(), amount, fee, "REJECTED")
		return 0, 0, ErrInsufficientFunds
	}
	if to.IsTreasury() {
		if recipient.Balance > math.MaxInt64-net-fee {
			return 0, 0, ErrBalanceCeiling
		}
	} else if net > s.maxBalance-recipient.Balance {
		return 0, 0, ErrBalanceCeiling
	}
	if fee > 0 && !to.IsTreasury() && accounts[treasury.Key()].Balance > math.MaxInt64-fee {
		return 0, 0, ErrBalanceCeiling
	}

	entries := []*models.LedgerEntry{
		s.newEntry(from, to.Key(), -amount, kind, models.EntryConfirmed, meta),
		s.newEntry(to, from.Key(), net, kind, models.EntryConfirmed, meta),
	}
	if fee > 0 {
		feeMeta := meta.Only(models.KindFee).With(models.MetaFeeForKind, string(kind))
		entries = append(entries, s.newEntry(treasury, from.Key(), fee, models.KindFee, models.EntryConfirmed, feeMeta))
	}
	for _, entry := range entries {
		if err := s.insertEntry(ctx, tx, entry); err != nil {
			return 0, 0, err
		}
	}

	// Apply deltas per account; the treasury may also be the recipient
	deltas := make(map[string]int64)
	for _, entry := range entries {
		deltas[entry.AccountKey] += entry.Amount
	}
	for _, key := range sortedKeys(deltas) {
		acc := accounts[key]
		if err := s.updateAccountBalance(ctx, tx, acc, acc.Balance+deltas[key]); err != nil {
			return 0, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transfer: %w", err)
	}

	s.audit.LogTransfer(entries[0].ID, from.Key(), to.Key(), amount, fee, "SUCCESS")
	s.Committed(ctx, entries...)

	return sender.Balance, recipient.Balance, nil
}

// Reverse cancels a confirmed entry with a compensating entry and returns
// the account's new balance.
func (s *LedgerService) Reverse(ctx context.Context, entryID string, reason string) (balance int64, err error) {
	defer s.observe("reverse", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	entry, balance, err := s.ReverseTx(ctx, tx, entryID, models.MetadataOf(string(models.MetaReason), reason))
	if err != nil {
		s.audit.LogError(entryID, "", err)
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reversal: %w", err)
	}

	s.Committed(ctx, entry)
	return balance, nil
}

// ReverseTx is Reverse inside a caller-owned transaction. It returns the
// compensating entry.
func (s *LedgerService) ReverseTx(ctx context.Context, tx *sql.Tx, entryID string, meta models.Metadata) (*models.LedgerEntry, int64, error) {
	if err := meta.Validate(models.KindReversal); err != nil {
		return nil, 0, err
	}

	original, err := s.getEntry(ctx, tx, entryID, s.dialect.ForUpdate())
	if err != nil {
		return nil, 0, err
	}
	switch {
	case original.Status == models.EntryReversed:
		return nil, 0, ErrAlreadyReversed
	case original.Status != models.EntryConfirmed, original.Kind == models.KindReversal:
		return nil, 0, ErrInvalidReversal
	}

	accounts, err := s.lockAccounts(ctx, tx, original.Account)
	if err != nil {
		return nil, 0, err
	}
	acc := accounts[original.AccountKey]

	newBalance := acc.Balance - original.Amount
	if newBalance < 0 {
		return nil, 0, ErrInsufficientFunds
	}
	if original.Amount < 0 && acc.Balance > math.MaxInt64+original.Amount {
		return nil, 0, ErrBalanceCeiling
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries SET status = $1 WHERE id = $2 AND status = $3`,
		string(models.EntryReversed), original.ID, string(models.EntryConfirmed))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to mark entry reversed: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, 0, err
	} else if n == 0 {
		return nil, 0, ErrAlreadyReversed
	}

	if ref := original.ExternalReference; ref != "" && meta.Get(models.MetaExternalReference) == "" {
		meta = meta.With(models.MetaExternalReference, ref)
	}
	compensating := s.newEntry(original.Account, original.CounterpartyKey, -original.Amount, models.KindReversal, models.EntryConfirmed, meta)
	compensating.ReversesEntryID = original.ID
	if err := s.insertEntry(ctx, tx, compensating); err != nil {
		return nil, 0, err
	}
	if err := s.updateAccountBalance(ctx, tx, acc, newBalance); err != nil {
		return nil, 0, err
	}
	return compensating, newBalance, nil
}

// Committed runs the post-commit side effects for entries written through
// the Tx variants: audit lines, volume metrics and the Redis notification.
func (s *LedgerService) Committed(ctx context.Context, entries ...*models.LedgerEntry) {
	var written []*models.LedgerEntry
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		written = append(written, entry)
		s.audit.LogEntry(entry)
		amount := entry.Amount
		if amount < 0 {
			amount = -amount
		}
		ledgerVolume.WithLabelValues(string(entry.Kind)).Add(float64(amount))
	}
	s.notify(ctx, written)
}

func (s *LedgerService) notify(ctx context.Context, entries []*models.LedgerEntry) {
	if s.redis == nil || len(entries) == 0 {
		return
	}
	pipe := s.redis.Pipeline()
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, EntryNotificationList, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[LEDGER] entry notification failed: %v", err)
	}
}

// GetBalance returns the stored balance of account
func (s *LedgerService) GetBalance(ctx context.Context, account models.AccountRef) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`, account.Key()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// GetAccount returns the stored account row
func (s *LedgerService) GetAccount(ctx context.Context, account models.AccountRef) (*models.Account, error) {
	acc, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, kind, balance, version, created_at, updated_at
		FROM accounts WHERE id = $1`, account.Key()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

func (s *LedgerService) GetEntry(ctx context.Context, entryID string) (*models.LedgerEntry, error) {
	return s.getEntry(ctx, s.db, entryID, "")
}

// ListEntries returns the newest entries of account first
func (s *LedgerService) ListEntries(ctx context.Context, account models.AccountRef, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, account.Key(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FindEntryByExternalReference returns the latest non-compensating entry
// carrying ref.
func (s *LedgerService) FindEntryByExternalReference(ctx context.Context, ref string) (*models.LedgerEntry, error) {
	return s.findEntryByExternalReference(ctx, s.db, ref)
}

// FindEntryByExternalReferenceTx is FindEntryByExternalReference inside tx
func (s *LedgerService) FindEntryByExternalReferenceTx(ctx context.Context, tx *sql.Tx, ref string) (*models.LedgerEntry, error) {
	return s.findEntryByExternalReference(ctx, tx, ref)
}

func (s *LedgerService) findEntryByExternalReference(ctx context.Context, q queryer, ref string) (*models.LedgerEntry, error) {
	entry, err := scanEntry(q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE external_reference = $1 AND kind <> $2
		ORDER BY created_at DESC
		LIMIT 1`, ref, string(models.KindReversal)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry by reference: %w", err)
	}
	return entry, nil
}

// AuditAccount recomputes the balance of account from its applied entries
func (s *LedgerService) AuditAccount(ctx context.Context, account models.AccountRef) (*models.AuditReport, error) {
	report := &models.AuditReport{Account: account.Key()}
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`, account.Key()).
		Scan(&report.StoredBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to audit account: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM ledger_entries
		WHERE account_id = $1 AND status IN ($2, $3)`,
		account.Key(), string(models.EntryConfirmed), string(models.EntryReversed)).
		Scan(&report.LedgerBalance, &report.EntryCount)
	if err != nil {
		return nil, fmt.Errorf("failed to audit account: %w", err)
	}
	return report, nil
}

// AuditAll recomputes every account; callers filter on Consistent()
func (s *LedgerService) AuditAll(ctx context.Context) ([]models.AuditReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.balance, COALESCE(SUM(e.amount), 0), COUNT(e.id)
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id AND e.status IN ($1, $2)
		GROUP BY a.id, a.balance
		ORDER BY a.id`, string(models.EntryConfirmed), string(models.EntryReversed))
	if err != nil {
		return nil, fmt.Errorf("failed to audit ledger: %w", err)
	}
	defer rows.Close()

	var reports []models.AuditReport
	for rows.Next() {
		var r models.AuditReport
		if err := rows.Scan(&r.Account, &r.StoredBalance, &r.LedgerBalance, &r.EntryCount); err != nil {
			return nil, err
		}
		if !r.Consistent() {
			log.Printf("[LEDGER] audit mismatch on %s: stored=%d ledger=%d", r.Account, r.StoredBalance, r.LedgerBalance)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// TotalSupply is the sum of all balances, treasury included
func (s *LedgerService) TotalSupply(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}

func (s *LedgerService) checkMutation(account models.AccountRef, amount int64, kind models.EntryKind, meta models.Metadata) error {
	if !account.Valid() {
		return ErrInvalidAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !kind.Valid() || kind == models.KindFee || kind == models.KindReversal {
		return fmt.Errorf("%w: entry kind %q cannot be written directly", ErrInvalidMetadata, kind)
	}
	return meta.Validate(kind)
}

func (s *LedgerService) newEntry(account models.AccountRef, counterparty string, amount int64, kind models.EntryKind, status models.EntryStatus, meta models.Metadata) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:                uuid.NewString(),
		Account:           account,
		AccountKey:        account.Key(),
		CounterpartyKey:   counterparty,
		Amount:            amount,
		Kind:              kind,
		Status:            status,
		ExternalReference: meta.Get(models.MetaExternalReference),
		Metadata:          meta,
		CreatedAt:         s.now().UTC(),
	}
}

// lockAccounts creates missing accounts and locks all of them in sorted key
// order so concurrent transfers cannot deadlock.
func (s *LedgerService) lockAccounts(ctx context.Context, tx *sql.Tx, refs ...models.AccountRef) (map[string]*models.Account, error) {
	byKey := make(map[string]models.AccountRef, len(refs))
	for _, ref := range refs {
		byKey[ref.Key()] = ref
	}

	locked := make(map[string]*models.Account, len(byKey))
	for _, key := range sortedKeys(byKey) {
		ref := byKey[key]
		if err := s.ensureAccount(ctx, tx, ref); err != nil {
			return nil, err
		}
		acc, err := scanAccount(tx.QueryRowContext(ctx, `
			SELECT id, kind, balance, version, created_at, updated_at
			FROM accounts
			WHERE id = $1`+s.dialect.ForUpdate(), key))
		if err != nil {
			return nil, fmt.Errorf("failed to lock account %s: %w", key, err)
		}
		acc.Ref = ref
		locked[key] = acc
	}
	return locked, nil
}

func (s *LedgerService) ensureAccount(ctx context.Context, tx *sql.Tx, ref models.AccountRef) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, kind, balance, version, created_at, updated_at)
		VALUES ($1, $2, 0, 1, $3, $3)
		ON CONFLICT (id) DO NOTHING`,
		ref.Key(), string(ref.Kind()), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", ref.Key(), err)
	}
	return nil
}

func (s *LedgerService) insertEntry(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.AccountKey, database.NullString(entry.CounterpartyKey), entry.Amount,
		string(entry.Kind), string(entry.Status), database.NullString(entry.ExternalReference),
		database.NullString(entry.ReversesEntryID), entry.Metadata, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (s *LedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, acc *models.Account, newBalance int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, s.now().UTC(), acc.Key, acc.Version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", acc.Key)
	}

	acc.Balance = newBalance
	acc.Version++
	return nil
}

func (s *LedgerService) getEntry(ctx context.Context, q queryer, entryID, suffix string) (*models.LedgerEntry, error) {
	entry, err := scanEntry(q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE id = $1`+suffix, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

func (s *LedgerService) observe(operation string, start time.Time, err *error) {
	ledgerOperations.WithLabelValues(operation, resultLabel(*err)).Inc()
	ledgerOperationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var acc models.Account
	if err := row.Scan(&acc.Key, &acc.Kind, &acc.Balance, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, err
	}
	if ref, err := models.ParseAccountRef(acc.Key); err == nil {
		acc.Ref = ref
	}
	return &acc, nil
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		entry                            models.LedgerEntry
		counterparty, extRef, reversesID sql.NullString
		kind, status                     string
	)
	err := row.Scan(&entry.ID, &entry.AccountKey, &counterparty, &entry.Amount, &kind, &status,
		&extRef, &reversesID, &entry.Metadata, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.Kind = models.EntryKind(kind)
	entry.Status = models.EntryStatus(status)
	entry.CounterpartyKey = counterparty.String
	entry.ExternalReference = extRef.String
	entry.ReversesEntryID = reversesID.String
	if ref, err := models.ParseAccountRef(entry.AccountKey); err == nil {
		entry.Account = ref
	}
	return &entry, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
