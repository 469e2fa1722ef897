package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/degentalk/ledger/internal/database"
	"github.com/degentalk/ledger/internal/models"
)

const orderColumns = `id, account_id, kind, requested_amount, external_amount, external_currency, external_reference, status, hold_entry_id, settlement_entry_id, metadata, created_at, updated_at, finalized_at`

// CreateOrderRequest describes a purchase or withdrawal awaiting the provider
type CreateOrderRequest struct {
	Account           models.AccountRef
	Amount            int64
	ExternalAmount    decimal.Decimal
	Currency          string
	ExternalReference string // generated when empty
	Metadata          models.Metadata
}

// OrderService tracks external-money orders and applies their ledger effect
// exactly once when they are finalized.
type OrderService struct {
	ledger *LedgerService
	db     *sql.DB
	audit  *AuditLogger
	now    func() time.Time
}

func NewOrderService(ledger *LedgerService) *OrderService {
	return &OrderService{
		ledger: ledger,
		db:     ledger.DB(),
		audit:  NewAuditLogger(),
		now:    time.Now,
	}
}

// CreatePurchaseOrder records a pending DGT purchase. No balance moves until
// the order is fulfilled.
func (s *OrderService) CreatePurchaseOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	order, err := s.newOrder(req, models.OrderPurchase)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	orderTransitions.WithLabelValues(string(order.Kind), string(order.Status)).Inc()
	log.Printf("[ORDER] purchase order %s created for %s (%d DGT)", order.ID, order.AccountKey, order.RequestedAmount)
	return order, nil
}

// CreateWithdrawalOrder records a pending withdrawal and holds the funds by
// debiting them in the same transaction.
func (s *OrderService) CreateWithdrawalOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	order, err := s.newOrder(req, models.OrderWithdrawal)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	holdMeta := order.Metadata.
		With(models.MetaOrderID, order.ID).
		With(models.MetaExternalReference, order.ExternalReference).
		With(models.MetaCurrency, order.ExternalCurrency).
		Only(models.KindWithdrawal)
	hold, _, err := s.ledger.DebitTx(ctx, tx, order.Account, order.RequestedAmount, models.KindWithdrawal, holdMeta)
	if err != nil {
		return nil, err
	}
	order.HoldEntryID = hold.ID

	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	s.ledger.Committed(ctx, hold)
	orderTransitions.WithLabelValues(string(order.Kind), string(order.Status)).Inc()
	log.Printf("[ORDER] withdrawal order %s created for %s (%d DGT held)", order.ID, order.AccountKey, order.RequestedAmount)
	return order, nil
}

// Fulfill finalizes an order. Finalizing an already terminal order is a
// no-op that returns the stored order.
func (s *OrderService) Fulfill(ctx context.Context, orderID string, outcome models.OrderStatus, meta models.Metadata) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, entries, err := s.FulfillTx(ctx, tx, orderID, outcome, meta)
	if err != nil {
		s.audit.LogError(orderID, "", err)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit fulfilment: %w", err)
	}

	s.ledger.Committed(ctx, entries...)
	return order, nil
}

// FulfillTx is Fulfill inside a caller-owned transaction. It returns the
// ledger entries written so the caller can run post-commit side effects.
func (s *OrderService) FulfillTx(ctx context.Context, tx *sql.Tx, orderID string, outcome models.OrderStatus, meta models.Metadata) (*models.Order, []*models.LedgerEntry, error) {
	if !outcome.Terminal() {
		return nil, nil, fmt.Errorf("%w: outcome %q is not terminal", ErrInvalidPayload, outcome)
	}

	order, err := s.getOrder(ctx, tx, "id", orderID, s.ledger.Dialect().ForUpdate())
	if err != nil {
		return nil, nil, err
	}
	if order.Status.Terminal() {
		log.Printf("[ORDER] %v: %s is %s, ignoring %s", ErrOrderAlreadyFinalized, order.ID, order.Status, outcome)
		return order, nil, nil
	}

	var entries []*models.LedgerEntry
	settlementMeta := meta.
		With(models.MetaOrderID, order.ID).
		With(models.MetaExternalReference, order.ExternalReference)

	switch {
	case order.Kind == models.OrderPurchase && outcome == models.OrderConfirmed:
		if settlementMeta.Get(models.MetaCurrency) == "" {
			settlementMeta = settlementMeta.With(models.MetaCurrency, order.ExternalCurrency)
		}
		entry, _, err := s.ledger.CreditTx(ctx, tx, order.Account, order.RequestedAmount, models.KindDeposit, settlementMeta.Only(models.KindDeposit))
		if err != nil {
			return nil, nil, err
		}
		if entry != nil {
			order.SettlementEntryID = entry.ID
			entries = append(entries, entry)
		}

	case order.Kind == models.OrderWithdrawal && outcome == models.OrderConfirmed:
		order.SettlementEntryID = order.HoldEntryID

	case order.Kind == models.OrderWithdrawal && outcome == models.OrderFailed:
		refundMeta := settlementMeta.With(models.MetaReason, "withdrawal failed").Only(models.KindReversal)
		entry, _, err := s.ledger.ReverseTx(ctx, tx, order.HoldEntryID, refundMeta)
		switch {
		case errors.Is(err, ErrAlreadyReversed):
			log.Printf("[ORDER] hold %s of %s already reversed", order.HoldEntryID, order.ID)
		case err != nil:
			return nil, nil, err
		default:
			order.SettlementEntryID = entry.ID
			entries = append(entries, entry)
		}
	}

	now := s.now().UTC()
	order.Status = outcome
	order.Metadata = order.Metadata.Merge(meta)
	order.UpdatedAt = now
	order.FinalizedAt = &now

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, settlement_entry_id = $2, metadata = $3, updated_at = $4, finalized_at = $5
		WHERE id = $6`,
		string(order.Status), database.NullString(order.SettlementEntryID), order.Metadata, now, now, order.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to finalize order: %w", err)
	}

	orderTransitions.WithLabelValues(string(order.Kind), string(order.Status)).Inc()
	s.audit.LogOperation(order.ID, order.AccountKey, "ORDER_"+strings.ToUpper(string(order.Status)), string(order.Kind))
	return order, entries, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.getOrder(ctx, s.db, "id", orderID, "")
}

func (s *OrderService) GetOrderByExternalReference(ctx context.Context, ref string) (*models.Order, error) {
	return s.getOrder(ctx, s.db, "external_reference", ref, "")
}

// GetOrderByExternalReferenceTx locks the order row on Postgres
func (s *OrderService) GetOrderByExternalReferenceTx(ctx context.Context, tx *sql.Tx, ref string) (*models.Order, error) {
	return s.getOrder(ctx, tx, "external_reference", ref, s.ledger.Dialect().ForUpdate())
}

// ListOrders returns the newest orders of account first
func (s *OrderService) ListOrders(ctx context.Context, account models.AccountRef, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, account.Key(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *OrderService) newOrder(req CreateOrderRequest, kind models.OrderKind) (*models.Order, error) {
	if !req.Account.Valid() || req.Account.IsTreasury() {
		return nil, ErrInvalidAccount
	}
	if req.Amount <= 0 || req.ExternalAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	entryKind := models.KindDeposit
	if kind == models.OrderWithdrawal {
		entryKind = models.KindWithdrawal
	}
	if err := req.Metadata.Validate(entryKind); err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(req.ExternalReference)
	if ref == "" {
		ref = "dgt_" + uuid.NewString()
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrInvalidMetadata)
	}

	meta := req.Metadata
	if meta.Version == 0 {
		meta = models.NewMetadata().Merge(meta)
	}

	now := s.now().UTC()
	return &models.Order{
		ID:                uuid.NewString(),
		Account:           req.Account,
		AccountKey:        req.Account.Key(),
		Kind:              kind,
		RequestedAmount:   req.Amount,
		ExternalAmount:    req.ExternalAmount.String(),
		ExternalCurrency:  currency,
		ExternalReference: ref,
		Status:            models.OrderPending,
		Metadata:          meta,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *OrderService) insertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		order.ID, order.AccountKey, string(order.Kind), order.RequestedAmount, order.ExternalAmount,
		order.ExternalCurrency, order.ExternalReference, string(order.Status),
		database.NullString(order.HoldEntryID), database.NullString(order.SettlementEntryID), order.Metadata,
		order.CreatedAt, order.UpdatedAt, nil)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *OrderService) getOrder(ctx context.Context, q queryer, column, value, suffix string) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE `+column+` = $1`+suffix, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order                models.Order
		kind, status         string
		holdID, settlementID sql.NullString
		finalizedAt          sql.NullTime
	)
	err := row.Scan(&order.ID, &order.AccountKey, &kind, &order.RequestedAmount, &order.ExternalAmount,
		&order.ExternalCurrency, &order.ExternalReference, &status, &holdID, &settlementID,
		&order.Metadata, &order.CreatedAt, &order.UpdatedAt, &finalizedAt)
	if err != nil {
		return nil, err
	}
	order.Kind = models.OrderKind(kind)
	order.Status = models.OrderStatus(status)
	order.HoldEntryID = holdID.String
	order.SettlementEntryID = settlementID.String
	if finalizedAt.Valid {
		t := finalizedAt.Time
		order.FinalizedAt = &t
	}
	if ref, err := models.ParseAccountRef(order.AccountKey); err == nil {
		order.Account = ref
	}
	return &order, nil
}
