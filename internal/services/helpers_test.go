package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/degentalk/ledger/internal/config"
	"github.com/degentalk/ledger/internal/database"
	"github.com/degentalk/ledger/internal/models"
)

func testLedgerConfig() *config.LedgerConfig {
	return &config.LedgerConfig{
		FeePercent: decimal.NewFromInt(5),
		FeeOverrides: map[models.EntryKind]decimal.Decimal{
			models.KindAdminAdjustment: decimal.Zero,
		},
		MinTransfer: 10,
		MaxBalance:  1_000_000,
	}
}

type testStack struct {
	ledger   *LedgerService
	orders   *OrderService
	webhooks *WebhookProcessor
}

// newTestStack wires the services on a fresh SQLite store
func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))

	cfg := testLedgerConfig()
	fees, err := NewFeeRouter(cfg.FeePercent, cfg.FeeOverrides)
	require.NoError(t, err)

	ledger := NewLedgerService(db, database.SQLite, fees, cfg)
	orders := NewOrderService(ledger)
	return &testStack{
		ledger:   ledger,
		orders:   orders,
		webhooks: NewWebhookProcessor(ledger, orders),
	}
}

func (s *testStack) fund(t *testing.T, account models.AccountRef, amount int64) {
	t.Helper()
	_, err := s.ledger.Credit(context.Background(), account, amount, models.KindAdminAdjustment, models.NewMetadata())
	require.NoError(t, err)
}

func (s *testStack) balance(t *testing.T, account models.AccountRef) int64 {
	t.Helper()
	b, err := s.ledger.GetBalance(context.Background(), account)
	if errors.Is(err, ErrAccountNotFound) {
		return 0
	}
	require.NoError(t, err)
	return b
}

// requireConsistent checks every stored balance against its entries
func (s *testStack) requireConsistent(t *testing.T) {
	t.Helper()
	reports, err := s.ledger.AuditAll(context.Background())
	require.NoError(t, err)
	for _, r := range reports {
		require.Truef(t, r.Consistent(), "account %s stored=%d ledger=%d", r.Account, r.StoredBalance, r.LedgerBalance)
	}
}
