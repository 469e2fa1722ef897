package services

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degentalk/ledger/internal/models"
)

func purchaseRequest(account models.AccountRef, amount int64) CreateOrderRequest {
	return CreateOrderRequest{
		Account:        account,
		Amount:         amount,
		ExternalAmount: decimal.RequireFromString("10.50"),
		Currency:       "usdt",
		Metadata:       models.NewMetadata(),
	}
}

func TestOrderService_PurchaseLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	alice := models.UserAccount("alice")

	order, err := s.orders.CreatePurchaseOrder(ctx, purchaseRequest(alice, 1000))
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, "USDT", order.ExternalCurrency)
	assert.True(t, strings.HasPrefix(order.ExternalReference, "dgt_"))
	assert.Equal(t, int64(0), s.balance(t, alice))

	meta := models.MetadataOf(string(models.MetaTxHash), "0xabc", string(models.MetaActualAmount), "10.49")
	fulfilled, err := s.orders.Fulfill(ctx, order.ID, models.OrderConfirmed, meta)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, fulfilled.Status)
	assert.NotNil(t, fulfilled.FinalizedAt)
	assert.NotEmpty(t, fulfilled.SettlementEntryID)
	assert.Equal(t, int64(1000), s.balance(t, alice))

	deposit, err := s.ledger.GetEntry(ctx, fulfilled.SettlementEntryID)
	require.NoError(t, err)
	assert.Equal(t, models.KindDeposit, deposit.Kind)
	assert.Equal(t, order.ExternalReference, deposit.ExternalReference)
	assert.Equal(t, order.ID, deposit.Metadata.Get(models.MetaOrderID))
	assert.Equal(t, "0xabc", deposit.Metadata.Get(models.MetaTxHash))
	assert.Equal(t, "10.49", deposit.Metadata.Get(models.MetaActualAmount))

	t.Run("fulfilling again is a no-op", func(t *testing.T) {
		again, err := s.orders.Fulfill(ctx, order.ID, models.OrderConfirmed, meta)
		require.NoError(t, err)
		assert.Equal(t, models.OrderConfirmed, again.Status)

		failed, err := s.orders.Fulfill(ctx, order.ID, models.OrderFailed, models.NewMetadata())
		require.NoError(t, err)
		assert.Equal(t, models.OrderConfirmed, failed.Status)

		assert.Equal(t, int64(1000), s.balance(t, alice))
		entries, err := s.ledger.ListEntries(ctx, alice, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("lookups", func(t *testing.T) {
		byRef, err := s.orders.GetOrderByExternalReference(ctx, order.ExternalReference)
		require.NoError(t, err)
		assert.Equal(t, order.ID, byRef.ID)

		list, err := s.orders.ListOrders(ctx, alice, 0)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = s.orders.GetOrder(ctx, "missing")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestOrderService_OversizedPurchaseSettlesAtCeiling(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	alice := models.UserAccount("alice")
	s.fund(t, alice, 1)

	order, err := s.orders.CreatePurchaseOrder(ctx, purchaseRequest(alice, math.MaxInt64))
	require.NoError(t, err)

	fulfilled, err := s.orders.Fulfill(ctx, order.ID, models.OrderConfirmed, models.NewMetadata())
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, fulfilled.Status)
	assert.Equal(t, int64(1_000_000), s.balance(t, alice))

	deposit, err := s.ledger.GetEntry(ctx, fulfilled.SettlementEntryID)
	require.NoError(t, err)
	assert.Equal(t, int64(999_999), deposit.Amount)
	s.requireConsistent(t)
}

func TestOrderService_FailedPurchaseMovesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	alice := models.UserAccount("alice")

	order, err := s.orders.CreatePurchaseOrder(ctx, purchaseRequest(alice, 500))
	require.NoError(t, err)

	failed, err := s.orders.Fulfill(ctx, order.ID, models.OrderFailed, models.NewMetadata())
	require.NoError(t, err)
	assert.Equal(t, models.OrderFailed, failed.Status)
	assert.Empty(t, failed.SettlementEntryID)
	assert.Equal(t, int64(0), s.balance(t, alice))
}

func TestOrderService_Withdrawal(t *testing.T) {
	ctx := context.Background()
	alice := models.UserAccount("alice")

	withdrawal := func(amount int64) CreateOrderRequest {
		req := purchaseRequest(alice, amount)
		req.Metadata = models.MetadataOf(string(models.MetaAddress), "0xdest")
		return req
	}

	t.Run("holds funds up front", func(t *testing.T) {
		s := newTestStack(t)
		s.fund(t, alice, 1000)

		order, err := s.orders.CreateWithdrawalOrder(ctx, withdrawal(400))
		require.NoError(t, err)
		assert.NotEmpty(t, order.HoldEntryID)
		assert.Equal(t, int64(600), s.balance(t, alice))

		hold, err := s.ledger.GetEntry(ctx, order.HoldEntryID)
		require.NoError(t, err)
		assert.Equal(t, int64(-400), hold.Amount)
		assert.Equal(t, "0xdest", hold.Metadata.Get(models.MetaAddress))

		confirmed, err := s.orders.Fulfill(ctx, order.ID, models.OrderConfirmed, models.NewMetadata())
		require.NoError(t, err)
		assert.Equal(t, order.HoldEntryID, confirmed.SettlementEntryID)
		assert.Equal(t, int64(600), s.balance(t, alice))
	})

	t.Run("failure refunds the hold once", func(t *testing.T) {
		s := newTestStack(t)
		s.fund(t, alice, 1000)

		order, err := s.orders.CreateWithdrawalOrder(ctx, withdrawal(400))
		require.NoError(t, err)

		failed, err := s.orders.Fulfill(ctx, order.ID, models.OrderFailed, models.NewMetadata())
		require.NoError(t, err)
		assert.Equal(t, models.OrderFailed, failed.Status)
		assert.Equal(t, int64(1000), s.balance(t, alice))

		hold, err := s.ledger.GetEntry(ctx, order.HoldEntryID)
		require.NoError(t, err)
		assert.Equal(t, models.EntryReversed, hold.Status)

		_, err = s.orders.Fulfill(ctx, order.ID, models.OrderFailed, models.NewMetadata())
		require.NoError(t, err)
		assert.Equal(t, int64(1000), s.balance(t, alice))
		s.requireConsistent(t)
	})

	t.Run("insufficient funds creates no order", func(t *testing.T) {
		s := newTestStack(t)
		s.fund(t, alice, 100)

		_, err := s.orders.CreateWithdrawalOrder(ctx, withdrawal(400))
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		list, err := s.orders.ListOrders(ctx, alice, 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestOrderService_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	_, err := s.orders.CreatePurchaseOrder(ctx, purchaseRequest(models.TreasuryAccount(), 100))
	assert.ErrorIs(t, err, ErrInvalidAccount)

	_, err = s.orders.CreatePurchaseOrder(ctx, purchaseRequest(models.UserAccount("a"), 0))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	req := purchaseRequest(models.UserAccount("a"), 100)
	req.Currency = " "
	_, err = s.orders.CreatePurchaseOrder(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	req = purchaseRequest(models.UserAccount("a"), 100)
	req.Metadata = models.MetadataOf(string(models.MetaRainID), "r1")
	_, err = s.orders.CreatePurchaseOrder(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	_, err = s.orders.Fulfill(ctx, "whatever", models.OrderPending, models.NewMetadata())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
