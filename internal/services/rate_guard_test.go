package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degentalk/ledger/internal/config"
	"github.com/degentalk/ledger/internal/models"
)

var guardNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testGuardConfig() *config.RateGuardConfig {
	return &config.RateGuardConfig{Actions: map[string]config.ActionPolicy{
		"tip":  {MinAmount: 10, MaxAmount: 1000, CooldownSeconds: 30, DailyCap: 1500},
		"rain": {MinAmount: 1},
	}}
}

func newMemoryGuard(now *time.Time) *RateGuard {
	store := NewMemoryGuardStore()
	store.now = func() time.Time { return *now }
	guard := NewRateGuard(store, testGuardConfig())
	guard.now = func() time.Time { return *now }
	return guard
}

func TestRateGuard_Bounds(t *testing.T) {
	ctx := context.Background()
	now := guardNow
	guard := newMemoryGuard(&now)
	alice := models.UserAccount("alice")

	d, err := guard.CheckAndReserve(ctx, alice, "tip", 5)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonBelowMinimum, d.Reason)

	d, err = guard.CheckAndReserve(ctx, alice, "tip", 5000)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonAboveMaximum, d.Reason)

	d, err = guard.CheckAndReserve(ctx, alice, "airdrop", 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonUnconfigured, d.Reason)

	_, err = guard.CheckAndReserve(ctx, alice, "tip", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = guard.CheckAndReserve(ctx, models.UserAccount(""), "tip", 50)
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestRateGuard_CooldownAndDailyCap(t *testing.T) {
	ctx := context.Background()
	now := guardNow
	guard := newMemoryGuard(&now)
	alice := models.UserAccount("alice")

	d, err := guard.CheckAndReserve(ctx, alice, "tip", 1000)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(500), d.Remaining)

	d, err = guard.CheckAndReserve(ctx, alice, "tip", 100)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCooldown, d.Reason)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	now = now.Add(31 * time.Second)
	d, err = guard.CheckAndReserve(ctx, alice, "tip", 600)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDailyCap, d.Reason)
	assert.Equal(t, int64(500), d.Remaining)

	// The denied attempt left neither cooldown nor usage behind
	d, err = guard.CheckAndReserve(ctx, alice, "tip", 500)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)

	t.Run("other accounts are independent", func(t *testing.T) {
		d, err := guard.CheckAndReserve(ctx, models.UserAccount("bob"), "tip", 1000)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("cap resets the next day", func(t *testing.T) {
		now = guardNow.Add(24 * time.Hour)
		d, err := guard.CheckAndReserve(ctx, alice, "tip", 1000)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestRateGuard_Release(t *testing.T) {
	ctx := context.Background()
	now := guardNow
	guard := newMemoryGuard(&now)
	alice := models.UserAccount("alice")

	d, err := guard.CheckAndReserve(ctx, alice, "tip", 1000)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	require.NoError(t, guard.Release(ctx, alice, "tip", 1000))

	d, err = guard.CheckAndReserve(ctx, alice, "tip", 1500)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)

	assert.NoError(t, guard.Release(ctx, alice, "unknown", 10))
}

func TestRateGuard_StoreErrors(t *testing.T) {
	ctx := context.Background()
	alice := models.UserAccount("alice")
	storeErr := errors.New("store down")

	t.Run("cooldown failure", func(t *testing.T) {
		store := &MockGuardStore{}
		guard := NewRateGuard(store, testGuardConfig())
		store.On("AcquireCooldown", "rate_guard:cooldown:tip:user:alice", 30*time.Second).
			Return(false, time.Duration(0), storeErr)

		_, err := guard.CheckAndReserve(ctx, alice, "tip", 100)
		assert.ErrorIs(t, err, storeErr)
		store.AssertExpectations(t)
	})

	t.Run("daily cap failure releases the cooldown", func(t *testing.T) {
		store := &MockGuardStore{}
		guard := NewRateGuard(store, testGuardConfig())
		guard.now = func() time.Time { return guardNow }
		store.On("AcquireCooldown", "rate_guard:cooldown:tip:user:alice", 30*time.Second).
			Return(true, time.Duration(0), nil)
		store.On("AddDaily", "rate_guard:daily:tip:user:alice:2026-03-10", int64(100), 12*time.Hour).
			Return(int64(0), storeErr)
		store.On("ReleaseCooldown", "rate_guard:cooldown:tip:user:alice").Return(nil)

		_, err := guard.CheckAndReserve(ctx, alice, "tip", 100)
		assert.ErrorIs(t, err, storeErr)
		store.AssertExpectations(t)
	})
}

func TestRedisGuardStore(t *testing.T) {
	ctx := context.Background()
	redisClient, mock := redismock.NewClientMock()
	store := NewRedisGuardStore(redisClient)

	t.Run("acquire cooldown", func(t *testing.T) {
		mock.ExpectSetNX("cd", 1, 30*time.Second).SetVal(true)

		ok, _, err := store.AcquireCooldown(ctx, "cd", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cooldown held", func(t *testing.T) {
		mock.ExpectSetNX("cd", 1, 30*time.Second).SetVal(false)
		mock.ExpectTTL("cd").SetVal(12 * time.Second)

		ok, retry, err := store.AcquireCooldown(ctx, "cd", 30*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 12*time.Second, retry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("add daily", func(t *testing.T) {
		mock.ExpectTxPipeline()
		mock.ExpectIncrBy("daily", 250).SetVal(750)
		mock.ExpectExpire("daily", time.Hour).SetVal(true)
		mock.ExpectTxPipelineExec()

		total, err := store.AddDaily(ctx, "daily", 250, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(750), total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("release cooldown", func(t *testing.T) {
		mock.ExpectDel("cd").SetVal(1)

		assert.NoError(t, store.ReleaseCooldown(ctx, "cd"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUntilDayEnd(t *testing.T) {
	assert.Equal(t, 12*time.Hour, untilDayEnd(guardNow))
	assert.Equal(t, time.Second, untilDayEnd(time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)))
}
