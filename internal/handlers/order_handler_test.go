package handlers

import (
	"encoding/json"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degentalk/ledger/internal/models"
	"github.com/degentalk/ledger/internal/services"
)

func TestOrderHandler_Purchase(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/orders/purchase", "alice", PurchaseRequest{
		Amount:         500,
		ExternalAmount: "5.25",
		Currency:       "usdt",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view models.OrderView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, models.OrderPurchase, view.Kind)
	assert.Equal(t, models.OrderPending, view.Status)
	assert.Equal(t, "USDT", view.ExternalCurrency)

	t.Run("owner can poll", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/orders/"+view.ID, "alice", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other users see not found", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/orders/"+view.ID, "mallory", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("qr code", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/orders/"+view.ID+"/qr?size=128", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		_, err := png.Decode(w.Body)
		assert.NoError(t, err)

		w = s.do(t, http.MethodGet, "/orders/"+view.ID+"/qr?size=5000", "alice", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/orders/purchase", "alice", PurchaseRequest{Amount: 0, ExternalAmount: "x", Currency: "USDT"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp services.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "Amount")
		assert.Contains(t, resp.Details, "ExternalAmount")
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/orders/purchase", "alice", map[string]any{"amount": 5, "bonus": true})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("requires a user", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/orders/purchase", "", PurchaseRequest{Amount: 5, ExternalAmount: "1", Currency: "USDT"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOrderHandler_Withdrawal(t *testing.T) {
	s := newTestServer(t)
	s.fund(t, "alice", 1000)

	req := WithdrawalRequest{Amount: 400, ExternalAmount: "4", Currency: "USDT", Address: "0xdest"}

	w := s.do(t, http.MethodPost, "/orders/withdrawal", "alice", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/accounts/me/balance", "alice", nil)
	var balance BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, int64(600), balance.Balance)

	t.Run("cooldown blocks a second withdrawal", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/orders/withdrawal", "alice", req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("insufficient funds releases the reservation", func(t *testing.T) {
		s.fund(t, "bob", 100)
		w := s.do(t, http.MethodPost, "/orders/withdrawal", "bob", req)
		assert.Equal(t, http.StatusConflict, w.Code)

		// no cooldown left behind
		small := req
		small.Amount = 50
		w = s.do(t, http.MethodPost, "/orders/withdrawal", "bob", small)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("below the guard minimum", func(t *testing.T) {
		small := req
		small.Amount = 5
		w := s.do(t, http.MethodPost, "/orders/withdrawal", "carol", small)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}
