package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degentalk/ledger/internal/models"
)

func TestAccountHandler_GetBalance(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/accounts/me/balance", "newcomer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, "user:newcomer", balance.Account)
	assert.Equal(t, int64(0), balance.Balance)

	s.fund(t, "alice", 250)
	w = s.do(t, http.MethodGet, "/accounts/me/balance", "alice", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, int64(250), balance.Balance)

	w = s.do(t, http.MethodGet, "/accounts/me/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountHandler_ListEntries(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/accounts/me/entries", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	s.fund(t, "alice", 100)
	s.fund(t, "alice", 200)

	w = s.do(t, http.MethodGet, "/accounts/me/entries?limit=1", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.LedgerEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	w = s.do(t, http.MethodGet, "/accounts/me/entries?limit=abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
