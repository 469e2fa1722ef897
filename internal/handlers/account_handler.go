package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/degentalk/ledger/internal/middleware"
	"github.com/degentalk/ledger/internal/models"
	"github.com/degentalk/ledger/internal/services"
)

type AccountHandler struct {
	ledger *services.LedgerService
}

func NewAccountHandler(ledger *services.LedgerService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// BalanceResponse is the caller's current DGT balance
type BalanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// GetBalance returns the authenticated user's balance
// @Summary Get balance
// @Description Balance of the caller's DGT account; accounts never touched report 0
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /accounts/me/balance [get]
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account := models.UserAccount(userID)
	balance, err := h.ledger.GetBalance(r.Context(), account)
	if err != nil && !errors.Is(err, services.ErrAccountNotFound) {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{Account: account.Key(), Balance: balance})
}

// ListEntries returns the caller's recent ledger entries
// @Summary List ledger entries
// @Description Newest entries of the caller's account first
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "max entries (default 50, max 500)"
// @Success 200 {array} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts/me/entries [get]
func (h *AccountHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			services.SendErrorResponse(w, "Invalid limit", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	entries, err := h.ledger.ListEntries(r.Context(), models.UserAccount(userID), limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}
