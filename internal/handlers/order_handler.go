package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/degentalk/ledger/internal/middleware"
	"github.com/degentalk/ledger/internal/models"
	"github.com/degentalk/ledger/internal/services"
)

// WithdrawalAction is the rate guard key consulted before withdrawals
const WithdrawalAction = "withdrawal"

type OrderHandler struct {
	orders    *services.OrderService
	guard     *services.RateGuard
	validator *services.ValidationHelper
}

func NewOrderHandler(orders *services.OrderService, guard *services.RateGuard) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		guard:     guard,
		validator: services.NewValidationHelper(),
	}
}

type PurchaseRequest struct {
	Amount            int64  `json:"amount" validate:"required,gt=0"`
	ExternalAmount    string `json:"externalAmount" validate:"required,numeric"`
	Currency          string `json:"currency" validate:"required,alpha,max=16"`
	ExternalReference string `json:"externalReference,omitempty" validate:"omitempty,max=191"`
	PayURI            string `json:"payUri,omitempty" validate:"omitempty,url"`
}

type WithdrawalRequest struct {
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	ExternalAmount string `json:"externalAmount" validate:"required,numeric"`
	Currency       string `json:"currency" validate:"required,alpha,max=16"`
	Address        string `json:"address" validate:"required,max=128"`
}

// CreatePurchase opens a DGT purchase order
// @Summary Create purchase order
// @Description Record a pending purchase; DGT is credited when the provider confirms payment
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PurchaseRequest true "Purchase order"
// @Success 201 {object} models.OrderView
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /orders/purchase [post]
func (h *OrderHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req PurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	externalAmount, err := decimal.NewFromString(req.ExternalAmount)
	if err != nil {
		services.SendErrorResponse(w, "Invalid externalAmount", http.StatusBadRequest, nil)
		return
	}

	order, err := h.orders.CreatePurchaseOrder(r.Context(), services.CreateOrderRequest{
		Account:           models.UserAccount(userID),
		Amount:            req.Amount,
		ExternalAmount:    externalAmount,
		Currency:          req.Currency,
		ExternalReference: req.ExternalReference,
		Metadata:          models.NewMetadata().With(models.MetaPayURI, req.PayURI),
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order.View())
}

// CreateWithdrawal opens a withdrawal order and holds the DGT
// @Summary Create withdrawal order
// @Description Debit the DGT immediately; it is refunded if the provider reports failure
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WithdrawalRequest true "Withdrawal order"
// @Success 201 {object} models.OrderView
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /orders/withdrawal [post]
func (h *OrderHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req WithdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	externalAmount, err := decimal.NewFromString(req.ExternalAmount)
	if err != nil {
		services.SendErrorResponse(w, "Invalid externalAmount", http.StatusBadRequest, nil)
		return
	}

	account := models.UserAccount(userID)
	decision, err := h.guard.CheckAndReserve(r.Context(), account, WithdrawalAction, req.Amount)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	if !decision.Allowed {
		if decision.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
		}
		services.SendErrorResponse(w, "Withdrawal not allowed: "+decision.Reason, http.StatusTooManyRequests, nil)
		return
	}

	order, err := h.orders.CreateWithdrawalOrder(r.Context(), services.CreateOrderRequest{
		Account:        account,
		Amount:         req.Amount,
		ExternalAmount: externalAmount,
		Currency:       req.Currency,
		Metadata:       models.NewMetadata().With(models.MetaAddress, req.Address),
	})
	if err != nil {
		if relErr := h.guard.Release(r.Context(), account, WithdrawalAction, req.Amount); relErr != nil {
			log.Printf("[RATE_GUARD] release failed: %v", relErr)
		}
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order.View())
}

// GetOrder returns an order owned by the caller
// @Summary Get order
// @Description Poll an order's status
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.OrderView
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /orders/{orderId} [get]
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := ownedOrder(w, r, h.orders)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, order.View())
}

// ownedOrder loads the {orderId} order of the caller, writing the error
// response itself when it cannot.
func ownedOrder(w http.ResponseWriter, r *http.Request, orders *services.OrderService) (*models.Order, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, false
	}

	order, err := orders.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		services.SendServiceError(w, err)
		return nil, false
	}
	// Other users' orders are indistinguishable from missing ones
	if order.AccountKey != models.UserAccount(userID).Key() {
		services.SendServiceError(w, services.ErrOrderNotFound)
		return nil, false
	}
	return order, true
}
