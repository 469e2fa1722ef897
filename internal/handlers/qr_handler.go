package handlers

import (
	"net/http"
	"strconv"

	"github.com/degentalk/ledger/internal/services"
)

type QRHandler struct {
	orders  *services.OrderService
	service *services.QRService
}

func NewQRHandler(orders *services.OrderService, service *services.QRService) *QRHandler {
	return &QRHandler{
		orders:  orders,
		service: service,
	}
}

// GetOrderQR renders the order's payment link as a PNG
// @Summary Get order QR code
// @Description QR code of the provider payment link for the order
// @Tags Orders
// @Produce png
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param size query int false "image size in pixels (64-1024)"
// @Success 200 {file} binary
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /orders/{orderId}/qr [get]
func (h *QRHandler) GetOrderQR(w http.ResponseWriter, r *http.Request) {
	order, ok := ownedOrder(w, r, h.orders)
	if !ok {
		return
	}

	size := 256
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 1024 {
			services.SendErrorResponse(w, "Invalid size", http.StatusBadRequest, nil)
			return
		}
		size = n
	}

	png, err := h.service.OrderQRCode(r.Context(), order, size)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
