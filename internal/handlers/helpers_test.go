package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/degentalk/ledger/internal/config"
	"github.com/degentalk/ledger/internal/database"
	"github.com/degentalk/ledger/internal/middleware"
	"github.com/degentalk/ledger/internal/models"
	"github.com/degentalk/ledger/internal/services"
)

const testWebhookSecret = "whsec_test"

type testServer struct {
	router   http.Handler
	ledger   *services.LedgerService
	orders   *services.OrderService
	webhooks *WebhookHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))

	cfg := &config.LedgerConfig{FeePercent: decimal.NewFromInt(5), MinTransfer: 1, MaxBalance: 1_000_000}
	fees, err := services.NewFeeRouter(cfg.FeePercent, nil)
	require.NoError(t, err)

	ledger := services.NewLedgerService(db, database.SQLite, fees, cfg)
	orders := services.NewOrderService(ledger)
	guard := services.NewRateGuard(services.NewMemoryGuardStore(), &config.RateGuardConfig{
		Actions: map[string]config.ActionPolicy{
			WithdrawalAction: {MinAmount: 10, CooldownSeconds: 60},
		},
	})

	webhooks := NewWebhookHandler(services.NewWebhookProcessor(ledger, orders), testWebhookSecret, 0)
	accounts := NewAccountHandler(ledger)
	orderHandler := NewOrderHandler(orders, guard)
	qr := NewQRHandler(orders, services.NewQRService(nil, "https://pay.example.com/checkout"))

	r := chi.NewRouter()
	r.Post("/webhooks/payments", webhooks.HandlePaymentEvent)
	r.Group(func(r chi.Router) {
		r.Use(testUser)
		r.Get("/accounts/me/balance", accounts.GetBalance)
		r.Get("/accounts/me/entries", accounts.ListEntries)
		r.Post("/orders/purchase", orderHandler.CreatePurchase)
		r.Post("/orders/withdrawal", orderHandler.CreateWithdrawal)
		r.Get("/orders/{orderId}", orderHandler.GetOrder)
		r.Get("/orders/{orderId}/qr", qr.GetOrderQR)
	})

	return &testServer{router: r, ledger: ledger, orders: orders, webhooks: webhooks}
}

// testUser stands in for the JWT middleware
func testUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			r = r.WithContext(middleware.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) fund(t *testing.T, user string, amount int64) {
	t.Helper()
	_, err := s.ledger.Credit(context.Background(), models.UserAccount(user), amount, models.KindAdminAdjustment, models.NewMetadata())
	require.NoError(t, err)
}
