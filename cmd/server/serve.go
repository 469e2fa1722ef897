package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/degentalk/ledger/docs"
	"github.com/degentalk/ledger/internal/config"
	"github.com/degentalk/ledger/internal/database"
	"github.com/degentalk/ledger/internal/handlers"
	mW "github.com/degentalk/ledger/internal/middleware"
	"github.com/degentalk/ledger/internal/services"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "create missing tables before serving")
	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	serverCfg := config.LoadServerConfig()
	webhookCfg, err := config.LoadWebhookConfig()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		if err := database.Migrate(ctx, a.db, a.ledger.Dialect()); err != nil {
			return err
		}
	}

	docs.SwaggerInfo.Host = "localhost:" + serverCfg.Port

	qrService := services.NewQRService(a.redis, serverCfg.CheckoutURL)
	webhookHandler := handlers.NewWebhookHandler(a.webhooks, webhookCfg.Secret, webhookCfg.Tolerance)
	accountHandler := handlers.NewAccountHandler(a.ledger)
	orderHandler := handlers.NewOrderHandler(a.orders, a.guard)
	qrHandler := handlers.NewQRHandler(a.orders, qrService)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := a.db.PingContext(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Authenticated by signature, not by user token
		r.Post("/webhooks/payments", webhookHandler.HandlePaymentEvent)

		r.Group(func(r chi.Router) {
			r.Use(mW.Auth(serverCfg.JWTSecret))

			r.Get("/accounts/me/balance", accountHandler.GetBalance)
			r.Get("/accounts/me/entries", accountHandler.ListEntries)

			r.Post("/orders/purchase", orderHandler.CreatePurchase)
			r.Post("/orders/withdrawal", orderHandler.CreateWithdrawal)
			r.Get("/orders/{orderId}", orderHandler.GetOrder)
			r.Get("/orders/{orderId}/qr", qrHandler.GetOrderQR)
		})
	})

	server := &http.Server{
		Addr:         ":" + serverCfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on :%s", serverCfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("Server stopped")
	return nil
}
