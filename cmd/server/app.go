package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	"github.com/degentalk/ledger/internal/config"
	"github.com/degentalk/ledger/internal/database"
	"github.com/degentalk/ledger/internal/services"
)

// app is the wired service graph shared by the commands
type app struct {
	db       *sql.DB
	redis    *redis.Client
	ledger   *services.LedgerService
	orders   *services.OrderService
	webhooks *services.WebhookProcessor
	guard    *services.RateGuard
}

func newApp() (*app, error) {
	ledgerCfg, err := config.LoadLedgerConfig()
	if err != nil {
		return nil, err
	}
	guardCfg, err := config.LoadRateGuardConfig()
	if err != nil {
		return nil, err
	}

	fees, err := services.NewFeeRouter(ledgerCfg.FeePercent, ledgerCfg.FeeOverrides)
	if err != nil {
		return nil, err
	}

	db, dialect, err := database.Open(database.GetConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := database.InitRedis()

	ledger := services.NewLedgerService(db, dialect, fees, ledgerCfg)
	var store services.GuardStore
	if redisClient != nil {
		ledger.WithNotifier(redisClient)
		store = services.NewRedisGuardStore(redisClient)
	} else {
		log.Println("[RATE_GUARD] using in-memory store")
		store = services.NewMemoryGuardStore()
	}

	orders := services.NewOrderService(ledger)
	return &app{
		db:       db,
		redis:    redisClient,
		ledger:   ledger,
		orders:   orders,
		webhooks: services.NewWebhookProcessor(ledger, orders),
		guard:    services.NewRateGuard(store, guardCfg),
	}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}
