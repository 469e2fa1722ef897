package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/degentalk/ledger/internal/models"
)

// LedgerConfig holds the monetary policy of the ledger engine
type LedgerConfig struct {
	FeePercent   decimal.Decimal
	FeeOverrides map[models.EntryKind]decimal.Decimal
	MinTransfer  int64
	MaxBalance   int64
}

// ActionPolicy bounds one guarded action (tip, rain, ...)
type ActionPolicy struct {
	MinAmount       int64 `mapstructure:"min_amount" validate:"gte=0"`
	MaxAmount       int64 `mapstructure:"max_amount" validate:"gte=0"`
	CooldownSeconds int   `mapstructure:"cooldown_seconds" validate:"gte=0"`
	DailyCap        int64 `mapstructure:"daily_cap" validate:"gte=0"`
}

func (p ActionPolicy) Cooldown() time.Duration {
	return time.Duration(p.CooldownSeconds) * time.Second
}

// RateGuardConfig maps action keys to their policy
type RateGuardConfig struct {
	Actions map[string]ActionPolicy
}

// WebhookConfig holds the payment provider signing settings
type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port        string
	JWTSecret   string
	CheckoutURL string // provider checkout page encoded into order QR codes
}

// BindEnv wires environment variables onto config keys
func BindEnv() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.sqlite_path", "DATABASE_SQLITE_PATH")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("ledger.fee_percent", "LEDGER_FEE_PERCENT")
	viper.BindEnv("ledger.min_transfer", "LEDGER_MIN_TRANSFER")
	viper.BindEnv("ledger.max_balance", "LEDGER_MAX_BALANCE")

	viper.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	viper.BindEnv("webhook.tolerance", "WEBHOOK_TOLERANCE")

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("payments.checkout_url", "PAYMENTS_CHECKOUT_URL")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
}

func setDefaults() {
	viper.SetDefault("ledger.fee_percent", "5")
	viper.SetDefault("ledger.fee_overrides", map[string]string{
		string(models.KindAdminAdjustment): "0",
		string(models.KindAirdrop):         "0",
	})
	viper.SetDefault("ledger.min_transfer", 10)
	viper.SetDefault("ledger.max_balance", int64(1_000_000_000_000))

	viper.SetDefault("rate_guard.actions", map[string]any{
		"tip": map[string]any{
			"min_amount": 10, "max_amount": 1_000_000, "cooldown_seconds": 10, "daily_cap": 10_000_000,
		},
		"rain": map[string]any{
			"min_amount": 100, "max_amount": 5_000_000, "cooldown_seconds": 300, "daily_cap": 20_000_000,
		},
		"withdrawal": map[string]any{
			"min_amount": 100, "cooldown_seconds": 60, "daily_cap": 50_000_000,
		},
	})

	viper.SetDefault("webhook.tolerance", 5*time.Minute)
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("payments.checkout_url", "https://pay.degentalk.io/checkout")
}

// LoadLedgerConfig reads the ledger section
func LoadLedgerConfig() (*LedgerConfig, error) {
	setDefaults()

	percent, err := decimal.NewFromString(viper.GetString("ledger.fee_percent"))
	if err != nil {
		return nil, fmt.Errorf("ledger.fee_percent: %w", err)
	}

	overrides := make(map[models.EntryKind]decimal.Decimal)
	for kind, raw := range viper.GetStringMapString("ledger.fee_overrides") {
		k := models.EntryKind(kind)
		if !k.Valid() {
			return nil, fmt.Errorf("ledger.fee_overrides: unknown entry kind %q", kind)
		}
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("ledger.fee_overrides.%s: %w", kind, err)
		}
		overrides[k] = p
	}

	cfg := &LedgerConfig{
		FeePercent:   percent,
		FeeOverrides: overrides,
		MinTransfer:  viper.GetInt64("ledger.min_transfer"),
		MaxBalance:   viper.GetInt64("ledger.max_balance"),
	}
	if cfg.MinTransfer < 1 {
		return nil, fmt.Errorf("ledger.min_transfer must be at least 1")
	}
	if cfg.MaxBalance < 1 {
		return nil, fmt.Errorf("ledger.max_balance must be positive")
	}
	return cfg, nil
}

// LoadRateGuardConfig reads and validates the per-action policies
func LoadRateGuardConfig() (*RateGuardConfig, error) {
	setDefaults()

	actions := make(map[string]ActionPolicy)
	if err := viper.UnmarshalKey("rate_guard.actions", &actions); err != nil {
		return nil, fmt.Errorf("rate_guard.actions: %w", err)
	}

	v := validator.New()
	for name, policy := range actions {
		if err := v.Struct(policy); err != nil {
			return nil, fmt.Errorf("rate_guard.actions.%s: %w", name, err)
		}
		if policy.MaxAmount > 0 && policy.MaxAmount < policy.MinAmount {
			return nil, fmt.Errorf("rate_guard.actions.%s: max_amount below min_amount", name)
		}
	}
	return &RateGuardConfig{Actions: actions}, nil
}

// LoadWebhookConfig reads the provider signing settings
func LoadWebhookConfig() (*WebhookConfig, error) {
	setDefaults()

	cfg := &WebhookConfig{
		Secret:    viper.GetString("webhook.secret"),
		Tolerance: viper.GetDuration("webhook.tolerance"),
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("webhook.secret is required")
	}
	return cfg, nil
}

// LoadServerConfig reads the HTTP listener settings
func LoadServerConfig() *ServerConfig {
	setDefaults()

	return &ServerConfig{
		Port:        viper.GetString("server.port"),
		JWTSecret:   viper.GetString("jwt.secret_key"),
		CheckoutURL: viper.GetString("payments.checkout_url"),
	}
}
