package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/degentalk/ledger/internal/config"
	"github.com/degentalk/ledger/internal/models"
)

// Decision reasons
const (
	ReasonAllowed      = "allowed"
	ReasonUnconfigured = "unconfigured"
	ReasonBelowMinimum = "below_minimum"
	ReasonAboveMaximum = "above_maximum"
	ReasonCooldown     = "cooldown"
	ReasonDailyCap     = "daily_cap"
)

// Decision is the guard's answer for one attempted action
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Remaining  int64         `json:"remaining,omitempty"` // left under the daily cap, when one applies
}

// GuardStore keeps cooldown markers and daily counters
type GuardStore interface {
	// AcquireCooldown sets key for ttl unless it exists; when it exists the
	// remaining ttl is returned.
	AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
	ReleaseCooldown(ctx context.Context, key string) error
	// AddDaily adds delta to the counter at key and returns the new total
	AddDaily(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// RateGuard enforces per-action amount bounds, cooldowns and daily caps.
// Callers reserve before the ledger call and Release if it fails.
type RateGuard struct {
	store    GuardStore
	policies map[string]config.ActionPolicy
	now      func() time.Time
}

func NewRateGuard(store GuardStore, cfg *config.RateGuardConfig) *RateGuard {
	policies := make(map[string]config.ActionPolicy, len(cfg.Actions))
	for action, p := range cfg.Actions {
		policies[action] = p
	}
	return &RateGuard{store: store, policies: policies, now: time.Now}
}

// CheckAndReserve decides whether account may perform action for amount
// and, when allowed, records the attempt against cooldown and daily cap.
func (g *RateGuard) CheckAndReserve(ctx context.Context, account models.AccountRef, action string, amount int64) (Decision, error) {
	policy, ok := g.policies[action]
	if !ok {
		return g.decide(action, Decision{Allowed: true, Reason: ReasonUnconfigured}), nil
	}
	if amount <= 0 {
		return Decision{}, ErrInvalidAmount
	}
	if !account.Valid() {
		return Decision{}, ErrInvalidAccount
	}

	if amount < policy.MinAmount {
		return g.decide(action, Decision{Reason: ReasonBelowMinimum}), nil
	}
	if policy.MaxAmount > 0 && amount > policy.MaxAmount {
		return g.decide(action, Decision{Reason: ReasonAboveMaximum}), nil
	}

	cooldownKey := g.cooldownKey(account, action)
	if cd := policy.Cooldown(); cd > 0 {
		acquired, retryAfter, err := g.store.AcquireCooldown(ctx, cooldownKey, cd)
		if err != nil {
			return Decision{}, fmt.Errorf("cooldown check failed: %w", err)
		}
		if !acquired {
			return g.decide(action, Decision{Reason: ReasonCooldown, RetryAfter: retryAfter}), nil
		}
	}

	decision := Decision{Allowed: true, Reason: ReasonAllowed}
	if policy.DailyCap > 0 {
		now := g.now().UTC()
		key := g.dailyKey(account, action, now)
		total, err := g.store.AddDaily(ctx, key, amount, untilDayEnd(now))
		if err != nil {
			g.releaseCooldown(ctx, cooldownKey, policy)
			return Decision{}, fmt.Errorf("daily cap check failed: %w", err)
		}
		if total > policy.DailyCap {
			if _, err := g.store.AddDaily(ctx, key, -amount, untilDayEnd(now)); err != nil {
				log.Printf("[RATE_GUARD] failed to undo daily reservation on %s: %v", key, err)
			}
			g.releaseCooldown(ctx, cooldownKey, policy)
			remaining := policy.DailyCap - (total - amount)
			if remaining < 0 {
				remaining = 0
			}
			return g.decide(action, Decision{Reason: ReasonDailyCap, RetryAfter: untilDayEnd(now), Remaining: remaining}), nil
		}
		decision.Remaining = policy.DailyCap - total
	}
	return g.decide(action, decision), nil
}

// Release undoes a reservation made by CheckAndReserve
func (g *RateGuard) Release(ctx context.Context, account models.AccountRef, action string, amount int64) error {
	policy, ok := g.policies[action]
	if !ok {
		return nil
	}
	if policy.DailyCap > 0 && amount > 0 {
		now := g.now().UTC()
		if _, err := g.store.AddDaily(ctx, g.dailyKey(account, action, now), -amount, untilDayEnd(now)); err != nil {
			return fmt.Errorf("failed to release daily reservation: %w", err)
		}
	}
	if policy.Cooldown() > 0 {
		if err := g.store.ReleaseCooldown(ctx, g.cooldownKey(account, action)); err != nil {
			return fmt.Errorf("failed to release cooldown: %w", err)
		}
	}
	return nil
}

// Policy returns the configured policy for action
func (g *RateGuard) Policy(action string) (config.ActionPolicy, bool) {
	p, ok := g.policies[action]
	return p, ok
}

func (g *RateGuard) releaseCooldown(ctx context.Context, key string, policy config.ActionPolicy) {
	if policy.Cooldown() <= 0 {
		return
	}
	if err := g.store.ReleaseCooldown(ctx, key); err != nil {
		log.Printf("[RATE_GUARD] failed to release cooldown %s: %v", key, err)
	}
}

func (g *RateGuard) decide(action string, d Decision) Decision {
	rateGuardDecisions.WithLabelValues(action, d.Reason).Inc()
	if !d.Allowed {
		log.Printf("[RATE_GUARD] %s denied: %s", action, d.Reason)
	}
	return d
}

func (g *RateGuard) cooldownKey(account models.AccountRef, action string) string {
	return "rate_guard:cooldown:" + action + ":" + account.Key()
}

func (g *RateGuard) dailyKey(account models.AccountRef, action string, now time.Time) string {
	return "rate_guard:daily:" + action + ":" + account.Key() + ":" + now.Format("2006-01-02")
}

func untilDayEnd(now time.Time) time.Duration {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).Sub(now)
}

// RedisGuardStore keeps guard state in Redis so it is shared across replicas
type RedisGuardStore struct {
	client *redis.Client
}

func NewRedisGuardStore(client *redis.Client) *RedisGuardStore {
	return &RedisGuardStore{client: client}
}

func (s *RedisGuardStore) AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := s.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	remaining, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if remaining < 0 {
		remaining = ttl
	}
	return false, remaining, nil
}

func (s *RedisGuardStore) ReleaseCooldown(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisGuardStore) AddDaily(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, key, delta)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type memoryValue struct {
	value   int64
	expires time.Time
}

// MemoryGuardStore is the single-process store used when Redis is unavailable
type MemoryGuardStore struct {
	mu   sync.Mutex
	data map[string]memoryValue
	now  func() time.Time
}

func NewMemoryGuardStore() *MemoryGuardStore {
	return &MemoryGuardStore{data: make(map[string]memoryValue), now: time.Now}
}

func (s *MemoryGuardStore) AcquireCooldown(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if v, ok := s.live(key, now); ok {
		return false, v.expires.Sub(now), nil
	}
	s.data[key] = memoryValue{value: 1, expires: now.Add(ttl)}
	return true, 0, nil
}

func (s *MemoryGuardStore) ReleaseCooldown(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryGuardStore) AddDaily(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, _ := s.live(key, now)
	v.value += delta
	v.expires = now.Add(ttl)
	s.data[key] = v
	return v.value, nil
}

func (s *MemoryGuardStore) live(key string, now time.Time) (memoryValue, bool) {
	v, ok := s.data[key]
	if !ok {
		return memoryValue{}, false
	}
	if !now.Before(v.expires) {
		delete(s.data, key)
		return memoryValue{}, false
	}
	return v, true
}
