package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockGuardStore struct {
	mock.Mock
}

func (m *MockGuardStore) AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	args := m.Called(key, ttl)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

func (m *MockGuardStore) ReleaseCooldown(ctx context.Context, key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockGuardStore) AddDaily(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	args := m.Called(key, delta, ttl)
	return args.Get(0).(int64), args.Error(1)
}
