package services

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"externalEventId":"evt_1"}`)
	secret := "whsec_test"
	now := time.Unix(1_750_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	valid := SignPayload(payload, secret, ts)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		timestamp string
		now       time.Time
		wantErr   bool
	}{
		{"valid", payload, valid, secret, ts, now, false},
		{"prefixed", payload, "sha256=" + valid, secret, ts, now, false},
		{"within tolerance", payload, valid, secret, ts, now.Add(4 * time.Minute), false},
		{"stale", payload, valid, secret, ts, now.Add(6 * time.Minute), true},
		{"from the future", payload, valid, secret, ts, now.Add(-6 * time.Minute), true},
		{"tampered body", []byte(`{"externalEventId":"evt_2"}`), valid, secret, ts, now, true},
		{"wrong secret", payload, valid, "other", ts, now, true},
		{"no secret configured", payload, valid, "", ts, now, true},
		{"not hex", payload, "zz", secret, ts, now, true},
		{"empty signature", payload, "", secret, ts, now, true},
		{"malformed timestamp", payload, valid, secret, "yesterday", now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.payload, tt.signature, tt.secret, tt.timestamp, tt.now, DefaultSignatureTolerance)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSignatureInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSignPayload_BindsTimestamp(t *testing.T) {
	payload := []byte("body")
	assert.NotEqual(t, SignPayload(payload, "s", "1"), SignPayload(payload, "s", "2"))
	assert.Len(t, SignPayload(payload, "s", "1"), 64)
}
