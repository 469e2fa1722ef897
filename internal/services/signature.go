package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a signed delivery may be
const DefaultSignatureTolerance = 5 * time.Minute

// SignPayload returns the hex HMAC-SHA256 of "<timestamp>.<payload>"
func SignPayload(payload []byte, secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a provider signature over payload. timestamp is the
// unix time in seconds sent alongside the signature; deliveries outside
// tolerance of now are rejected to bound replays.
func VerifySignature(payload []byte, signature, secret, timestamp string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrSignatureInvalid)
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrSignatureInvalid)
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(got) == 0 {
		return fmt.Errorf("%w: malformed signature", ErrSignatureInvalid)
	}
	want, _ := hex.DecodeString(SignPayload(payload, secret, timestamp))
	if !hmac.Equal(got, want) {
		return ErrSignatureInvalid
	}
	return nil
}
